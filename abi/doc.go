// Package abi implements the boundary protocol between the host and guest
// modules.
//
// Guests pass variable-size arguments as (ptr u32, len u32) pairs into
// their own linear memory. Host functions that return variable-size data
// allocate through the guest's alloc export, copy the bytes in and return
// one packed i64, len<<32 | ptr. NoValue marks an absent result.
//
// Structured values use a fixed little-endian record layout:
//
//	u8, u32, u64, f32         little-endian, f32 as IEEE-754 bits
//	string, bytes             u32 length + payload
//	ComponentData             u8 tag + payload (see Tag constants)
//	entity list               u32 count + count × u64
//	component id list         u32 count + count × u32
//
// Decoders reject truncated records, unknown tags and trailing bytes with
// a boundary fault.
package abi
