package abi

import (
	"context"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"

	modruntime "github.com/wippyai/mod-runtime"
	"github.com/wippyai/mod-runtime/errors"
)

// WrapMemory adapts a guest's exported wazero memory.
func WrapMemory(mem api.Memory) *Memory {
	if mem == nil {
		return nil
	}
	return &Memory{Mem: mem}
}

var _ modruntime.Memory = (*Memory)(nil)

// Memory is a bounds-checked view of guest linear memory. Every failure is
// a boundary fault.
type Memory struct {
	Mem api.Memory
}

// Size returns the current memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.Mem.Size()
}

// Read returns a copy of [offset, offset+length).
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(offset, length, m.Mem.Size())
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write copies data to [offset, offset+len(data)).
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.Mem.Write(offset, data) {
		return errors.OutOfBounds(offset, uint32(len(data)), m.Mem.Size())
	}
	return nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 4, m.Mem.Size())
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 8, m.Mem.Size())
	}
	return v, nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.Mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(offset, 4, m.Mem.Size())
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.Mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(offset, 8, m.Mem.Size())
	}
	return nil
}

// ReadString reads and validates a UTF-8 string.
func (m *Memory) ReadString(ptr, length uint32) (string, error) {
	data, ok := m.Mem.Read(ptr, length)
	if !ok {
		return "", errors.OutOfBounds(ptr, length, m.Mem.Size())
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(data)
	}
	return string(data), nil
}

// WrapAllocator adapts the guest's alloc export.
func WrapAllocator(ctx context.Context, fn api.Function) *Allocator {
	if fn == nil {
		return nil
	}
	return &Allocator{Ctx: ctx, Fn: fn}
}

var _ modruntime.Allocator = (*Allocator)(nil)

// Allocator calls the guest's alloc(len u32) -> ptr u32 export.
type Allocator struct {
	Ctx context.Context
	Fn  api.Function
}

// Alloc requests size bytes of guest scratch space.
func (a *Allocator) Alloc(size uint32) (uint32, error) {
	results, err := a.Fn.Call(a.Ctx, api.EncodeU32(size))
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	if len(results) != 1 {
		return 0, errors.AllocationFailed(size, nil)
	}
	return api.DecodeU32(results[0]), nil
}

// Transfer moves host bytes into guest memory.
type Transfer struct {
	Mem   modruntime.Memory
	Alloc modruntime.Allocator
}

// Put allocates len(data) bytes in the guest, copies data there and
// returns the packed region. Empty data yields Pack(0, 0) without calling
// the allocator.
func (t Transfer) Put(data []byte) (uint64, error) {
	if len(data) == 0 {
		return Pack(0, 0), nil
	}
	size := uint32(len(data))
	ptr, err := t.Alloc.Alloc(size)
	if err != nil {
		return 0, err
	}
	if err := t.Mem.Write(ptr, data); err != nil {
		return 0, err
	}
	return Pack(ptr, size), nil
}
