package wasmtest

const (
	opUnreachable  byte = 0x00
	opIf           byte = 0x04
	opElse         byte = 0x05
	opEnd          byte = 0x0B
	opReturn       byte = 0x0F
	opCall         byte = 0x10
	opDrop         byte = 0x1A
	opLocalGet     byte = 0x20
	opLocalSet     byte = 0x21
	opGlobalGet    byte = 0x23
	opGlobalSet    byte = 0x24
	opI32Load      byte = 0x28
	opI32Store     byte = 0x36
	opI64Store     byte = 0x37
	opF32Store     byte = 0x38
	opI32Const     byte = 0x41
	opI64Const     byte = 0x42
	opF32Const     byte = 0x43
	opI32Eqz       byte = 0x45
	opI64Eq        byte = 0x51
	opI32Add       byte = 0x6A
	opI64ExtendU   byte = 0xAD
	opI64Shl       byte = 0x86
	opI64ShrU      byte = 0x88
	opI64Or        byte = 0x84
	opI32WrapI64   byte = 0xA7
	blockTypeEmpty byte = 0x40
)

// Code concatenates instruction sequences.
func Code(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func I32Const(v int32) []byte { return appendS64([]byte{opI32Const}, int64(v)) }

func I64Const(v int64) []byte { return appendS64([]byte{opI64Const}, v) }

func F32Const(v float32) []byte { return appendF32([]byte{opF32Const}, v) }

func LocalGet(i uint32) []byte { return appendU32([]byte{opLocalGet}, i) }

func LocalSet(i uint32) []byte { return appendU32([]byte{opLocalSet}, i) }

func GlobalGet(i uint32) []byte { return appendU32([]byte{opGlobalGet}, i) }

func GlobalSet(i uint32) []byte { return appendU32([]byte{opGlobalSet}, i) }

func Call(fn uint32) []byte { return appendU32([]byte{opCall}, fn) }

func Drop() []byte { return []byte{opDrop} }

func Return() []byte { return []byte{opReturn} }

func Unreachable() []byte { return []byte{opUnreachable} }

func I32Add() []byte { return []byte{opI32Add} }

func I32Eqz() []byte { return []byte{opI32Eqz} }

func I64Eq() []byte { return []byte{opI64Eq} }

func I32WrapI64() []byte { return []byte{opI32WrapI64} }

func I64ExtendI32U() []byte { return []byte{opI64ExtendU} }

func I64Shl() []byte { return []byte{opI64Shl} }

func I64ShrU() []byte { return []byte{opI64ShrU} }

func I64Or() []byte { return []byte{opI64Or} }

// I32Load loads from the address on the stack plus offset.
func I32Load(offset uint32) []byte { return memarg(opI32Load, 2, offset) }

// I32Store stores value at address plus offset; the stack holds
// address then value.
func I32Store(offset uint32) []byte { return memarg(opI32Store, 2, offset) }

func I64Store(offset uint32) []byte { return memarg(opI64Store, 3, offset) }

func F32Store(offset uint32) []byte { return memarg(opF32Store, 2, offset) }

// If runs then when the i32 on the stack is non-zero.
func If(then ...[]byte) []byte {
	out := []byte{opIf, blockTypeEmpty}
	out = append(out, Code(then...)...)
	return append(out, opEnd)
}

// IfElse runs then or els depending on the i32 on the stack.
func IfElse(then, els []byte) []byte {
	out := []byte{opIf, blockTypeEmpty}
	out = append(out, then...)
	out = append(out, opElse)
	out = append(out, els...)
	return append(out, opEnd)
}

func memarg(op byte, align, offset uint32) []byte {
	out := appendU32([]byte{op}, align)
	return appendU32(out, offset)
}
