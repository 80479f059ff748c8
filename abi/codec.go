package abi

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wippyai/mod-runtime/errors"
)

// Encoder appends fixed little-endian records. Guest builds use the same
// layout, so it never changes shape between host and guest.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with room for size bytes.
func NewEncoder(size int) *Encoder {
	return &Encoder{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded record.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) U8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
	} else {
		e.U8(0)
	}
}

func (e *Encoder) U32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *Encoder) U64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *Encoder) I32(v int32) { e.U32(uint32(v)) }

func (e *Encoder) I64(v int64) { e.U64(uint64(v)) }

// F32 writes the IEEE-754 bit pattern, so NaN payloads survive.
func (e *Encoder) F32(v float32) { e.U32(math.Float32bits(v)) }

// Bytes32 writes a u32 length followed by the bytes.
func (e *Encoder) Bytes32(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// String writes a u32 length followed by UTF-8 bytes.
func (e *Encoder) String(s string) {
	e.U32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// Decoder reads records produced by Encoder or by a guest. Every failure
// is a boundary fault; after the first failure all reads return zero and
// Err reports the fault.
type Decoder struct {
	err error
	buf []byte
	off int
}

// NewDecoder reads from b without copying it.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Err returns the first decoding failure.
func (d *Decoder) Err() error { return d.err }

// Finish reports the first failure, or a fault if bytes remain unread.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.buf) {
		return errors.InvalidRecord("%d trailing bytes", len(d.buf)-d.off)
	}
	return nil
}

// Fail records a fault; the first one wins.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = errors.InvalidRecord("truncated record: need %d bytes at offset %d, have %d", n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) U8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *Decoder) Bool() bool {
	switch v := d.U8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.Fail(errors.InvalidRecord("invalid bool %d", v))
		return false
	}
}

func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *Decoder) I32() int32 { return int32(d.U32()) }

func (d *Decoder) I64() int64 { return int64(d.U64()) }

func (d *Decoder) F32() float32 { return math.Float32frombits(d.U32()) }

// Bytes32 reads a length-prefixed byte string and returns a copy.
func (d *Decoder) Bytes32() []byte {
	n := d.U32()
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() string {
	n := d.U32()
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.Fail(errors.InvalidUTF8(b))
		return ""
	}
	return string(b)
}

// Count reads a u32 element count and checks that at least count*elemSize
// bytes remain, so a hostile count cannot force a huge allocation.
func (d *Decoder) Count(elemSize int) int {
	n := d.U32()
	if d.err != nil {
		return 0
	}
	if elemSize > 0 && uint64(n)*uint64(elemSize) > uint64(len(d.buf)-d.off) {
		d.Fail(errors.InvalidRecord("count %d exceeds remaining %d bytes", n, len(d.buf)-d.off))
		return 0
	}
	return int(n)
}
