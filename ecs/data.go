package ecs

import (
	"bytes"
	"fmt"
	"math"

	"github.com/wippyai/mod-runtime/resource"
)

// Kind tags the variant held by a ComponentData.
type Kind uint8

const (
	KindNone Kind = iota
	KindString
	KindVector2
	KindColor
	KindRaw
	KindI32
	KindI64
	KindSprite
)

var kindNames = [...]string{"none", "string", "vector2", "color", "raw", "i32", "i64", "sprite"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool { return k <= KindSprite }

// Vector2 is a 2D vector in world units.
type Vector2 struct {
	X, Y float32
}

// Color is a linear RGBA color.
type Color struct {
	R, G, B, A float32
}

// ComponentData is a tagged component value. It is always passed by value;
// Raw payloads are copied on construction and on access so no two owners
// ever share a backing array.
type ComponentData struct {
	str    string
	raw    []byte
	vec    Vector2
	color  Color
	num    int64
	sprite resource.Handle
	kind   Kind
}

// None returns the empty value.
func None() ComponentData { return ComponentData{} }

// String wraps a string.
func String(s string) ComponentData { return ComponentData{kind: KindString, str: s} }

// Vector wraps a Vector2.
func Vector(v Vector2) ComponentData { return ComponentData{kind: KindVector2, vec: v} }

// RGBA wraps a Color.
func RGBA(c Color) ComponentData { return ComponentData{kind: KindColor, color: c} }

// Raw wraps a copy of b.
func Raw(b []byte) ComponentData {
	return ComponentData{kind: KindRaw, raw: bytes.Clone(b)}
}

// I32 wraps a 32-bit integer.
func I32(v int32) ComponentData { return ComponentData{kind: KindI32, num: int64(v)} }

// I64 wraps a 64-bit integer.
func I64(v int64) ComponentData { return ComponentData{kind: KindI64, num: v} }

// Sprite wraps a sprite resource handle.
func Sprite(h resource.Handle) ComponentData { return ComponentData{kind: KindSprite, sprite: h} }

// Kind returns the variant tag.
func (d ComponentData) Kind() Kind { return d.kind }

// IsNone reports whether d is the empty value.
func (d ComponentData) IsNone() bool { return d.kind == KindNone }

func (d ComponentData) AsString() (string, bool) { return d.str, d.kind == KindString }

func (d ComponentData) AsVector2() (Vector2, bool) { return d.vec, d.kind == KindVector2 }

func (d ComponentData) AsColor() (Color, bool) { return d.color, d.kind == KindColor }

// AsRaw returns a copy of the raw payload.
func (d ComponentData) AsRaw() ([]byte, bool) {
	if d.kind != KindRaw {
		return nil, false
	}
	return bytes.Clone(d.raw), true
}

func (d ComponentData) AsI32() (int32, bool) { return int32(d.num), d.kind == KindI32 }

func (d ComponentData) AsI64() (int64, bool) { return d.num, d.kind == KindI64 }

func (d ComponentData) AsSprite() (resource.Handle, bool) { return d.sprite, d.kind == KindSprite }

// Clone returns a deep copy.
func (d ComponentData) Clone() ComponentData {
	if d.kind == KindRaw {
		d.raw = bytes.Clone(d.raw)
	}
	return d
}

// Equal compares variant and payload. Floats compare by bit pattern, so a
// NaN equals itself and -0 differs from +0.
func (d ComponentData) Equal(o ComponentData) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindNone:
		return true
	case KindString:
		return d.str == o.str
	case KindVector2:
		return f32eq(d.vec.X, o.vec.X) && f32eq(d.vec.Y, o.vec.Y)
	case KindColor:
		return f32eq(d.color.R, o.color.R) && f32eq(d.color.G, o.color.G) &&
			f32eq(d.color.B, o.color.B) && f32eq(d.color.A, o.color.A)
	case KindRaw:
		return bytes.Equal(d.raw, o.raw)
	case KindI32, KindI64:
		return d.num == o.num
	case KindSprite:
		return d.sprite == o.sprite
	}
	return false
}

func (d ComponentData) String() string {
	switch d.kind {
	case KindNone:
		return "None"
	case KindString:
		return fmt.Sprintf("String(%q)", d.str)
	case KindVector2:
		return fmt.Sprintf("Vector2(%g, %g)", d.vec.X, d.vec.Y)
	case KindColor:
		return fmt.Sprintf("Color(%g, %g, %g, %g)", d.color.R, d.color.G, d.color.B, d.color.A)
	case KindRaw:
		return fmt.Sprintf("Raw(%d bytes)", len(d.raw))
	case KindI32:
		return fmt.Sprintf("I32(%d)", int32(d.num))
	case KindI64:
		return fmt.Sprintf("I64(%d)", d.num)
	case KindSprite:
		return fmt.Sprintf("Sprite(%s)", d.sprite)
	}
	return d.kind.String()
}

func f32eq(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
}
