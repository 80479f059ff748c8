package abi

import (
	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/resource"
)

// Wire tags for ComponentData. They match ecs.Kind values.
const (
	TagNone    uint8 = 0
	TagString  uint8 = 1
	TagVector2 uint8 = 2
	TagColor   uint8 = 3
	TagRaw     uint8 = 4
	TagI32     uint8 = 5
	TagI64     uint8 = 6
	TagSprite  uint8 = 7
)

// PutData appends the record for d.
func (e *Encoder) PutData(d ecs.ComponentData) {
	e.U8(uint8(d.Kind()))
	switch d.Kind() {
	case ecs.KindString:
		s, _ := d.AsString()
		e.String(s)
	case ecs.KindVector2:
		v, _ := d.AsVector2()
		e.F32(v.X)
		e.F32(v.Y)
	case ecs.KindColor:
		c, _ := d.AsColor()
		e.F32(c.R)
		e.F32(c.G)
		e.F32(c.B)
		e.F32(c.A)
	case ecs.KindRaw:
		b, _ := d.AsRaw()
		e.Bytes32(b)
	case ecs.KindI32:
		v, _ := d.AsI32()
		e.I32(v)
	case ecs.KindI64:
		v, _ := d.AsI64()
		e.I64(v)
	case ecs.KindSprite:
		h, _ := d.AsSprite()
		e.U64(uint64(h))
	}
}

// Data reads one ComponentData record.
func (d *Decoder) Data() ecs.ComponentData {
	tag := d.U8()
	if d.err != nil {
		return ecs.None()
	}
	switch tag {
	case TagNone:
		return ecs.None()
	case TagString:
		return ecs.String(d.String())
	case TagVector2:
		x := d.F32()
		y := d.F32()
		return ecs.Vector(ecs.Vector2{X: x, Y: y})
	case TagColor:
		r := d.F32()
		g := d.F32()
		b := d.F32()
		a := d.F32()
		return ecs.RGBA(ecs.Color{R: r, G: g, B: b, A: a})
	case TagRaw:
		return ecs.Raw(d.Bytes32())
	case TagI32:
		return ecs.I32(d.I32())
	case TagI64:
		return ecs.I64(d.I64())
	case TagSprite:
		return ecs.Sprite(resource.Handle(d.U64()))
	default:
		d.Fail(errors.InvalidRecord("unknown component data tag %d", tag))
		return ecs.None()
	}
}

// EncodeData returns the record for a single ComponentData.
func EncodeData(data ecs.ComponentData) []byte {
	e := NewEncoder(16)
	e.PutData(data)
	return e.Bytes()
}

// DecodeData parses a record holding exactly one ComponentData.
func DecodeData(b []byte) (ecs.ComponentData, error) {
	d := NewDecoder(b)
	data := d.Data()
	if err := d.Finish(); err != nil {
		return ecs.None(), err
	}
	return data, nil
}

// EncodeEntities returns a u32 count followed by one u64 per entity.
func EncodeEntities(entities []ecs.Entity) []byte {
	e := NewEncoder(4 + 8*len(entities))
	e.U32(uint32(len(entities)))
	for _, ent := range entities {
		e.U64(uint64(ent))
	}
	return e.Bytes()
}

// DecodeEntities parses an entity list.
func DecodeEntities(b []byte) ([]ecs.Entity, error) {
	d := NewDecoder(b)
	n := d.Count(8)
	out := make([]ecs.Entity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ecs.Entity(d.U64()))
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeComponentIDs returns a u32 count followed by one u32 per id.
func EncodeComponentIDs(ids []ecs.ComponentID) []byte {
	e := NewEncoder(4 + 4*len(ids))
	e.U32(uint32(len(ids)))
	for _, id := range ids {
		e.U32(uint32(id))
	}
	return e.Bytes()
}

// DecodeComponentIDs parses a component id list.
func DecodeComponentIDs(b []byte) ([]ecs.ComponentID, error) {
	d := NewDecoder(b)
	n := d.Count(4)
	out := make([]ecs.ComponentID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ecs.ComponentID(d.U32()))
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return out, nil
}
