// Package wasmtest assembles small WebAssembly binaries for tests.
//
// Module is a direct binary encoder for the handful of sections test
// guests need. Guest builds on it to produce modules that satisfy the mod
// ABI, with individual exports overridden or left out.
package wasmtest

import (
	"encoding/binary"
	"math"
)

// Value types.
const (
	I32 byte = 0x7F
	I64 byte = 0x7E
	F32 byte = 0x7D
	F64 byte = 0x7C
)

const (
	sectionType   byte = 1
	sectionImport byte = 2
	sectionFunc   byte = 3
	sectionMemory byte = 5
	sectionGlobal byte = 6
	sectionExport byte = 7
	sectionCode   byte = 10
	sectionData   byte = 11

	kindFunc   byte = 0
	kindMemory byte = 2

	funcTypeMarker byte = 0x60
)

// FuncType is a core function signature.
type FuncType struct {
	Params  []byte
	Results []byte
}

func (ft FuncType) equal(o FuncType) bool {
	return string(ft.Params) == string(o.Params) && string(ft.Results) == string(o.Results)
}

type funcImport struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	locals  []byte
	body    []byte
	typeIdx uint32
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type global struct {
	init    []byte
	valType byte
	mutable bool
}

type segment struct {
	data   []byte
	offset uint32
}

// Module is an in-memory module under construction. Imports must all be
// added before the first Func so function indices stay stable.
type Module struct {
	types    []FuncType
	imports  []funcImport
	funcs    []function
	exports  []export
	globals  []global
	data     []segment
	memPages uint32
	hasMem   bool
}

// NewModule returns an empty module.
func NewModule() *Module { return &Module{} }

func (m *Module) typeIndex(ft FuncType) uint32 {
	for i, t := range m.types {
		if t.equal(ft) {
			return uint32(i)
		}
	}
	m.types = append(m.types, ft)
	return uint32(len(m.types) - 1)
}

// Import declares a function import and returns its function index.
func (m *Module) Import(module, name string, ft FuncType) uint32 {
	if len(m.funcs) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	m.imports = append(m.imports, funcImport{module: module, name: name, typeIdx: m.typeIndex(ft)})
	return uint32(len(m.imports) - 1)
}

// Func adds a function and returns its index. body is the instruction
// sequence without the trailing end.
func (m *Module) Func(ft FuncType, locals []byte, body ...[]byte) uint32 {
	m.funcs = append(m.funcs, function{typeIdx: m.typeIndex(ft), locals: locals, body: Code(body...)})
	return uint32(len(m.imports) + len(m.funcs) - 1)
}

// ExportFunc exports function idx under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.exports = append(m.exports, export{name: name, kind: kindFunc, idx: idx})
}

// Memory declares memory 0 with min pages and exports it as name when
// name is not empty.
func (m *Module) Memory(pages uint32, name string) {
	m.hasMem = true
	m.memPages = pages
	if name != "" {
		m.exports = append(m.exports, export{name: name, kind: kindMemory, idx: 0})
	}
}

// GlobalI32 adds a mutable i32 global and returns its index.
func (m *Module) GlobalI32(init int32) uint32 {
	m.globals = append(m.globals, global{valType: I32, mutable: true, init: I32Const(init)})
	return uint32(len(m.globals) - 1)
}

// GlobalI64 adds a mutable i64 global and returns its index.
func (m *Module) GlobalI64(init int64) uint32 {
	m.globals = append(m.globals, global{valType: I64, mutable: true, init: I64Const(init)})
	return uint32(len(m.globals) - 1)
}

// Data places b at offset in memory 0.
func (m *Module) Data(offset uint32, b []byte) {
	m.data = append(m.data, segment{offset: offset, data: append([]byte(nil), b...)})
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	out := &buffer{}
	out.raw([]byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.types)))
		for _, ft := range m.types {
			sec.u8(funcTypeMarker)
			sec.u32(uint32(len(ft.Params)))
			sec.raw(ft.Params)
			sec.u32(uint32(len(ft.Results)))
			sec.raw(ft.Results)
		}
		out.section(sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.u8(kindFunc)
			sec.u32(imp.typeIdx)
		}
		out.section(sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		out.section(sectionFunc, sec)
	}

	if m.hasMem {
		sec := &buffer{}
		sec.u32(1)
		sec.u8(0x00) // min only
		sec.u32(m.memPages)
		out.section(sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.u8(g.valType)
			if g.mutable {
				sec.u8(0x01)
			} else {
				sec.u8(0x00)
			}
			sec.raw(g.init)
			sec.u8(opEnd)
		}
		out.section(sectionGlobal, sec)
	}

	if len(m.exports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.exports)))
		for _, e := range m.exports {
			sec.name(e.name)
			sec.u8(e.kind)
			sec.u32(e.idx)
		}
		out.section(sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := &buffer{}
			body.u32(uint32(len(f.locals)))
			for _, l := range f.locals {
				body.u32(1)
				body.u8(l)
			}
			body.raw(f.body)
			body.u8(opEnd)
			sec.u32(uint32(len(body.b)))
			sec.raw(body.b)
		}
		out.section(sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.u32(0) // active, memory 0
			sec.raw(I32Const(int32(d.offset)))
			sec.u8(opEnd)
			sec.u32(uint32(len(d.data)))
			sec.raw(d.data)
		}
		out.section(sectionData, sec)
	}

	return out.b
}

type buffer struct {
	b []byte
}

func (b *buffer) u8(v byte) { b.b = append(b.b, v) }

func (b *buffer) raw(v []byte) { b.b = append(b.b, v...) }

func (b *buffer) u32(v uint32) { b.b = appendU32(b.b, v) }

func (b *buffer) name(s string) {
	b.u32(uint32(len(s)))
	b.b = append(b.b, s...)
}

func (b *buffer) section(id byte, content *buffer) {
	b.u8(id)
	b.u32(uint32(len(content.b)))
	b.raw(content.b)
}

// appendU32 appends unsigned LEB128.
func appendU32(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// appendS64 appends signed LEB128.
func appendS64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(b, c)
		}
		b = append(b, c|0x80)
	}
}

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}
