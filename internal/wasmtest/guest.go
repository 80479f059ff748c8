package wasmtest

// ABI lists the exports every mod provides, with their signatures.
var ABI = []struct {
	Name string
	Type FuncType
}{
	{"new", FuncType{}},
	{"init", FuncType{}},
	{"update", FuncType{}},
	{"key_event", FuncType{Params: []byte{I32}}},
	{"scroll", FuncType{Params: []byte{F32}}},
	{"event", FuncType{Params: []byte{I64, I32, I32}}},
	{"get_mod_name", FuncType{Results: []byte{I64}}},
	{"alloc", FuncType{Params: []byte{I32}, Results: []byte{I32}}},
}

const (
	dataStart = 64
	heapStart = 8192
)

type definition struct {
	locals []byte
	body   [][]byte
	typ    FuncType
}

// Guest builds a module that satisfies the mod ABI. Every export gets a
// default body (empty, or a bump allocator for alloc) unless replaced
// with Define or dropped with Omit.
type Guest struct {
	m        *Module
	defs     map[string]definition
	omit     map[string]bool
	name     string
	heap     uint32
	dataNext uint32
	noMemory bool
}

// NewGuest starts a guest that reports name from get_mod_name. An empty
// name makes get_mod_name return the absent marker.
func NewGuest(name string) *Guest {
	m := NewModule()
	return &Guest{
		m:        m,
		defs:     make(map[string]definition),
		omit:     make(map[string]bool),
		name:     name,
		heap:     m.GlobalI32(heapStart),
		dataNext: dataStart,
	}
}

// Import declares a host function and returns its function index.
func (g *Guest) Import(namespace, name string, params, results []byte) uint32 {
	return g.m.Import(namespace, name, FuncType{Params: params, Results: results})
}

// Data places b in memory and returns its address and length.
func (g *Guest) Data(b []byte) (ptr, length int32) {
	ptr = int32(g.dataNext)
	g.m.Data(g.dataNext, b)
	g.dataNext += uint32(len(b))
	return ptr, int32(len(b))
}

// String places s in memory and returns its address and length.
func (g *Guest) String(s string) (ptr, length int32) {
	return g.Data([]byte(s))
}

// Push returns instructions pushing (ptr, len) of b onto the stack.
func (g *Guest) Push(b []byte) []byte {
	ptr, n := g.Data(b)
	return Code(I32Const(ptr), I32Const(n))
}

// PushString is Push for a string.
func (g *Guest) PushString(s string) []byte {
	return g.Push([]byte(s))
}

func (g *Guest) GlobalI32(init int32) uint32 { return g.m.GlobalI32(init) }

func (g *Guest) GlobalI64(init int64) uint32 { return g.m.GlobalI64(init) }

// Define replaces the body of an ABI export.
func (g *Guest) Define(export string, locals []byte, body ...[]byte) {
	for _, e := range ABI {
		if e.Name == export {
			g.defs[export] = definition{typ: e.Type, locals: locals, body: body}
			return
		}
	}
	panic("wasmtest: unknown ABI export " + export)
}

// DefineAs exports a function with an arbitrary signature. Using an ABI
// name produces a module with a mismatched export.
func (g *Guest) DefineAs(export string, ft FuncType, locals []byte, body ...[]byte) {
	g.defs[export] = definition{typ: ft, locals: locals, body: body}
}

// Omit leaves an ABI export out of the module.
func (g *Guest) Omit(export string) { g.omit[export] = true }

// WithoutMemory leaves the memory export out.
func (g *Guest) WithoutMemory() { g.noMemory = true }

// Build encodes the module.
func (g *Guest) Build() []byte {
	nameResult := I64Const(-1)
	if g.name != "" {
		ptr, n := g.String(g.name)
		nameResult = I64Const(int64(n)<<32 | int64(ptr))
	}

	done := make(map[string]bool)
	for _, e := range ABI {
		done[e.Name] = true
		if g.omit[e.Name] {
			continue
		}
		if d, ok := g.defs[e.Name]; ok {
			g.m.ExportFunc(e.Name, g.m.Func(d.typ, d.locals, d.body...))
			continue
		}
		switch e.Name {
		case "get_mod_name":
			g.m.ExportFunc(e.Name, g.m.Func(e.Type, nil, nameResult))
		case "alloc":
			g.m.ExportFunc(e.Name, g.m.Func(e.Type, []byte{I32},
				GlobalGet(g.heap), LocalSet(1),
				GlobalGet(g.heap), LocalGet(0), I32Add(), GlobalSet(g.heap),
				LocalGet(1),
			))
		default:
			g.m.ExportFunc(e.Name, g.m.Func(e.Type, nil))
		}
	}
	for name, d := range g.defs {
		if !done[name] {
			g.m.ExportFunc(name, g.m.Func(d.typ, d.locals, d.body...))
		}
	}

	if g.noMemory {
		g.m.Memory(1, "")
	} else {
		g.m.Memory(1, "memory")
	}
	return g.m.Bytes()
}
