package modhost

import (
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mod-runtime/errors"
)

// Signature types shared by the export and import tables. A record is a
// byte string in guest memory (ptr, len); a region is a packed
// len<<32 | ptr result.
var (
	tString wit.Type = wit.String{}
	tRecord wit.Type = &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
	tRegion wit.Type = wit.U64{}
	tHandle wit.Type = wit.U64{}
	tU32    wit.Type = wit.U32{}
	tS32    wit.Type = wit.S32{}
	tF32    wit.Type = wit.F32{}
	tBool   wit.Type = wit.Bool{}
)

type guestExport struct {
	name    string
	params  []wit.Type
	results []wit.Type
}

// Exports every mod must provide, besides its "memory".
var requiredExports = []guestExport{
	{name: "new"},
	{name: "init"},
	{name: "update"},
	{name: "key_event", params: []wit.Type{tU32}},
	{name: "scroll", params: []wit.Type{tF32}},
	{name: "event", params: []wit.Type{tHandle, wit.U32{}, wit.U32{}}},
	{name: "get_mod_name", results: []wit.Type{tRegion}},
	{name: "alloc", params: []wit.Type{tU32}, results: []wit.Type{tU32}},
}

const memoryExport = "memory"

// flatten lowers WIT types to core value types. Strings and lists become
// (ptr, len) pairs.
func flatten(types []wit.Type) []api.ValueType {
	var out []api.ValueType
	for _, t := range types {
		switch v := t.(type) {
		case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
			out = append(out, api.ValueTypeI32)
		case wit.U64, wit.S64:
			out = append(out, api.ValueTypeI64)
		case wit.F32:
			out = append(out, api.ValueTypeF32)
		case wit.F64:
			out = append(out, api.ValueTypeF64)
		case wit.String:
			out = append(out, api.ValueTypeI32, api.ValueTypeI32)
		case *wit.TypeDef:
			if _, ok := v.Kind.(*wit.List); ok {
				out = append(out, api.ValueTypeI32, api.ValueTypeI32)
				continue
			}
			panic("modhost: unsupported type definition in signature")
		default:
			panic("modhost: unsupported type in signature")
		}
	}
	return out
}

func signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(p))
	}
	b.WriteString(") -> (")
	for i, r := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(r))
	}
	b.WriteByte(')')
	return b.String()
}

// validateExports checks that every required export is present with the
// expected signature.
func validateExports(cm wazero.CompiledModule) error {
	fns := cm.ExportedFunctions()
	for _, want := range requiredExports {
		def, ok := fns[want.name]
		if !ok {
			return errors.MissingExport(want.name)
		}
		params, results := flatten(want.params), flatten(want.results)
		if !slices.Equal(def.ParamTypes(), params) || !slices.Equal(def.ResultTypes(), results) {
			return errors.SignatureMismatch(want.name,
				signature(params, results),
				signature(def.ParamTypes(), def.ResultTypes()))
		}
	}
	if _, ok := cm.ExportedMemories()[memoryExport]; !ok {
		return errors.MissingExport(memoryExport)
	}
	return nil
}

// validateImports checks every guest import against the binding table so
// an unknown or mistyped import fails as a link error instead of an
// opaque instantiation failure.
func validateImports(cm wazero.CompiledModule, table map[string]*binding) error {
	for _, def := range cm.ImportedFunctions() {
		ns, name, _ := def.Import()
		b, ok := table[ns+"."+name]
		if !ok {
			return errors.New(errors.PhaseLink, errors.KindMissingImport).
				Path(ns, name).
				Detail("host function %s.%s does not exist", ns, name).
				Build()
		}
		if !slices.Equal(def.ParamTypes(), b.flatParams) || !slices.Equal(def.ResultTypes(), b.flatResults) {
			return errors.New(errors.PhaseLink, errors.KindSignatureMismatch).
				Path(ns, name).
				Detail("import %s.%s: want %s, got %s", ns, name,
					signature(b.flatParams, b.flatResults),
					signature(def.ParamTypes(), def.ResultTypes())).
				Build()
		}
	}
	if mems := cm.ImportedMemories(); len(mems) > 0 {
		ns, name, _ := mems[0].Import()
		return errors.New(errors.PhaseLink, errors.KindMissingImport).
			Path(ns, name).
			Detail("mods must define their own memory").
			Build()
	}
	return nil
}
