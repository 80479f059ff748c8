// Package errors provides structured error types for the mod runtime.
//
// Errors are categorized by Phase (where in a mod's lifecycle the error
// occurred) and Kind (error category). Only three phases are ever visible
// to the supervisor as mod failures:
//
//	compile   malformed module bytes            (CompileError)
//	link      missing/mismatched imports/exports (LinkError)
//	boundary  bad ptr/len, UTF-8 or record       (BoundaryFault)
//
// plus guest traps raised from the call phase. Logic errors such as an
// operation on a despawned entity never become errors; they degrade to
// "not found" inside the host function.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLink, errors.KindMissingExport).
//		Mod("spawner").
//		Path("update").
//		Detail("required export not found").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.MissingExport("update")
//	err := errors.OutOfBounds(ptr, length, memSize)
//
// Whole phases can be matched with errors.Is and the phase sentinels:
//
//	if errors.IsLink(err) { ... }
package errors
