package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in a mod's lifecycle the error occurred
type Phase string

const (
	PhaseCompile  Phase = "compile"  // wasm decoding and validation
	PhaseLink     Phase = "link"     // host imports and guest exports
	PhaseCall     Phase = "call"     // guest exports, new and init included
	PhaseBoundary Phase = "boundary" // data crossing the sandbox boundary
	PhaseLoad     Phase = "load"     // reading module files
	PhaseHost     Phase = "host"     // host function table construction
	PhaseConfig   Phase = "config"   // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidModule     Kind = "invalid_module"
	KindMissingExport     Kind = "missing_export"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindMissingImport     Kind = "missing_import"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindInvalidRecord     Kind = "invalid_record"
	KindAllocation        Kind = "allocation"
	KindTrap              Kind = "trap"
	KindFailed            Kind = "failed"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindRegistration      Kind = "registration"
	KindInstantiation     Kind = "instantiation"
	KindIO                Kind = "io"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Mod    string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Mod != "" {
		b.WriteString(" in mod ")
		b.WriteString(e.Mod)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// Two errors match when phase and kind agree; an empty kind in target
// matches any kind of the same phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Phase != t.Phase {
		return false
	}
	return t.Kind == "" || e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Mod sets the name of the mod the error belongs to
func (b *Builder) Mod(name string) *Builder {
	b.err.Mod = name
	return b
}

// Path sets the host function or export path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is checks against a whole phase.
var (
	ErrCompile  = &Error{Phase: PhaseCompile}
	ErrLink     = &Error{Phase: PhaseLink}
	ErrBoundary = &Error{Phase: PhaseBoundary}
	ErrTrap     = &Error{Phase: PhaseCall, Kind: KindTrap}
)

// IsCompile reports whether err is a module compilation failure.
func IsCompile(err error) bool { return stderrors.Is(err, ErrCompile) }

// IsLink reports whether err is an import or export linking failure.
func IsLink(err error) bool { return stderrors.Is(err, ErrLink) }

// IsBoundary reports whether err is a boundary fault.
func IsBoundary(err error) bool { return stderrors.Is(err, ErrBoundary) }

// IsTrap reports whether err is a guest trap.
func IsTrap(err error) bool { return stderrors.Is(err, ErrTrap) }

// As is errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Convenience constructors for common error patterns

// Compile wraps a wasm compilation failure
func Compile(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindInvalidModule,
		Detail: "compile module",
		Cause:  cause,
	}
}

// MissingExport creates a link error for an absent guest export
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindMissingExport,
		Path:   []string{name},
		Detail: fmt.Sprintf("required export %q not found", name),
	}
}

// SignatureMismatch creates a link error for an export with the wrong type
func SignatureMismatch(name, want, got string) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindSignatureMismatch,
		Path:   []string{name},
		Detail: fmt.Sprintf("want %s, got %s", want, got),
	}
}

// OutOfBounds creates a boundary fault for an invalid guest memory range
func OutOfBounds(ptr, length uint32, size uint32) *Error {
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) outside guest memory of %d bytes", ptr, uint64(ptr)+uint64(length), size),
	}
}

// InvalidUTF8 creates a boundary fault for a malformed guest string
func InvalidUTF8(data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// InvalidRecord creates a boundary fault for an undecodable record
func InvalidRecord(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   KindInvalidRecord,
		Detail: detail,
	}
}

// AllocationFailed creates a boundary fault for a failed guest alloc call
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseBoundary,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("guest alloc of %d bytes failed", size),
		Cause:  cause,
	}
}

// Trap wraps an error returned by a guest call
func Trap(export string, cause error) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindTrap,
		Path:   []string{export},
		Detail: "guest trapped",
		Cause:  cause,
	}
}

// Failed reports a call on a mod that is excluded until reloaded
func Failed(mod string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindFailed,
		Mod:    mod,
		Detail: "mod is failed and must be reloaded",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a host function registration error
func Registration(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register %s#%s", namespace, name),
		Cause:  cause,
	}
}

// Instantiation creates a link error for a failed instantiation
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseLink,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// WithMod returns a copy of err tagged with the mod name when err is an
// *Error without one. Other errors are returned unchanged.
func WithMod(err error, mod string) error {
	e, ok := err.(*Error)
	if !ok || e.Mod != "" {
		return err
	}
	cp := *e
	cp.Mod = mod
	return &cp
}
