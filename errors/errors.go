package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the binding pipeline the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // type-to-ABI resolution
	PhasePlan     Phase = "plan"     // ownership/signature planning
	PhaseGenerate Phase = "generate" // shim/glue rendering
	PhaseEmit     Phase = "emit"     // target module assembly
	PhaseLink     Phase = "link"     // wasm trampoline synthesis
	PhaseLoad     Phase = "load"     // module/IR loading
	PhaseRuntime  Phase = "runtime"  // host-side calls
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedType Kind = "unsupported_type"
	KindRecursiveType   Kind = "recursive_type"
	KindTypeMismatch    Kind = "type_mismatch"
	KindOwnership       Kind = "ownership"
	KindUseAfterFree    Kind = "use_after_free"
	KindInvalidUTF8     Kind = "invalid_utf8"
	KindInvalidEnum     Kind = "invalid_enum"
	KindInvalidData     Kind = "invalid_data"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindAllocation      Kind = "allocation"
	KindOverflow        Kind = "overflow"
	KindNotFound        Kind = "not_found"
	KindNotInitialized  Kind = "not_initialized"
	KindInvalidInput    Kind = "invalid_input"
	KindInstantiation   Kind = "instantiation"
	KindAborted         Kind = "aborted"
	KindSyntax          Kind = "syntax"
)

// Error is the structured error type used throughout the generator and host
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	RustType string
	JsType   string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.RustType != "" || e.JsType != "" {
		b.WriteString(": ")
		if e.RustType != "" && e.JsType != "" {
			b.WriteString("Rust type ")
			b.WriteString(e.RustType)
			b.WriteString(", JS shape ")
			b.WriteString(e.JsType)
		} else if e.RustType != "" {
			b.WriteString("Rust type ")
			b.WriteString(e.RustType)
		} else {
			b.WriteString("JS shape ")
			b.WriteString(e.JsType)
		}
	}

	if e.Detail != "" {
		if e.RustType != "" || e.JsType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
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

// Path sets the type path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// RustType sets the Rust-side type name
func (b *Builder) RustType(t string) *Builder {
	b.err.RustType = t
	return b
}

// JsType sets the JS-side shape name
func (b *Builder) JsType(t string) *Builder {
	b.err.JsType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
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

// Convenience constructors for common error patterns

// UnsupportedType creates an error for a type with no cross-boundary representation
func UnsupportedType(phase Phase, path []string, rustType, reason string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindUnsupportedType,
		Path:     path,
		RustType: rustType,
		Detail:   reason,
	}
}

// RecursiveType creates an error for a self-referential type
func RecursiveType(path []string, rustType string) *Error {
	return &Error{
		Phase:    PhaseResolve,
		Kind:     KindRecursiveType,
		Path:     path,
		RustType: rustType,
		Detail:   "type refers to itself; descriptor trees must be finite",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, rustType, jsType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		RustType: rustType,
		JsType:   jsType,
	}
}

// UseAfterFree creates an error for a handle used after release
func UseAfterFree(typeName string) *Error {
	return &Error{
		Phase:    PhaseRuntime,
		Kind:     KindUseAfterFree,
		RustType: typeName,
		Detail:   fmt.Sprintf("attempt to use %s after it was freed", typeName),
	}
}

// Ownership creates an ownership violation error
func Ownership(path []string, detail string) *Error {
	return &Error{
		Phase:  PhasePlan,
		Kind:   KindOwnership,
		Path:   path,
		Detail: detail,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// InvalidEnum creates an out-of-domain enum discriminant error
func InvalidEnum(phase Phase, value any, enumType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidEnum,
		RustType: enumType,
		Detail:   fmt.Sprintf("invalid discriminant %v for enum %s", value, enumType),
		Value:    value,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes in linear memory", size),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("memory range [%d, %d) out of bounds", offset, offset+length),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOverflow,
		Path:     path,
		RustType: targetType,
		Detail:   fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:    value,
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

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
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

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Aborted creates an error for an instance left unusable by a panic
func Aborted(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindAborted,
		Detail: "instance aborted by an unrecoverable panic",
		Cause:  cause,
	}
}

// Load creates a module/IR loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Syntax creates an emit-phase syntax error for generated output
func Syntax(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseEmit,
		Kind:   KindSyntax,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingIntrinsic represents one absent reserved export
type MissingIntrinsic struct {
	Name string // e.g., "__wbindgen_malloc"
}

// MissingIntrinsicsError is returned when a wasm binary lacks the reserved
// export surface the generated glue depends on.
type MissingIntrinsicsError struct {
	Intrinsics []MissingIntrinsic
}

// NewMissingIntrinsicsError creates an error from a list of export names
func NewMissingIntrinsicsError(names []string) *MissingIntrinsicsError {
	result := &MissingIntrinsicsError{
		Intrinsics: make([]MissingIntrinsic, 0, len(names)),
	}
	for _, n := range names {
		result.Intrinsics = append(result.Intrinsics, MissingIntrinsic{Name: n})
	}
	return result
}

func (e *MissingIntrinsicsError) Error() string {
	if len(e.Intrinsics) == 0 {
		return "[link] missing_intrinsic: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("wasm module is missing %d reserved export(s):\n", len(e.Intrinsics)))
	for _, in := range e.Intrinsics {
		b.WriteString("  - ")
		b.WriteString(in.Name)
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingIntrinsicsError) Is(target error) bool {
	_, ok := target.(*MissingIntrinsicsError)
	return ok
}

// DemangleRust attempts to extract a readable path from a mangled Rust symbol.
// Diagnostics that surface raw wasm export names go through this first.
func DemangleRust(name string) string {
	// Rust mangled names start with _ZN
	if !strings.HasPrefix(name, "_ZN") {
		return name
	}

	// Format: _ZN<len><name><len><name>...E
	s := name[3:]
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		lenEnd := 0
		for lenEnd < len(s) && s[lenEnd] >= '0' && s[lenEnd] <= '9' {
			lenEnd++
		}
		if lenEnd == 0 {
			break
		}

		length := 0
		for i := 0; i < lenEnd; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[lenEnd:]

		if length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		// Skip hash suffixes (17 char segments starting with 'h')
		if len(part) == 17 && part[0] == 'h' {
			allHex := true
			for i := 1; i < 17; i++ {
				c := part[i]
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					allHex = false
					break
				}
			}
			if allHex {
				continue
			}
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return name
	}

	return strings.Join(parts, "::")
}
