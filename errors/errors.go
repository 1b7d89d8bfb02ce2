package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the protocol the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // handle registration at construction
	PhaseConnect  Phase = "connect"  // host connecting handles
	PhaseEncode   Phase = "encode"   // entity to wire
	PhaseDecode   Phase = "decode"   // wire to entity
	PhaseDispatch Phase = "dispatch" // routing host events to hooks
	PhaseResolve  Phase = "resolve"  // reference dereference
	PhaseService  Phase = "service"  // service calls and responses
	PhaseRender   Phase = "render"   // slot rendering
	PhaseHost     Phase = "host"     // host-side bookkeeping
	PhaseLoad     Phase = "load"     // guest module loading
	PhaseConfig   Phase = "config"   // scenario manifests
)

// Kind categorizes the error
type Kind string

const (
	KindUnregisteredHandle  Kind = "unregistered_handle"
	KindDuplicateHandle     Kind = "duplicate_handle"
	KindMalformedWire       Kind = "malformed_wire_format"
	KindTypeMismatch        Kind = "type_mismatch"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindInvalidState        Kind = "invalid_state"
	KindNotFound            Kind = "not_found"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidInput        Kind = "invalid_input"
	KindUnknownParticle     Kind = "unknown_particle"
	KindPermission          Kind = "permission"
)

// Sentinels match any error of the same Kind, whatever the phase.
var (
	ErrUnregisteredHandle  = &Error{Kind: KindUnregisteredHandle}
	ErrDuplicateHandle     = &Error{Kind: KindDuplicateHandle}
	ErrMalformedWire       = &Error{Kind: KindMalformedWire}
	ErrTypeMismatch        = &Error{Kind: KindTypeMismatch}
	ErrUnresolvedReference = &Error{Kind: KindUnresolvedReference}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidData         = &Error{Kind: KindInvalidData}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrUnknownParticle     = &Error{Kind: KindUnknownParticle}
	ErrPermission          = &Error{Kind: KindPermission}
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Schema string
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

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Schema != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Schema != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", schema ")
			b.WriteString(e.Schema)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("schema ")
			b.WriteString(e.Schema)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Schema != "" {
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

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
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

// Path sets the handle or field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Schema sets the entity schema name
func (b *Builder) Schema(name string) *Builder {
	b.err.Schema = name
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

// UnregisteredHandle creates an error for a handle name that was never registered
func UnregisteredHandle(phase Phase, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnregisteredHandle,
		Path:   []string{name},
		Detail: fmt.Sprintf("handle %q is not registered", name),
		Value:  name,
	}
}

// DuplicateHandle creates an error for a handle name registered twice
func DuplicateHandle(name string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindDuplicateHandle,
		Path:   []string{name},
		Detail: fmt.Sprintf("handle %q registered more than once", name),
		Value:  name,
	}
}

// Malformed creates a wire format error at the given byte offset
func Malformed(phase Phase, path []string, offset int, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedWire,
		Path:   path,
		Detail: fmt.Sprintf("offset %d: %s", offset, detail),
		Value:  offset,
	}
}

// TypeMismatch creates a type mismatch error for a typed handle accessor
func TypeMismatch(phase Phase, path []string, goType, schema string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Schema: schema,
	}
}

// Unresolved creates an error for reading a reference that has not been resolved
func Unresolved(id, key string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolvedReference,
		Path:   []string{key, id},
		Detail: "reference not resolved yet",
	}
}

// InvalidState creates an error for an operation issued in the wrong lifecycle state
func InvalidState(phase Phase, op, state string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("%s not allowed in state %s", op, state),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
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

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// UnknownParticle creates an error for a particle type missing from the registry
func UnknownParticle(typeName string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindUnknownParticle,
		Detail: fmt.Sprintf("particle type %q is not registered", typeName),
		Value:  typeName,
	}
}

// Permission creates an error for a write to a handle the host connected read-only
func Permission(phase Phase, name, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPermission,
		Path:   []string{name},
		Detail: fmt.Sprintf("%s on handle connected without write access", op),
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

// Load creates a guest loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
