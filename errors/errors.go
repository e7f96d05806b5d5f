package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve  Phase = "resolve"  // vtable resolution
	PhaseAttach   Phase = "attach"   // AttachCurrentThread
	PhaseDetach   Phase = "detach"   // DetachCurrentThread
	PhaseEnv      Phase = "env"      // GetEnv
	PhasePlatform Phase = "platform" // foreign-call facility
)

// Kind categorizes the error
type Kind string

const (
	KindCallFailed        Kind = "call_failed"
	KindFault             Kind = "fault"
	KindNilPointer        Kind = "nil_pointer"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindAllocation        Kind = "allocation"
	KindUnsupported       Kind = "unsupported"
	KindInvalidInput      Kind = "invalid_input"
	KindSignatureMismatch Kind = "signature_mismatch"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	Operation string
	Detail    string
	Code      int32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Operation != "" {
		b.WriteString(": ")
		b.WriteString(e.Operation)
	}

	if e.Kind == KindCallFailed {
		fmt.Fprintf(&b, " failed: %d", e.Code)
		if name, ok := resultNames[e.Code]; ok {
			b.WriteString(" (")
			b.WriteString(name)
			b.WriteByte(')')
		}
	}

	if e.Detail != "" {
		if e.Operation != "" {
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

// Operation sets the name of the native operation involved
func (b *Builder) Operation(op string) *Builder {
	b.err.Operation = op
	return b
}

// Code sets the raw native result code
func (b *Builder) Code(code int32) *Builder {
	b.err.Code = code
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

// CallFailed creates the error for a foreign call that returned a
// non-success result code.
func CallFailed(operation string, code int32) *Error {
	return &Error{
		Phase:     phaseOf(operation),
		Kind:      KindCallFailed,
		Operation: operation,
		Code:      code,
	}
}

// AsCallFailed finds the first call_failed error in err's tree.
func AsCallFailed(err error) (*Error, bool) {
	switch x := err.(type) {
	case nil:
		return nil, false
	case *Error:
		if x.Kind == KindCallFailed {
			return x, true
		}
		return AsCallFailed(x.Cause)
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if e, ok := AsCallFailed(inner); ok {
				return e, true
			}
		}
		return nil, false
	default:
		return AsCallFailed(stderrors.Unwrap(err))
	}
}

// Fault creates an error for a foreign call that faulted instead of returning.
func Fault(phase Phase, operation string, recovered any) *Error {
	err := &Error{
		Phase:     phase,
		Kind:      KindFault,
		Operation: operation,
		Value:     recovered,
	}
	if cause, ok := recovered.(error); ok {
		err.Cause = cause
	} else {
		err.Detail = fmt.Sprint(recovered)
	}
	return err
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Detail: what + " is null",
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
	}
}

// OutOfBounds creates an error for an access to unmapped memory
func OutOfBounds(phase Phase, addr uintptr) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("address %#x is not mapped", addr),
		Value:  addr,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
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

// SignatureMismatch creates an error for binding a function with the wrong type
func SignatureMismatch(phase Phase, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindSignatureMismatch,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
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

func phaseOf(operation string) Phase {
	switch {
	case strings.Contains(operation, "Attach"):
		return PhaseAttach
	case strings.Contains(operation, "Detach"):
		return PhaseDetach
	case strings.Contains(operation, "GetEnv"):
		return PhaseEnv
	default:
		return PhasePlatform
	}
}
