package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseStart    Phase = "start"    // machine construction and first turn
	PhaseTurn     Phase = "turn"     // transition invocation
	PhaseAwait    Phase = "await"    // suspension points
	PhaseRecover  Phase = "recover"  // guarded regions and handlers
	PhaseFinalize Phase = "finalize" // handing the outcome to the future
	PhaseComplete Phase = "complete" // future producer side
	PhaseAdapt    Phase = "adapt"    // awaiter capability lookup
	PhaseBuild    Phase = "build"    // state table validation
	PhaseLoad     Phase = "load"     // module loading
	PhaseRuntime  Phase = "runtime"  // runtime operations
)

// Kind categorizes the error
type Kind string

const (
	KindProtocolViolation Kind = "protocol_violation"
	KindAlreadyStarted    Kind = "already_started"
	KindAlreadyCompleted  Kind = "already_completed"
	KindNotCompleted      Kind = "not_completed"
	KindNotInTurn         Kind = "not_in_turn"
	KindUnsupported       Kind = "unsupported"
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindPanic             Kind = "panic"
	KindTimeout           Kind = "timeout"
	KindCanceled          Kind = "canceled"
	KindInstantiation     Kind = "instantiation"
	KindTrap              Kind = "trap"
)

// Error is the structured error type used throughout the engine
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Detail   string
	State    uint32
	HasState bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.HasState {
		b.WriteString(" at state ")
		b.WriteString(strconv.FormatUint(uint64(e.State), 10))
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

// State sets the state id the machine was in
func (b *Builder) State(id uint32) *Builder {
	b.err.State = id
	b.err.HasState = true
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

// ProtocolViolation creates a protocol violation error.
// Protocol violations are programmer errors and are never recovered in-machine.
func ProtocolViolation(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocolViolation,
		Detail: detail,
	}
}

// AlreadyStarted creates the error raised when Start is called twice
func AlreadyStarted(id string) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindAlreadyStarted,
		Detail: fmt.Sprintf("machine %s already started", id),
	}
}

// AlreadyCompleted creates the error raised when a future is completed twice
func AlreadyCompleted(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyCompleted,
		Detail: "future already completed",
	}
}

// NotCompleted creates the error returned when reading a pending future
func NotCompleted(phase Phase) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotCompleted,
		Detail: "future not completed",
	}
}

// NotInTurn creates the error raised when a turn-only operation runs outside a turn
func NotInTurn(op string) *Error {
	return &Error{
		Phase:  PhaseAwait,
		Kind:   KindNotInTurn,
		Detail: fmt.Sprintf("%s called outside of an active turn", op),
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

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
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

// Trap creates an error for a guest function that trapped or exited
func Trap(fn string, cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindTrap,
		Detail: "call " + strconv.Quote(fn),
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// IsProtocolViolation reports whether err, or any error it wraps, is a
// protocol violation, a second Start or a second completion.
func IsProtocolViolation(err error) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		switch e.Kind {
		case KindProtocolViolation, KindAlreadyStarted, KindAlreadyCompleted, KindNotInTurn:
			return true
		}
		err = e.Cause
	}
	return false
}

// PanicError is a panic recovered from a transition or an operation,
// converted into an ordinary fault.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current goroutine's stack. Call it from the
// deferred recover so the stack still shows the panicking frames.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", PhaseTurn, KindPanic, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// FromPanic converts a recovered panic value into a fault. Error values are
// returned unchanged so their identity survives capture and rethrow; runtime
// errors are wrapped to keep the stack, and still unwrap to the original.
func FromPanic(v any) error {
	if err, ok := v.(error); ok {
		if _, isRuntime := err.(runtime.Error); !isRuntime {
			return err
		}
	}
	return NewPanicError(v)
}
