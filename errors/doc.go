// Package errors provides structured error types for the asyncsm engine.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries a state id, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAwait, errors.KindNotInTurn).
//		State(3).
//		Detail("MoveNext called outside of a turn").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ProtocolViolation(errors.PhaseStart, "machine already started")
//	err := errors.AlreadyCompleted(errors.PhaseComplete)
//
// Panics recovered inside a transition are captured as *PanicError, which keeps
// the panic value and the stack of the goroutine that panicked.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
