package asyncsm

// Awaiter is a pending operation a state machine can wait on.
//
// IsCompleted reports whether the operation has already finished.
// OnCompleted registers a callback that is invoked exactly once when the
// operation finishes; it may run on any goroutine, and it may run inline
// if the operation completed concurrently with the registration.
type Awaiter interface {
	IsCompleted() bool
	OnCompleted(func())
}

// Void is the result type of computations that produce no value.
type Void = struct{}
