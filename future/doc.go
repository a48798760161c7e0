// Package future provides the Future primitive awaited and completed by state machines.
//
// A Future is the consumer side: it can be polled (IsCompleted, Result),
// waited on (Await, Done) or observed through a completion callback
// (OnCompleted). A Promise is the producer side: exactly one of SetResult or
// SetError may be called, once. Completing a promise twice is a programming
// error and panics.
//
// Callback contract: every callback registered with OnCompleted is invoked
// exactly once. Callbacks registered before completion run on the completing
// goroutine after the outcome is visible; callbacks registered after
// completion run inline on the registering goroutine.
package future
