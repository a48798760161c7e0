// Package statemachine implements the turn-based execution engine behind asyncsm.
//
// # Turns
//
// A Machine owns one in-flight computation. Its Transition function is
// invoked once per turn with the machine itself; the function switches on
// m.State() to find where to continue, runs until it has to wait, and then
// either continues synchronously or returns:
//
//	if !statemachine.MoveNext(m, op, 2) {
//	    return nil // suspended; resumed at state 2 when op completes
//	}
//
// A turn ends when the transition returns. If the state id is Final and the
// turn did not suspend, the machine finalizes: the outcome (m.Complete value
// or the captured fault) is handed to the machine's future exactly once and
// the locals are zeroed. Awaiting with Final as the resumption point runs the
// transition once more at the Final label, where it typically calls Complete.
//
// # Faults
//
// A non-nil error returned by the transition, or a panic inside it, is
// captured as the machine's fault. While guarded regions are open
// (EnterGuardedCode without a matching ExitGuardedCode) the transition is
// invoked again in the same turn so the region's handler can inspect the
// fault with TryRecover; otherwise the machine finalizes with the fault.
//
// Try/catch/finally lowers to:
//
//	m.EnterGuardedCode(bodyState)      // try {
//	...                                // body, may await
//	m.ExitGuardedCode(outer, true)     // } finally {
//	...                                // finally body, may await
//	if err := m.Rethrow(); err != nil {
//	    return err                     // }
//	}
//
// with handlers at the fault label:
//
//	if e, ok := statemachine.TryRecover[*NotFound](m); ok { ... }
//
// # Concurrency
//
// Turns of one machine never overlap. A continuation that fires while the
// registering turn is still running is queued on an atomic gate and run by
// the goroutine that owns the turn once it returns.
package statemachine
