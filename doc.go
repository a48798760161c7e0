// Package asyncsm provides a hand-rolled asynchronous state-machine engine for Go.
//
// A computation is written as a single transition function that is invoked
// repeatedly, one "turn" at a time. The function dispatches on the machine's
// state id, runs ordinary code until it has to wait for a pending operation,
// and then either continues synchronously (the operation already completed)
// or returns so the machine can be resumed later by the operation's
// completion callback. Guarded regions, captured faults and finally blocks
// are tracked by the machine itself, not by the Go call stack.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	asyncsm/             Root package with the Awaiter capability and Void
//	├── future/          Future primitive: Future (consumer) and Promise (producer)
//	├── statemachine/    Machine, turn loop, await, guarded regions, fault recovery
//	├── builder/         Table-driven state machine builder (state table -> transition)
//	├── errors/          Structured error types for protocol violations and faults
//	├── telemetry/       Prometheus and OpenTelemetry observers
//	├── wasmop/          WebAssembly export calls as awaitable operations
//	└── cmd/smrun/       Demo runner with an interactive TUI
//
// # Quick Start
//
// A computation that awaits one operation and returns its value plus one:
//
//	type locals struct {
//	    op *future.Future[int]
//	}
//
//	fut := statemachine.Start(func(m *statemachine.Machine[locals, int]) error {
//	    if m.Entering() {
//	        m.Locals.op = fetch()
//	        if !statemachine.MoveNext(m, m.Locals.op, 1) {
//	            return nil
//	        }
//	    }
//	    v, err := m.Locals.op.Result()
//	    if err != nil {
//	        return err
//	    }
//	    m.Complete(v + 1)
//	    return nil
//	}, locals{})
//
//	v, err := fut.Await(ctx)
//
// # Thread Safety
//
// At most one turn of a machine runs at any moment. Turns may run on
// different goroutines: a suspended machine is resumed on whichever goroutine
// completes the awaited operation, unless Config.Dispatch says otherwise.
// Independent machines share no state.
package asyncsm
