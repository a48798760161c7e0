// Package builder assembles state machine transitions from a state table.
//
// Each state id maps to a step and, when the state lies inside a guarded
// region, to the fault label the region's handlers start at. The generated
// transition dispatches on the machine's state id and runs steps back to
// back until one suspends, completes the machine, or fails.
//
//	prog, err := builder.New[locals, int](1).
//	    State(1, fetch, builder.Named("fetch")).
//	    State(2, body, builder.FaultTo(9)).
//	    State(9, handler).
//	    Build()
//	fut := prog.Start(locals{}, nil)
//
// Steps move between states with m.Goto, statemachine.MoveNext and the
// guarded-region calls. A step that makes no move at all is reported as a
// protocol violation rather than spinning.
package builder
