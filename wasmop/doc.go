// Package wasmop runs WebAssembly exports as awaitable operations.
//
// An Engine wraps a wazero runtime. Each loaded module is instantiated once
// and its exports are invoked through Module.Call, which returns a
// future.Future that a state machine can await with statemachine.MoveNext:
//
//	eng := wasmop.NewEngine(ctx, nil)
//	defer eng.Close(ctx)
//	mod, err := eng.Load(ctx, "math", wasmBytes)
//	fut := mod.Call(ctx, "add", 2, 3)
//
// Calls on one module are serialized. Arguments and results are raw wasm
// values as uint64, the same encoding wazero's api.Function uses.
//
// Engines close a module whose call context is canceled mid-call; later
// calls on that module fail.
package wasmop
