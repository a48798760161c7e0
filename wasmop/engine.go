package wasmop

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/asyncsm/errors"
	"github.com/wippyai/asyncsm/future"
)

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// KeepRunningOnCancel disables closing a module when the context of an
	// in-flight call is done. Guest code then runs to completion regardless
	// of cancellation.
	KeepRunningOnCancel bool
}

// Engine compiles and instantiates modules on a shared wazero runtime.
type Engine struct {
	runtime wazero.Runtime
	log     *zap.Logger
	modules map[string]*Module
	mu      sync.Mutex
}

// NewEngine creates an engine. cfg may be nil.
func NewEngine(ctx context.Context, cfg *Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig()
	closeOnDone := true
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		closeOnDone = !cfg.KeepRunningOnCancel
	}
	runtimeCfg = runtimeCfg.WithCloseOnContextDone(closeOnDone)

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		log:     Logger(),
		modules: make(map[string]*Module),
	}
}

// Load compiles wasm and instantiates it under name.
func (e *Engine) Load(ctx context.Context, name string, wasm []byte) (*Module, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module name is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.modules[name]; dup {
		return nil, errors.InvalidInput(errors.PhaseLoad, "module "+name+" already loaded")
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile "+name, err)
	}

	inst, err := e.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName(name).WithStartFunctions())
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.Instantiation(err)
	}

	exports := make([]string, 0, len(compiled.ExportedFunctions()))
	for fn := range compiled.ExportedFunctions() {
		exports = append(exports, fn)
	}
	sort.Strings(exports)

	m := &Module{
		engine:   e,
		name:     name,
		inst:     inst,
		compiled: compiled,
		exports:  exports,
		log:      e.log.With(zap.String("module", name)),
	}
	e.modules[name] = m
	m.log.Debug("module loaded", zap.Strings("exports", exports))
	return m, nil
}

// Module returns a loaded module by name.
func (e *Engine) Module(name string) (*Module, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.modules[name]
	return m, ok
}

// Close releases the runtime and every module loaded on it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.modules = make(map[string]*Module)
	e.mu.Unlock()
	return e.runtime.Close(ctx)
}

// Module is an instantiated wasm module.
type Module struct {
	engine   *Engine
	inst     api.Module
	compiled wazero.CompiledModule
	log      *zap.Logger
	name     string
	exports  []string
	mu       sync.Mutex
}

// Name returns the name the module was loaded under.
func (m *Module) Name() string {
	return m.name
}

// Exports lists exported function names in sorted order.
func (m *Module) Exports() []string {
	out := make([]string, len(m.exports))
	copy(out, m.exports)
	return out
}

// Call invokes the export fn on a new goroutine. The returned future
// completes with the raw results or the call's failure.
func (m *Module) Call(ctx context.Context, fn string, args ...uint64) *future.Future[[]uint64] {
	return future.Go(ctx, func(ctx context.Context) ([]uint64, error) {
		return m.CallSync(ctx, fn, args...)
	})
}

// Op returns a deferred call of fn, executed by future.Run.
func (m *Module) Op(fn string, args ...uint64) future.Op[[]uint64] {
	return future.OpFunc[[]uint64](func(ctx context.Context) ([]uint64, error) {
		return m.CallSync(ctx, fn, args...)
	})
}

// CallSync invokes fn on the caller's goroutine.
func (m *Module) CallSync(ctx context.Context, fn string, args ...uint64) ([]uint64, error) {
	f := m.inst.ExportedFunction(fn)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", fn)
	}
	if want := len(f.Definition().ParamTypes()); want != len(args) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("%s takes %d arguments, got %d", fn, want, len(args)).
			Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	results, err := f.Call(ctx, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			kind := errors.KindCanceled
			if stderrors.Is(ctxErr, context.DeadlineExceeded) {
				kind = errors.KindTimeout
			}
			m.log.Warn("call interrupted", zap.String("func", fn), zap.Error(ctxErr))
			return nil, errors.Wrap(errors.PhaseRuntime, kind, ctxErr, "call "+fn)
		}
		m.log.Debug("call trapped", zap.String("func", fn), zap.Error(err))
		return nil, errors.Trap(fn, err)
	}
	return results, nil
}

// Close releases the module instance and unloads its name.
func (m *Module) Close(ctx context.Context) error {
	m.engine.mu.Lock()
	if m.engine.modules[m.name] == m {
		delete(m.engine.modules, m.name)
	}
	m.engine.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.inst.Close(ctx)
	if cerr := m.compiled.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
