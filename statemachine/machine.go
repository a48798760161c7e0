package statemachine

import (
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wippyai/asyncsm/errors"
	"github.com/wippyai/asyncsm/future"
)

// StateID identifies a resumption point of a transition function.
type StateID uint32

// Final is the terminal state id. It is also the state id of a machine that
// has not run yet; Entering tells the two apart.
const Final StateID = 0

// Status is a snapshot of where a machine is in its lifecycle.
type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusSuspended
	StatusCompleted
	StatusFaulted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusCompleted:
		return "completed"
	case StatusFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Transition runs one turn of a computation. Returning a non-nil error
// raises it as the machine's fault.
type Transition[S, R any] func(m *Machine[S, R]) error

// Machine is one in-flight asynchronous computation.
//
// Locals holds the computation's local variables across suspensions. It is
// owned by the turn currently running and must not be touched from other
// goroutines.
type Machine[S, R any] struct {
	Locals S

	transition Transition[S, R]
	sink       *future.Promise[R]
	result     R
	fault      error
	cont       func()
	log        *zap.Logger
	cfg        Config
	startedAt  time.Time
	turns      uint64
	moves      uint64
	id         ulid.ULID
	handle     Handle
	guardDepth uint32

	state   atomic.Uint32
	status  atomic.Int32
	gate    atomic.Int32
	started atomic.Bool
	inTurn  atomic.Bool

	faultSuspended bool
	hasResult      bool
	entering       bool
	awaiting       bool
	finalized      bool
}

// New creates a machine without running it. cfg may be nil.
func New[S, R any](transition Transition[S, R], locals S, cfg *Config) *Machine[S, R] {
	if transition == nil {
		panic(errors.InvalidInput(errors.PhaseStart, "nil transition"))
	}
	m := &Machine[S, R]{
		Locals:     locals,
		transition: transition,
		sink:       future.NewPromise[R](),
		cfg:        cfg.withDefaults(),
		id:         ulid.Make(),
		entering:   true,
	}
	m.cont = m.onAwaitCompleted
	m.log = m.cfg.Logger.With(zap.Stringer("machine", m.id), zap.String("name", m.cfg.Name))
	m.state.Store(uint32(Final))
	return m
}

// Start runs the first turn of a new machine and returns its future.
func Start[S, R any](transition Transition[S, R], locals S) *future.Future[R] {
	return New(transition, locals, nil).Start()
}

// StartWithConfig is Start with explicit configuration.
func StartWithConfig[S, R any](transition Transition[S, R], locals S, cfg *Config) *future.Future[R] {
	return New(transition, locals, cfg).Start()
}

// Start performs the first turn and returns the future of the computation.
// Calling Start a second time panics.
func (m *Machine[S, R]) Start() *future.Future[R] {
	if !m.started.CompareAndSwap(false, true) {
		err := errors.AlreadyStarted(m.id.String())
		m.log.Error("machine started twice", zap.Error(err))
		panic(err)
	}
	m.startedAt = time.Now()
	m.status.Store(int32(StatusRunning))
	if m.cfg.Registry != nil {
		m.handle = m.cfg.Registry.Insert(m)
	}
	m.log.Debug("machine started")
	m.emit(EventStarted, nil)
	m.resume()
	return m.sink.Future()
}

// Future returns the future completed when the machine finalizes.
func (m *Machine[S, R]) Future() *future.Future[R] {
	return m.sink.Future()
}

// ID returns the machine's unique identifier.
func (m *Machine[S, R]) ID() ulid.ULID {
	return m.id
}

// Name returns the configured computation name.
func (m *Machine[S, R]) Name() string {
	return m.cfg.Name
}

// State returns the current state id. Safe to call from any goroutine.
func (m *Machine[S, R]) State() StateID {
	return StateID(m.state.Load())
}

// Status returns the lifecycle status. Safe to call from any goroutine.
func (m *Machine[S, R]) Status() Status {
	return Status(m.status.Load())
}

// Entering reports whether this is the first invocation of the transition.
func (m *Machine[S, R]) Entering() bool {
	return m.entering
}

// Turns returns how many turns have started.
func (m *Machine[S, R]) Turns() uint64 {
	return m.turns
}

// Moves counts calls that set the state id in this machine's lifetime.
// A step that leaves it unchanged made no move at all.
func (m *Machine[S, R]) Moves() uint64 {
	return m.moves
}

// Depth returns the number of open guarded regions.
func (m *Machine[S, R]) Depth() uint32 {
	return m.guardDepth
}

// Goto sets the state id the transition continues from.
func (m *Machine[S, R]) Goto(id StateID) {
	m.mustBeInTurn("Goto")
	m.moves++
	m.state.Store(uint32(id))
}

// Complete stores the computation's result and moves to Final.
// The machine finalizes when the current turn returns.
func (m *Machine[S, R]) Complete(value R) {
	m.mustBeInTurn("Complete")
	m.result = value
	m.hasResult = true
	m.moves++
	m.state.Store(uint32(Final))
}

// HasResult reports whether Complete has been called.
func (m *Machine[S, R]) HasResult() bool {
	return m.hasResult
}

// Suspended reports whether the current turn has registered a continuation.
func (m *Machine[S, R]) Suspended() bool {
	return m.awaiting
}

func (m *Machine[S, R]) mustBeInTurn(op string) {
	if !m.inTurn.Load() {
		err := errors.NotInTurn(op)
		m.log.Error("protocol violation", zap.Error(err))
		panic(err)
	}
}

func (m *Machine[S, R]) emit(t EventType, err error) {
	if m.cfg.Observer == nil {
		return
	}
	ev := Event{
		Type:    t,
		Machine: m.id,
		Name:    m.cfg.Name,
		State:   m.State(),
		Depth:   m.guardDepth,
		Turn:    m.turns,
		Err:     err,
		Kind:    ClassifyFault(err),
	}
	if t == EventCompleted || t == EventFailed {
		ev.Elapsed = time.Since(m.startedAt)
	}
	m.notify(ev)
}

// notify delivers ev to the observer. An observer panic is logged and
// swallowed so it cannot leave the turn gate held.
func (m *Machine[S, R]) notify(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("observer panicked",
				zap.Stringer("event", ev.Type),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	m.cfg.Observer.OnMachineEvent(ev)
}
