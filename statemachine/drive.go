package statemachine

import (
	"go.uber.org/zap"

	"github.com/wippyai/asyncsm/errors"
)

// onAwaitCompleted is the continuation registered at every suspension.
func (m *Machine[S, R]) onAwaitCompleted() {
	if m.cfg.Dispatch != nil {
		m.cfg.Dispatch(m.resume)
		return
	}
	m.resume()
}

// resume enters the turn loop through the gate. Only the caller that moves
// the gate from zero runs turns; later callers leave a pending resumption
// which the running goroutine picks up after its current turn.
func (m *Machine[S, R]) resume() {
	if m.gate.Add(1) != 1 {
		return
	}
	for {
		m.driveTurn()
		if m.gate.Add(-1) == 0 {
			return
		}
	}
}

func (m *Machine[S, R]) driveTurn() {
	if m.finalized {
		m.log.Warn("dropping continuation of finalized machine", zap.Uint64("turn", m.turns))
		return
	}

	m.turns++
	if m.awaiting {
		m.awaiting = false
		m.status.Store(int32(StatusRunning))
		m.log.Debug("machine resumed", zap.Uint32("state", uint32(m.State())), zap.Uint64("turn", m.turns))
		m.emit(EventResumed, nil)
	}

	// forced is set when a fault ends the computation regardless of where
	// the transition left the state id or whether it registered a
	// continuation.
	forced := false
	// stuck counts consecutive re-invocations that raised while the
	// previously captured fault was still in place. A handler that
	// discharges the fault resets it.
	stuck := 0
	for {
		err := m.invoke()
		if err == nil {
			break
		}
		if m.fault == nil {
			stuck = 0
		} else {
			stuck++
		}
		m.capture(err)

		if errors.IsProtocolViolation(err) {
			m.log.Error("protocol violation", zap.Error(err), zap.Uint32("state", uint32(m.State())))
			forced = true
			break
		}
		if m.awaiting {
			// The turn already handed itself to a continuation; it cannot
			// also run a handler. The continuation will be dropped.
			m.log.Error("transition failed after suspending", zap.Error(err))
			forced = true
			break
		}
		if m.guardDepth == 0 {
			forced = true
			break
		}
		if stuck >= m.cfg.MaxRecoveryAttempts {
			m.log.Error("recovery attempts exhausted",
				zap.Int("attempts", stuck),
				zap.Uint32("depth", m.guardDepth),
				zap.Error(err))
			forced = true
			break
		}
	}

	switch {
	case forced:
		m.state.Store(uint32(Final))
		m.finalize()

	case m.awaiting:
		// Awaiting with Final as the resumption point is allowed: the
		// transition runs once more at the Final label.
		m.status.Store(int32(StatusSuspended))
		m.log.Debug("machine suspended", zap.Uint32("state", uint32(m.State())), zap.Uint64("turn", m.turns))
		m.emit(EventSuspended, nil)

	case m.State() == Final:
		m.finalize()

	default:
		m.capture(errors.New(errors.PhaseTurn, errors.KindProtocolViolation).
			State(uint32(m.State())).
			Detail("transition returned without suspending or completing").
			Build())
		m.log.Error("protocol violation", zap.Error(m.fault))
		m.state.Store(uint32(Final))
		m.finalize()
	}
}

// invoke runs the transition once, converting a panic into a fault.
func (m *Machine[S, R]) invoke() (err error) {
	m.inTurn.Store(true)
	defer func() {
		m.inTurn.Store(false)
		m.entering = false
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
	}()
	return m.transition(m)
}

func (m *Machine[S, R]) capture(err error) {
	m.fault = err
	m.faultSuspended = false
	m.log.Debug("fault captured",
		zap.Error(err),
		zap.Uint32("state", uint32(m.State())),
		zap.Uint32("depth", m.guardDepth))
	m.emit(EventFaulted, err)
}

// finalize hands the outcome to the future. It runs at most once per machine.
func (m *Machine[S, R]) finalize() {
	m.finalized = true
	fault, result := m.fault, m.result

	m.guardDepth = 0
	m.fault = nil
	m.faultSuspended = false
	var zeroLocals S
	m.Locals = zeroLocals
	var zeroResult R
	m.result = zeroResult
	m.transition = nil

	if m.cfg.Registry != nil && m.handle != 0 {
		m.cfg.Registry.Remove(m.handle)
	}

	if fault != nil {
		m.status.Store(int32(StatusFaulted))
		m.log.Debug("machine failed", zap.Error(fault), zap.Uint64("turns", m.turns))
		m.emit(EventFailed, fault)
		m.sink.SetError(fault)
		return
	}
	m.status.Store(int32(StatusCompleted))
	m.log.Debug("machine completed", zap.Uint64("turns", m.turns))
	m.emit(EventCompleted, nil)
	m.sink.SetResult(result)
}
