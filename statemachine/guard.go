package statemachine

import (
	stderrors "errors"

	"github.com/wippyai/asyncsm/errors"
)

// EnterGuardedCode opens a guarded region whose body starts at id.
func (m *Machine[S, R]) EnterGuardedCode(id StateID) {
	m.mustBeInTurn("EnterGuardedCode")
	m.moves++
	m.state.Store(uint32(id))
	m.guardDepth++
}

// ExitGuardedCode closes the innermost guarded region and continues at prev.
// With suspendFaultForFinally set, a captured fault is parked so that the
// finally body runs as if no fault were active; Rethrow raises it again.
func (m *Machine[S, R]) ExitGuardedCode(prev StateID, suspendFaultForFinally bool) {
	m.mustBeInTurn("ExitGuardedCode")
	if m.guardDepth == 0 {
		panic(errors.New(errors.PhaseRecover, errors.KindProtocolViolation).
			State(uint32(m.State())).
			Detail("ExitGuardedCode without a matching EnterGuardedCode").
			Build())
	}
	m.moves++
	m.state.Store(uint32(prev))
	m.guardDepth--
	if suspendFaultForFinally && m.fault != nil {
		m.faultSuspended = true
	}
}

// HasNoException reports whether no fault is active. A fault parked for a
// finally body does not count.
func (m *Machine[S, R]) HasNoException() bool {
	return m.fault == nil || m.faultSuspended
}

// Faulted reports whether a fault is active and waiting for a handler.
func (m *Machine[S, R]) Faulted() bool {
	return !m.HasNoException()
}

// Fault returns the captured fault, parked or not.
func (m *Machine[S, R]) Fault() error {
	return m.fault
}

// Rethrow unparks the captured fault and returns it so the transition can
// raise it again with `return m.Rethrow()`. It returns nil when no fault is
// pending.
func (m *Machine[S, R]) Rethrow() error {
	m.faultSuspended = false
	return m.fault
}

// TryRecover hands the active fault to a handler if it matches E, using
// errors.As semantics, and clears it. Otherwise the fault stays in place for
// an enclosing handler. Protocol violations never match.
func TryRecover[E error, S, R any](m *Machine[S, R]) (E, bool) {
	return TryRecoverIf[E](m, nil)
}

// TryRecoverIf is TryRecover with an additional filter on the matched error.
func TryRecoverIf[E error, S, R any](m *Machine[S, R], filter func(E) bool) (E, bool) {
	var target E
	if m.fault == nil || m.faultSuspended || errors.IsProtocolViolation(m.fault) {
		return target, false
	}
	if !stderrors.As(m.fault, &target) {
		return target, false
	}
	if filter != nil && !filter(target) {
		var zero E
		return zero, false
	}
	recovered := m.fault
	m.fault = nil
	m.emit(EventRecovered, recovered)
	return target, true
}
