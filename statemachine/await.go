package statemachine

import (
	"github.com/wippyai/asyncsm"
	"github.com/wippyai/asyncsm/errors"
)

// MoveNext records next as the resumption point and checks awaiter.
//
// It returns true when the awaited operation has already completed; the
// transition then continues synchronously and no callback is registered.
// Otherwise it registers the machine's continuation on awaiter and returns
// false; the transition must return nil right away.
func MoveNext[S, R any, A asyncsm.Awaiter](m *Machine[S, R], awaiter A, next StateID) bool {
	m.mustBeInTurn("MoveNext")
	if m.awaiting {
		panic(errors.New(errors.PhaseAwait, errors.KindProtocolViolation).
			State(uint32(m.State())).
			Detail("MoveNext called after the turn already suspended").
			Build())
	}
	m.moves++
	m.state.Store(uint32(next))
	if awaiter.IsCompleted() {
		return true
	}
	m.awaiting = true
	awaiter.OnCompleted(m.cont)
	return false
}
