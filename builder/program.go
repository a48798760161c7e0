package builder

import (
	"fmt"

	"github.com/wippyai/asyncsm/errors"
	"github.com/wippyai/asyncsm/future"
	"github.com/wippyai/asyncsm/statemachine"
)

// StateInfo describes one state of a program.
type StateInfo struct {
	Name     string
	ID       statemachine.StateID
	Fault    statemachine.StateID
	HasFault bool
}

// Program is an immutable state table. One program can drive any number of
// machines concurrently.
type Program[S, R any] struct {
	states map[statemachine.StateID]*stateDef[S, R]
	final  Step[S, R]
	order  []statemachine.StateID
	entry  statemachine.StateID
}

// Transition returns the transition function generated from the table.
func (p *Program[S, R]) Transition() statemachine.Transition[S, R] {
	return p.run
}

// Start runs a new machine over the program. cfg may be nil.
func (p *Program[S, R]) Start(locals S, cfg *statemachine.Config) *future.Future[R] {
	return statemachine.StartWithConfig(p.run, locals, cfg)
}

// Entry returns the entry state.
func (p *Program[S, R]) Entry() statemachine.StateID {
	return p.entry
}

// StateName returns the registered name of id, or its number.
func (p *Program[S, R]) StateName(id statemachine.StateID) string {
	if id == statemachine.Final {
		return "final"
	}
	if def, ok := p.states[id]; ok && def.name != "" {
		return def.name
	}
	return fmt.Sprintf("state-%d", id)
}

// States lists the table ordered by state id.
func (p *Program[S, R]) States() []StateInfo {
	out := make([]StateInfo, 0, len(p.order))
	for _, id := range p.order {
		def := p.states[id]
		out = append(out, StateInfo{
			ID:       id,
			Name:     p.StateName(id),
			Fault:    def.fault,
			HasFault: def.hasFault,
		})
	}
	return out
}

func (p *Program[S, R]) run(m *statemachine.Machine[S, R]) error {
	switch {
	case m.Entering():
		m.Goto(p.entry)
	case m.Faulted():
		cur := m.State()
		def, ok := p.states[cur]
		if !ok || !def.hasFault {
			return errors.New(errors.PhaseRecover, errors.KindProtocolViolation).
				State(uint32(cur)).
				Detail("fault raised in a guarded region but the state has no fault label").
				Cause(m.Fault()).
				Build()
		}
		m.Goto(def.fault)
	case m.State() == statemachine.Final:
		// Resumed at the Final label.
		if done, err := p.runFinal(m); done || err != nil {
			return err
		}
	}

	for {
		cur := m.State()
		def, ok := p.states[cur]
		if !ok {
			return errors.New(errors.PhaseTurn, errors.KindProtocolViolation).
				State(uint32(cur)).
				Detail("unknown state").
				Build()
		}
		moves := m.Moves()
		if err := def.step(m); err != nil {
			return err
		}
		if m.Suspended() {
			return nil
		}
		if m.State() == statemachine.Final {
			// Reached the Final label through a completed await.
			if done, err := p.runFinal(m); done || err != nil {
				return err
			}
			continue
		}
		if m.Moves() == moves {
			return errors.New(errors.PhaseTurn, errors.KindProtocolViolation).
				State(uint32(cur)).
				Detail("step %q did not advance", p.StateName(cur)).
				Build()
		}
	}
}

// runFinal runs the final step at the Final label unless the machine already
// holds a result. It reports done when the turn should end.
func (p *Program[S, R]) runFinal(m *statemachine.Machine[S, R]) (bool, error) {
	if p.final == nil || m.HasResult() {
		return true, nil
	}
	if err := p.final(m); err != nil {
		return true, err
	}
	return m.Suspended() || m.State() == statemachine.Final, nil
}
