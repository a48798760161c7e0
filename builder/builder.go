package builder

import (
	"fmt"
	"sort"

	"github.com/wippyai/asyncsm/errors"
	"github.com/wippyai/asyncsm/statemachine"
)

// Step is the code of one state.
type Step[S, R any] func(m *statemachine.Machine[S, R]) error

// Option configures a state.
type Option func(*stateOptions)

type stateOptions struct {
	name     string
	fault    statemachine.StateID
	hasFault bool
}

// FaultTo sets the fault label: the state handlers start at when a fault is
// raised while the machine is in this state.
func FaultTo(label statemachine.StateID) Option {
	return func(o *stateOptions) {
		o.fault = label
		o.hasFault = true
	}
}

// Named gives the state a name for logs and tools.
func Named(name string) Option {
	return func(o *stateOptions) {
		o.name = name
	}
}

type stateDef[S, R any] struct {
	step Step[S, R]
	stateOptions
}

// Builder collects states. It is not safe for concurrent use.
type Builder[S, R any] struct {
	states map[statemachine.StateID]*stateDef[S, R]
	final  Step[S, R]
	errs   []error
	entry  statemachine.StateID
}

// New starts a state table whose computations begin at entry.
func New[S, R any](entry statemachine.StateID) *Builder[S, R] {
	return &Builder[S, R]{
		states: make(map[statemachine.StateID]*stateDef[S, R]),
		entry:  entry,
	}
}

// State registers the step for id.
func (b *Builder[S, R]) State(id statemachine.StateID, step Step[S, R], opts ...Option) *Builder[S, R] {
	switch {
	case id == statemachine.Final:
		b.errs = append(b.errs, errors.InvalidInput(errors.PhaseBuild, "state 0 is reserved for Final"))
		return b
	case step == nil:
		b.errs = append(b.errs, errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			State(uint32(id)).Detail("nil step").Build())
		return b
	}
	if _, dup := b.states[id]; dup {
		b.errs = append(b.errs, errors.New(errors.PhaseBuild, errors.KindInvalidInput).
			State(uint32(id)).Detail("duplicate state").Build())
		return b
	}
	def := &stateDef[S, R]{step: step}
	for _, opt := range opts {
		opt(&def.stateOptions)
	}
	b.states[id] = def
	return b
}

// Final registers the step run when a machine resumes at the Final label,
// after awaiting with statemachine.Final as the resumption point.
func (b *Builder[S, R]) Final(step Step[S, R]) *Builder[S, R] {
	switch {
	case step == nil:
		b.errs = append(b.errs, errors.InvalidInput(errors.PhaseBuild, "nil final step"))
	case b.final != nil:
		b.errs = append(b.errs, errors.InvalidInput(errors.PhaseBuild, "duplicate final step"))
	default:
		b.final = step
	}
	return b
}

// Build validates the table and returns the program.
func (b *Builder[S, R]) Build() (*Program[S, R], error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.entry == statemachine.Final {
		return nil, errors.InvalidInput(errors.PhaseBuild, "entry state must not be Final")
	}
	if _, ok := b.states[b.entry]; !ok {
		return nil, errors.NotFound(errors.PhaseBuild, "entry state", fmt.Sprint(b.entry))
	}

	ids := make([]statemachine.StateID, 0, len(b.states))
	for id := range b.states {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		def := b.states[id]
		if !def.hasFault {
			continue
		}
		if _, ok := b.states[def.fault]; !ok {
			return nil, errors.New(errors.PhaseBuild, errors.KindNotFound).
				State(uint32(id)).
				Detail("fault label %d not registered", def.fault).
				Build()
		}
	}

	states := make(map[statemachine.StateID]*stateDef[S, R], len(b.states))
	for id, def := range b.states {
		cp := *def
		states[id] = &cp
	}
	return &Program[S, R]{entry: b.entry, states: states, order: ids, final: b.final}, nil
}
