package statemachine

import (
	"reflect"
	"sync"

	"github.com/wippyai/asyncsm"
	"github.com/wippyai/asyncsm/errors"
)

// completionMethods are the method names, in lookup order, accepted as a
// completion accessor of type func() bool.
var completionMethods = []string{"IsCompleted", "IsDone", "IsFulfilled", "Ready"}

const registerMethod = "OnCompleted"

var (
	awaiterType  = reflect.TypeOf((*asyncsm.Awaiter)(nil)).Elem()
	notifierType = reflect.TypeOf((*doneNotifier)(nil)).Elem()
	callbackType = reflect.TypeOf(func() {})

	capabilities sync.Map // reflect.Type -> *capability
)

type doneNotifier interface {
	Done() <-chan struct{}
}

// capability is the memoized completion access for one concrete type.
type capability struct {
	err      error
	probe    func(any) bool
	register func(any, func())
	native   bool
}

// Probe returns the completion accessor for values of type t. The lookup is
// done once per type. Types without an accessor yield an unsupported error.
func Probe(t reflect.Type) (func(any) bool, error) {
	c := lookupCapability(t)
	if c.err != nil {
		return nil, c.err
	}
	return c.probe, nil
}

// Adapt wraps a future-like value as an Awaiter. Supported shapes are
// Awaiter itself, anything with Done() <-chan struct{} (context.Context,
// run handles), and types with a completion accessor method plus
// OnCompleted(func()).
func Adapt(v any) (asyncsm.Awaiter, error) {
	if v == nil {
		return nil, errors.InvalidInput(errors.PhaseAdapt, "cannot await nil")
	}
	c := lookupCapability(reflect.TypeOf(v))
	if c.err != nil {
		return nil, c.err
	}
	if c.native {
		return v.(asyncsm.Awaiter), nil
	}
	return &adapted{value: v, cap: c}, nil
}

type adapted struct {
	value any
	cap   *capability
}

func (a *adapted) IsCompleted() bool      { return a.cap.probe(a.value) }
func (a *adapted) OnCompleted(cb func()) { a.cap.register(a.value, cb) }

func lookupCapability(t reflect.Type) *capability {
	if c, ok := capabilities.Load(t); ok {
		return c.(*capability)
	}
	c, _ := capabilities.LoadOrStore(t, buildCapability(t))
	return c.(*capability)
}

func buildCapability(t reflect.Type) *capability {
	if t == nil {
		return &capability{err: errors.InvalidInput(errors.PhaseAdapt, "nil type")}
	}

	if t.Implements(awaiterType) {
		return &capability{
			native:   true,
			probe:    func(v any) bool { return v.(asyncsm.Awaiter).IsCompleted() },
			register: func(v any, cb func()) { v.(asyncsm.Awaiter).OnCompleted(cb) },
		}
	}

	if t.Implements(notifierType) {
		return &capability{
			probe: func(v any) bool {
				select {
				case <-v.(doneNotifier).Done():
					return true
				default:
					return false
				}
			},
			register: func(v any, cb func()) {
				done := v.(doneNotifier).Done()
				go func() {
					<-done
					cb()
				}()
			},
		}
	}

	probeIdx := -1
	for _, name := range completionMethods {
		m, ok := t.MethodByName(name)
		if !ok {
			continue
		}
		mt := m.Type
		if mt.NumIn() == 1 && mt.NumOut() == 1 && mt.Out(0).Kind() == reflect.Bool {
			probeIdx = m.Index
			break
		}
	}
	if probeIdx < 0 {
		return &capability{err: errors.Unsupported(errors.PhaseAdapt, "type "+t.String()+" has no completion accessor")}
	}

	reg, ok := t.MethodByName(registerMethod)
	if !ok || reg.Type.NumIn() != 2 || reg.Type.In(1) != callbackType || reg.Type.NumOut() != 0 {
		return &capability{err: errors.Unsupported(errors.PhaseAdapt,
			"type "+t.String()+" reports completion but has no OnCompleted(func()) method")}
	}
	regIdx := reg.Index

	return &capability{
		probe: func(v any) bool {
			out := reflect.ValueOf(v).Method(probeIdx).Call(nil)
			return out[0].Bool()
		},
		register: func(v any, cb func()) {
			reflect.ValueOf(v).Method(regIdx).Call([]reflect.Value{reflect.ValueOf(cb)})
		},
	}
}
