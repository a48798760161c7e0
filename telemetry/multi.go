package telemetry

import "github.com/wippyai/asyncsm/statemachine"

type multi []statemachine.Observer

// Multi fans events out to every non-nil observer, in order.
func Multi(observers ...statemachine.Observer) statemachine.Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multi) OnMachineEvent(e statemachine.Event) {
	for _, o := range m {
		o.OnMachineEvent(e)
	}
}
