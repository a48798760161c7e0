package statemachine

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType identifies a machine lifecycle event.
type EventType uint8

const (
	EventStarted EventType = iota
	EventSuspended
	EventResumed
	EventFaulted
	EventRecovered
	EventCompleted
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventSuspended:
		return "suspended"
	case EventResumed:
		return "resumed"
	case EventFaulted:
		return "faulted"
	case EventRecovered:
		return "recovered"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event describes a lifecycle transition of one machine.
// Elapsed is set on EventCompleted and EventFailed.
type Event struct {
	Err     error
	Name    string
	Kind    FaultKind
	Turn    uint64
	Elapsed time.Duration
	Machine ulid.ULID
	State   StateID
	Depth   uint32
	Type    EventType
}

// Observer receives machine lifecycle events. Events of one machine are
// delivered sequentially from the goroutine running its turn.
type Observer interface {
	OnMachineEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnMachineEvent(e Event) { f(e) }
