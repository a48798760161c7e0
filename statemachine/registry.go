package statemachine

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Handle is an opaque reference to a machine in a Registry.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Inspector is the read-only view of a machine kept by a Registry.
// Every *Machine implements it.
type Inspector interface {
	ID() ulid.ULID
	Name() string
	State() StateID
	Status() Status
}

// Snapshot is a point-in-time view of one registered machine.
type Snapshot struct {
	Name   string
	ID     ulid.ULID
	Handle Handle
	State  StateID
	Status Status
}

// RegistryEventType identifies a registry change.
type RegistryEventType uint8

const (
	RegistryInserted RegistryEventType = iota
	RegistryRemoved
)

// RegistryEvent describes a machine entering or leaving the registry.
type RegistryEvent struct {
	Machine Inspector
	Handle  Handle
	Type    RegistryEventType
}

// RegistryObserver receives registry changes.
type RegistryObserver interface {
	OnRegistryEvent(RegistryEvent)
}

// Registry tracks in-flight machines. Machines configured with a registry
// insert themselves on Start and remove themselves when they finalize.
type Registry struct {
	entries   []Inspector
	freeList  []Handle
	observers []RegistryObserver
	count     int
	mu        sync.RWMutex
	obsMu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make([]Inspector, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert adds a machine and returns its handle.
func (r *Registry) Insert(m Inspector) Handle {
	r.mu.Lock()
	var h Handle
	if n := len(r.freeList); n > 0 {
		h = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		r.entries[h-1] = m
	} else {
		r.entries = append(r.entries, m)
		h = Handle(len(r.entries))
	}
	r.count++
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryInserted, Handle: h, Machine: m})
	return h
}

// Get returns the machine registered under h.
func (r *Registry) Get(h Handle) (Inspector, bool) {
	if h == 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := int(h - 1)
	if idx >= len(r.entries) || r.entries[idx] == nil {
		return nil, false
	}
	return r.entries[idx], true
}

// Remove drops h and returns the machine that was registered under it.
func (r *Registry) Remove(h Handle) (Inspector, bool) {
	if h == 0 {
		return nil, false
	}
	r.mu.Lock()
	idx := int(h - 1)
	if idx >= len(r.entries) || r.entries[idx] == nil {
		r.mu.Unlock()
		return nil, false
	}
	m := r.entries[idx]
	r.entries[idx] = nil
	r.freeList = append(r.freeList, h)
	r.count--
	r.mu.Unlock()

	r.notify(RegistryEvent{Type: RegistryRemoved, Handle: h, Machine: m})
	return m, true
}

// Len returns the number of machines in flight.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Snapshot returns the registered machines ordered by handle.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, r.count)
	for i, m := range r.entries {
		if m == nil {
			continue
		}
		out = append(out, Snapshot{
			Handle: Handle(i + 1),
			ID:     m.ID(),
			Name:   m.Name(),
			State:  m.State(),
			Status: m.Status(),
		})
	}
	r.mu.RUnlock()
	return out
}

// Subscribe adds an observer for registry changes.
func (r *Registry) Subscribe(o RegistryObserver) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o RegistryObserver) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e RegistryEvent) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnRegistryEvent(e)
	}
}
