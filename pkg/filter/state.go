package filter

import (
	"fmt"
	"sort"
	"sync"
)

// Patch is a set of field updates applied to state in one atomic step.
// An absent Value clears the field.
type Patch map[string]Value

// Change describes one state mutation delivered to subscribers.
type Change struct {
	// Fields are the names whose values actually changed, sorted.
	Fields []string

	// Silent marks a change that must not be projected back to the wire.
	// Set for patches produced by wire reconciliation.
	Silent bool
}

// State is the mutable, typed filter state for one screen. It is created
// at screen activation with the registry's declared defaults, mutated by
// user input and by wire reconciliation, and discarded at teardown.
//
// All mutations are synchronous and atomic: subscribers observe each
// change exactly once, after the full patch has been applied. Subscriber
// callbacks run on the mutating goroutine; they must not re-enter Set or
// ApplyPatch.
type State struct {
	registry *Registry

	mu     sync.RWMutex
	values map[string]Value

	// subs are notified after each applied change. Copy-before-notify so
	// the lock is never held during callbacks.
	subMu  sync.Mutex
	subs   map[uint64]func(Change)
	nextID uint64
}

// NewState creates state for the registry with declared defaults applied.
func NewState(reg *Registry) *State {
	s := &State{
		registry: reg,
		values:   make(map[string]Value, len(reg.ordered)),
		subs:     make(map[uint64]func(Change)),
	}
	for _, spec := range reg.ordered {
		if spec.Default.Present() {
			s.values[spec.Name] = spec.Default
		}
	}
	return s
}

// Registry returns the registry this state was built from.
func (s *State) Registry() *Registry { return s.registry }

// Get returns the field's current value, absent if unset or unknown.
func (s *State) Get(name string) Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Set updates one field and notifies subscribers if the value changed.
// The value's kind must match the field's declared kind.
func (s *State) Set(name string, v Value) error {
	return s.apply(Patch{name: v}, false)
}

// Clear removes one field's value.
func (s *State) Clear(name string) error {
	return s.apply(Patch{name: Absent()}, false)
}

// ApplyPatch applies all entries of the patch in one atomic update.
// Silent patches are delivered to subscribers with Change.Silent set;
// the wire projector ignores them, which is what breaks the pull-to-push
// half of the feedback loop.
func (s *State) ApplyPatch(p Patch, silent bool) error {
	return s.apply(p, silent)
}

func (s *State) apply(p Patch, silent bool) error {
	for name, v := range p {
		spec, ok := s.registry.Lookup(name)
		if !ok {
			return fmt.Errorf("filter: unknown field %q", name)
		}
		if v.Present() && v.Kind() != spec.Kind {
			return fmt.Errorf("filter: field %q has kind %s, got %s value",
				name, spec.Kind, v.Kind())
		}
	}

	s.mu.Lock()
	var changed []string
	for name, v := range p {
		if s.values[name].Equal(v) {
			continue
		}
		if v.Present() {
			s.values[name] = v
		} else {
			delete(s.values, name)
		}
		changed = append(changed, name)
	}
	s.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}
	sort.Strings(changed)
	s.notify(Change{Fields: changed, Silent: silent})
	return nil
}

// Subscribe registers fn for change notifications and returns an
// unsubscribe function.
func (s *State) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *State) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Snapshot captures the current values for projection and fetching.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]Value, len(s.values))
	for name, v := range s.values {
		values[name] = v
	}
	return Snapshot{values: values}
}

// Snapshot is an immutable value-equality view of filter state.
type Snapshot struct {
	values map[string]Value
}

// Get returns the field's value in the snapshot.
func (sn Snapshot) Get(name string) Value {
	return sn.values[name]
}

// Fields returns the names of present fields, sorted.
func (sn Snapshot) Fields() []string {
	names := make([]string, 0, len(sn.values))
	for name := range sn.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of present fields.
func (sn Snapshot) Len() int { return len(sn.values) }

// Equal reports whether two snapshots hold equal values for the same
// fields.
func (sn Snapshot) Equal(o Snapshot) bool {
	if len(sn.values) != len(o.values) {
		return false
	}
	for name, v := range sn.values {
		if !o.values[name].Equal(v) {
			return false
		}
	}
	return true
}

// RequiredFields returns a validity predicate that holds when every
// Required field in the registry has a present value.
func RequiredFields(reg *Registry) func(Snapshot) bool {
	var required []string
	for _, spec := range reg.ordered {
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	return func(sn Snapshot) bool {
		for _, name := range required {
			if !sn.Get(name).Present() {
				return false
			}
		}
		return true
	}
}
