package wire

import "sync"

// Write is one outgoing wire update. The record replaces the location's
// entire query-parameter set; partial merges are not part of the
// contract.
type Write struct {
	Record *Record
	Mode   Mode
	Tag    Tag
}

// ChangeEvent is one incoming navigation notification: the complete new
// query-parameter set, plus the tag of the write that caused it when the
// change was locally originated. External navigations (manual edits,
// deep links, back/forward) carry the zero tag.
type ChangeEvent struct {
	Record *Record
	Tag    Tag
}

// Sink is the navigation/URL layer as seen by the sync engine. A sink
// accepts whole-record writes and surfaces every change to the location
// as a ChangeEvent, including changes caused by the engine's own
// writes, which is exactly why writes are tagged.
type Sink interface {
	// Write atomically replaces the location's query parameters.
	Write(w Write)

	// Subscribe registers fn for change events and returns an
	// unsubscribe function.
	Subscribe(fn func(ChangeEvent)) (unsubscribe func())
}

// MemorySink is an in-process Sink backed by a single record. It behaves
// like a browser location: each Write updates the stored record and is
// surfaced back to subscribers as a ChangeEvent carrying the write's own
// tag. Navigate simulates an external navigation.
type MemorySink struct {
	mu      sync.Mutex
	current *Record
	writes  []Write

	subMu  sync.Mutex
	subs   map[uint64]func(ChangeEvent)
	nextID uint64
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		current: NewRecord(),
		subs:    make(map[uint64]func(ChangeEvent)),
	}
}

// Write stores the record and echoes it to subscribers with the write's
// tag, the way a location observer sees a local pushState.
func (m *MemorySink) Write(w Write) {
	m.mu.Lock()
	m.current = w.Record.Clone()
	m.writes = append(m.writes, Write{Record: w.Record.Clone(), Mode: w.Mode, Tag: w.Tag})
	m.mu.Unlock()

	m.emit(ChangeEvent{Record: w.Record.Clone(), Tag: w.Tag})
}

// Navigate simulates an externally originated navigation: the stored
// record is replaced and subscribers see an untagged change event.
func (m *MemorySink) Navigate(rec *Record) {
	m.mu.Lock()
	m.current = rec.Clone()
	m.mu.Unlock()

	m.emit(ChangeEvent{Record: rec.Clone()})
}

// Current returns a copy of the stored record.
func (m *MemorySink) Current() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Writes returns all writes seen so far, oldest first.
func (m *MemorySink) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Write, len(m.writes))
	copy(cp, m.writes)
	return cp
}

// Subscribe implements Sink.
func (m *MemorySink) Subscribe(fn func(ChangeEvent)) (unsubscribe func()) {
	m.subMu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *MemorySink) emit(ev ChangeEvent) {
	m.subMu.Lock()
	fns := make([]func(ChangeEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
