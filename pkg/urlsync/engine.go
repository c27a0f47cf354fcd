package urlsync

import (
	"errors"
	"sync"

	"github.com/movapages/angular-url-form-sync/pkg/codec"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/wire"
)

// ErrStarted is returned by Start when the engine is already running.
var ErrStarted = errors.New("urlsync: engine already started")

// Engine synchronizes one filter state with one wire sink.
//
// The engine is event-driven and logically single-threaded: projection
// and reconciliation passes are serialized, run synchronously on the
// goroutine delivering the triggering event, and never suspend while
// mutating state or building a record. The only suspension points in
// the wider pipeline live in the fetch coordinator.
type Engine struct {
	state *filter.State
	sink  wire.Sink

	codecs map[string]codec.Codec // by field name
	diags  DiagnosticsSink
	mode   wire.Mode
	mw     []Middleware

	// preserveUnknown carries wire keys owned by other screens through
	// projections instead of dropping them on every push.
	preserveUnknown bool

	tags suppressor

	// mu serializes sync passes; lastSeen is the most recent externally
	// observed record, consulted only when preserveUnknown is set.
	mu       sync.Mutex
	lastSeen *wire.Record

	unsubState func()
	unsubSink  func()
}

// Option configures an Engine.
type Option interface {
	applyEngine(*Engine)
}

type optionFunc func(*Engine)

func (f optionFunc) applyEngine(e *Engine) { f(e) }

// WithDiagnostics sets the sink receiving one entry per skipped field.
func WithDiagnostics(d DiagnosticsSink) Option {
	return optionFunc(func(e *Engine) { e.diags = d })
}

// WithMode sets the history mode for outgoing writes. Default is
// ModeReplace: filter churn should not pollute history.
func WithMode(m wire.Mode) Option {
	return optionFunc(func(e *Engine) { e.mode = m })
}

// WithMiddleware appends middleware wrapping every engine operation.
func WithMiddleware(mw ...Middleware) Option {
	return optionFunc(func(e *Engine) { e.mw = append(e.mw, mw...) })
}

// PreserveUnknownKeys carries query-parameter keys that match no
// registered field through projections. By default every push replaces
// the whole query set and foreign keys are dropped. Enable this when
// the screen shares its URL with parameters it does not own.
func PreserveUnknownKeys() Option {
	return optionFunc(func(e *Engine) { e.preserveUnknown = true })
}

// New creates an engine binding state to sink. Call Start to begin
// synchronizing.
func New(state *filter.State, sink wire.Sink, opts ...Option) (*Engine, error) {
	if state == nil {
		return nil, errors.New("urlsync: state is required")
	}
	if sink == nil {
		return nil, errors.New("urlsync: sink is required")
	}
	e := &Engine{
		state:    state,
		sink:     sink,
		codecs:   make(map[string]codec.Codec),
		diags:    NopDiagnostics(),
		mode:     wire.ModeReplace,
		lastSeen: wire.NewRecord(),
	}
	for _, spec := range state.Registry().Fields() {
		e.codecs[spec.Name] = codec.For(spec)
	}
	for _, opt := range opts {
		opt.applyEngine(e)
	}
	return e, nil
}

// Start subscribes the engine to both event sources. Non-silent state
// changes trigger a projection; sink change events that are not echoes
// of the engine's own writes trigger a reconciliation.
func (e *Engine) Start() error {
	if e.unsubState != nil {
		return ErrStarted
	}
	e.unsubState = e.state.Subscribe(func(c filter.Change) {
		if c.Silent {
			// Reconciler-applied patch; projecting it would close the loop.
			return
		}
		e.Project()
	})
	e.unsubSink = e.sink.Subscribe(func(ev wire.ChangeEvent) {
		e.handleWireChange(ev)
	})
	return nil
}

// Stop detaches the engine from its event sources.
func (e *Engine) Stop() {
	if e.unsubState != nil {
		e.unsubState()
		e.unsubState = nil
	}
	if e.unsubSink != nil {
		e.unsubSink()
		e.unsubSink = nil
	}
}

// Project serializes the current state snapshot and writes it to the
// sink as one tagged, whole-record write. Fields with absent values, or
// values equal to their declared default, are omitted. Exactly one wire
// write is emitted per invocation.
func (e *Engine) Project() {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.state.Snapshot()
	rec := wire.NewRecord()
	for _, spec := range e.state.Registry().Fields() {
		v := snap.Get(spec.Name)
		if !v.Present() {
			continue
		}
		if spec.Default.Present() && v.Equal(spec.Default) {
			continue
		}
		s, ok := e.codecs[spec.Name].Encode(v)
		if !ok {
			continue
		}
		rec.Set(filter.WireKeyOf(spec), s)
	}

	if e.preserveUnknown {
		for _, p := range e.lastSeen.Pairs() {
			if _, owned := e.state.Registry().LookupWireKey(p.Key); owned {
				continue
			}
			rec.Set(p.Key, p.Value)
		}
	}

	ev := &Event{Kind: EventProject, Fields: rec.Len()}
	_ = runChain(e.mw, ev, func() error {
		ev.Tag = e.tags.next()
		e.sink.Write(wire.Write{Record: rec, Mode: e.mode, Tag: ev.Tag})
		return nil
	})
}

// handleWireChange routes one incoming change event: echoes of the
// engine's own last write are dropped without reconciliation; everything
// else is externally originated and reconciled.
func (e *Engine) handleWireChange(ev wire.ChangeEvent) {
	if e.tags.isEcho(ev.Tag) {
		return
	}
	e.mu.Lock()
	e.lastSeen = ev.Record.Clone()
	e.mu.Unlock()

	e.Reconcile(ev.Record)
}

// Reconcile converts an incoming record into a state patch and applies
// it silently in one atomic update. Unresolvable keys and malformed
// literals are skipped with a diagnostic each; they never block other
// fields in the same record. The applied patch is returned, possibly
// empty.
func (e *Engine) Reconcile(rec *wire.Record) filter.Patch {
	e.mu.Lock()
	defer e.mu.Unlock()

	patch := filter.Patch{}
	diags := 0
	for _, p := range rec.Pairs() {
		spec, ok := e.state.Registry().LookupWireKey(p.Key)
		if !ok {
			diags++
			e.diags.Report(Diagnostic{WireKey: p.Key, Raw: p.Value, Err: unresolvedKey(p.Key)})
			continue
		}
		v, err := e.codecs[spec.Name].Decode(p.Value)
		if err != nil {
			diags++
			e.diags.Report(Diagnostic{WireKey: p.Key, Raw: p.Value, Err: err})
			continue
		}
		patch[spec.Name] = v
	}

	ev := &Event{Kind: EventReconcile, Fields: len(patch), Diagnostics: diags}
	_ = runChain(e.mw, ev, func() error {
		if len(patch) == 0 {
			return nil
		}
		return e.state.ApplyPatch(patch, true)
	})
	return patch
}
