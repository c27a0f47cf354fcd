package urlsync

import "github.com/movapages/angular-url-form-sync/pkg/wire"

// EventKind identifies which engine operation an Event describes.
type EventKind int

const (
	// EventProject is a state-to-wire projection pass.
	EventProject EventKind = iota

	// EventReconcile is a wire-to-state reconciliation pass.
	EventReconcile
)

// String returns the event kind name, used as a metrics label.
func (k EventKind) String() string {
	switch k {
	case EventProject:
		return "project"
	case EventReconcile:
		return "reconcile"
	default:
		return "unknown"
	}
}

// Event describes one engine operation as it flows through the
// middleware chain.
type Event struct {
	// Kind is the operation.
	Kind EventKind

	// Fields is the number of fields projected or patched.
	Fields int

	// Diagnostics is the number of skipped fields (reconcile only).
	Diagnostics int

	// Tag is the outgoing write's tag (project only).
	Tag wire.Tag
}

// Middleware wraps engine operations, in the same shape the surrounding
// application wraps its request handlers. Call next to run the
// operation; inspect ev afterwards for field and diagnostic counts.
type Middleware interface {
	Handle(ev *Event, next func() error) error
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ev *Event, next func() error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ev *Event, next func() error) error {
	return f(ev, next)
}

// runChain executes the middleware chain around final.
func runChain(mw []Middleware, ev *Event, final func() error) error {
	if len(mw) == 0 {
		return final()
	}
	return mw[0].Handle(ev, func() error {
		return runChain(mw[1:], ev, final)
	})
}
