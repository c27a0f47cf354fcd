// Package fetch coordinates data fetches against a filter state:
// debounce, validity gating, latest-wins cancellation, and bounded
// retry.
//
// The coordinator is a small state machine over one logical request
// stream. Any state change moves it to Debouncing; the quiet window
// restarts on each further change; on elapse the snapshot is validated
// and, if valid, fetched. A newer snapshot supersedes an older in-flight
// fetch; the stale fetch is cancelled and its result, should it still
// arrive, is discarded by correlation id. Failures are retried a bounded
// number of times and then surfaced as a terminal result.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/movapages/angular-url-form-sync/pkg/filter"
)

// Fetcher produces a payload for a filter snapshot. Implementations may
// be slow and must honor ctx cancellation.
type Fetcher[R any] interface {
	Fetch(ctx context.Context, snap filter.Snapshot) (R, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[R any] func(ctx context.Context, snap filter.Snapshot) (R, error)

// Fetch implements Fetcher.
func (f FetcherFunc[R]) Fetch(ctx context.Context, snap filter.Snapshot) (R, error) {
	return f(ctx, snap)
}

// Result is the terminal outcome of one coordinated fetch. Either
// Payload is set or Err is; cancelled fetches produce no Result at all.
type Result[R any] struct {
	// RequestID correlates the result with the request that produced it.
	RequestID string

	// Snapshot is the state the fetch answered.
	Snapshot filter.Snapshot

	// Payload is the fetched data on success.
	Payload R

	// Err is the terminal failure after retries are exhausted.
	Err error

	// Attempts is the number of fetch invocations made, including the
	// successful one.
	Attempts int
}

// Error is the terminal failure surfaced after the retry bound.
type Error struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("fetch: %d attempts failed: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying fetch error.
func (e *Error) Unwrap() error { return e.Err }

// Phase is the coordinator's observable state.
type Phase int

const (
	// PhaseIdle means no fetch is pending or in flight.
	PhaseIdle Phase = iota

	// PhaseDebouncing means a state change was seen and the quiet
	// window is running.
	PhaseDebouncing

	// PhaseFetching means a fetch is in flight.
	PhaseFetching
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseFetching:
		return "fetching"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Invalidate after Close.
var ErrClosed = errors.New("fetch: coordinator closed")

const defaultQuietWindow = 300 * time.Millisecond

// config holds coordinator settings shared across payload types, so
// options stay non-generic.
type config struct {
	quiet    time.Duration
	attempts int
	backoff  Policy
	valid    func(filter.Snapshot) bool
}

// Option configures a Coordinator.
type Option interface {
	applyCoordinator(*config)
}

type optionFunc func(*config)

func (f optionFunc) applyCoordinator(c *config) { f(c) }

// WithQuietWindow sets the debounce quiet period. Default 300ms.
func WithQuietWindow(d time.Duration) Option {
	return optionFunc(func(c *config) { c.quiet = d })
}

// WithAttempts sets the total attempt bound, including the first
// attempt. Default 3. Values below 1 are clamped to 1.
func WithAttempts(n int) Option {
	return optionFunc(func(c *config) {
		if n < 1 {
			n = 1
		}
		c.attempts = n
	})
}

// WithBackoff sets the delay policy between retry attempts.
func WithBackoff(p Policy) Option {
	return optionFunc(func(c *config) { c.backoff = p })
}

// WithValidator gates fetching on a validity predicate. An invalid
// snapshot ends the cycle without a fetch; wire synchronization is not
// the coordinator's concern and proceeds regardless.
func WithValidator(fn func(filter.Snapshot) bool) Option {
	return optionFunc(func(c *config) { c.valid = fn })
}

// Coordinator debounces state changes into validated, cancellable,
// bounded-retry fetches. Create one per screen with New, feed it via
// Bind or Invalidate, and Close it at teardown.
type Coordinator[R any] struct {
	fetcher Fetcher[R]
	apply   func(Result[R])
	cfg     config

	mu        sync.Mutex
	phase     Phase
	timer     *time.Timer
	pending   filter.Snapshot
	currentID string
	cancel    context.CancelFunc
	closed    bool
}

// New creates a coordinator. apply receives every terminal Result,
// success or exhausted-retries failure, on the fetch goroutine;
// cancelled fetches never reach it.
//
// Example:
//
//	coord := fetch.New(
//	    fetch.FetcherFunc[[]Row](queryRows),
//	    func(res fetch.Result[[]Row]) { render(res) },
//	    fetch.WithValidator(filter.RequiredFields(reg)),
//	)
//	defer coord.Close()
//	stop := coord.Bind(state)
//	defer stop()
func New[R any](fetcher Fetcher[R], apply func(Result[R]), opts ...Option) *Coordinator[R] {
	cfg := config{
		quiet:    defaultQuietWindow,
		attempts: 3,
		backoff:  DefaultPolicy(),
	}
	for _, opt := range opts {
		opt.applyCoordinator(&cfg)
	}
	if apply == nil {
		apply = func(Result[R]) {}
	}
	return &Coordinator[R]{fetcher: fetcher, apply: apply, cfg: cfg}
}

// Bind subscribes the coordinator to a filter state so every change,
// user input and reconciled wire patches alike, restarts the debounce
// window. Returns the unsubscribe function.
func (c *Coordinator[R]) Bind(state *filter.State) func() {
	return state.Subscribe(func(filter.Change) {
		_ = c.Invalidate(state.Snapshot())
	})
}

// Invalidate notes a new state snapshot and (re)starts the quiet
// window. Any number of calls within one window collapse into a single
// fetch carrying the last snapshot. A fetch already in flight answers a
// superseded snapshot and is cancelled here, not when the window
// elapses: its result must not land during the new window.
func (c *Coordinator[R]) Invalidate(snap filter.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.currentID = ""
	c.pending = snap
	c.phase = PhaseDebouncing
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.quiet, c.onQuiet)
	return nil
}

// Phase returns the coordinator's current phase.
func (c *Coordinator[R]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Close cancels any pending timer and in-flight fetch. Cancellation is
// not a failure; no Result is delivered for work cut short by Close.
func (c *Coordinator[R]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.phase = PhaseIdle
}

// onQuiet fires when the quiet window elapses: validate, then fetch,
// superseding any fetch still in flight.
func (c *Coordinator[R]) onQuiet() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap := c.pending

	if c.cfg.valid != nil && !c.cfg.valid(snap) {
		// Invalid state: no fetch this cycle. The wire was already
		// synchronized by the engine; validity gates fetching only.
		c.phase = PhaseIdle
		c.mu.Unlock()
		return
	}

	// Any older fetch was already cancelled by the Invalidate that
	// started this window.
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	c.currentID = id
	c.cancel = cancel
	c.phase = PhaseFetching
	c.mu.Unlock()

	go c.run(ctx, id, snap)
}

// run performs up to cfg.attempts fetch invocations, sleeping the
// backoff delay between them, and delivers exactly one terminal result
// unless cancelled.
func (c *Coordinator[R]) run(ctx context.Context, id string, snap filter.Snapshot) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.attempts; attempt++ {
		payload, err := c.fetcher.Fetch(ctx, snap)
		if ctx.Err() != nil {
			// Superseded or closed. Stop without mutating anything.
			return
		}
		if err == nil {
			c.deliver(id, Result[R]{RequestID: id, Snapshot: snap, Payload: payload, Attempts: attempt})
			return
		}
		lastErr = err
		if attempt == c.cfg.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.backoff.Delay(attempt)):
		}
	}
	c.deliver(id, Result[R]{
		RequestID: id,
		Snapshot:  snap,
		Err:       &Error{Attempts: c.cfg.attempts, Err: lastErr},
		Attempts:  c.cfg.attempts,
	})
}

// deliver applies a terminal result if it still answers the most
// recently issued request; stale results are discarded.
func (c *Coordinator[R]) deliver(id string, res Result[R]) {
	c.mu.Lock()
	if c.closed || id != c.currentID {
		c.mu.Unlock()
		return
	}
	c.currentID = ""
	c.cancel = nil
	c.phase = PhaseIdle
	c.mu.Unlock()

	c.apply(res)
}
