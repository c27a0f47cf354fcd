package urlsync

import (
	"fmt"
	"io"
	"sync"

	"github.com/movapages/angular-url-form-sync/pkg/codec"
)

// Diagnostic reports one field skipped during reconciliation: the wire
// key, the raw literal, and the failure. Err wraps one of the codec
// sentinels (codec.ErrInvalidFormat, codec.ErrUnknownValue,
// codec.ErrUnresolvedKey), so sinks classify with errors.Is.
type Diagnostic struct {
	WireKey string
	Raw     string
	Err     error
}

// String renders the diagnostic as a single line.
func (d Diagnostic) String() string {
	return fmt.Sprintf("urlsync: skipped key=%q raw=%q err=%v", d.WireKey, d.Raw, d.Err)
}

// DiagnosticsSink receives one entry per skipped field. Implementations
// must not panic; a diagnostics sink that raises would defeat the whole
// point of per-field failure isolation.
type DiagnosticsSink interface {
	Report(d Diagnostic)
}

// DiagnosticsFunc adapts a function to a DiagnosticsSink.
type DiagnosticsFunc func(Diagnostic)

// Report implements DiagnosticsSink.
func (f DiagnosticsFunc) Report(d Diagnostic) { f(d) }

// NopDiagnostics discards all diagnostics. The default.
func NopDiagnostics() DiagnosticsSink {
	return DiagnosticsFunc(func(Diagnostic) {})
}

// LogDiagnostics writes one structured line per diagnostic to w.
func LogDiagnostics(w io.Writer) DiagnosticsSink {
	var mu sync.Mutex
	return DiagnosticsFunc(func(d Diagnostic) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, d.String())
	})
}

// CollectDiagnostics accumulates diagnostics in memory. Intended for
// tests and for screens that surface skipped fields to the user.
type CollectDiagnostics struct {
	mu      sync.Mutex
	entries []Diagnostic
}

// Report implements DiagnosticsSink.
func (c *CollectDiagnostics) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, d)
}

// Entries returns a copy of the collected diagnostics.
func (c *CollectDiagnostics) Entries() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]Diagnostic, len(c.entries))
	copy(cp, c.entries)
	return cp
}

// Len returns the number of collected diagnostics.
func (c *CollectDiagnostics) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// unresolvedKey builds the diagnostic error for a wire key that matches
// no registered field.
func unresolvedKey(key string) error {
	return &codec.Error{Raw: key, Kind: codec.ErrUnresolvedKey, Why: "no field registered for key " + key}
}
