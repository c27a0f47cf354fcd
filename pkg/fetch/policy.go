package fetch

import "time"

// Backoff selects how the delay between retry attempts grows.
type Backoff int

const (
	// BackoffFixed waits the initial delay before every retry.
	BackoffFixed Backoff = iota

	// BackoffLinear waits retry-count times the initial delay.
	BackoffLinear

	// BackoffExponential doubles the delay each retry.
	BackoffExponential
)

// Policy encapsulates the backoff settings applied between retry
// attempts. Immutable after construction.
type Policy struct {
	Mode    Backoff
	Initial time.Duration // base delay
	Max     time.Duration // cap for growth
}

// DefaultPolicy returns the default backoff: linear, 250ms base, 2s cap.
// Short on purpose, these are interactive fetches behind a UI.
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffLinear, Initial: 250 * time.Millisecond, Max: 2 * time.Second}
}

// Delay returns the backoff delay before the given retry (1-based: the
// delay before the first retry is Delay(1)).
func (p Policy) Delay(retry int) time.Duration {
	if retry <= 0 || p.Initial <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case BackoffFixed:
		d = p.Initial
	case BackoffExponential:
		d = p.Initial * (1 << (retry - 1))
	default:
		d = time.Duration(retry) * p.Initial
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}
