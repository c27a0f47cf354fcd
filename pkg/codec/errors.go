package codec

import "errors"

// Sentinel failure kinds for reconciliation diagnostics. Errors returned
// by codecs and the reconciler wrap one of these, so callers classify
// with errors.Is rather than string matching.
var (
	// ErrInvalidFormat marks a wire literal that is malformed for the
	// field's kind: a non-numeric integer, a date with the wrong shape,
	// a boolean that is not exactly "true" or "false".
	ErrInvalidFormat = errors.New("codec: invalid format")

	// ErrUnknownValue marks an enum literal outside the declared set.
	ErrUnknownValue = errors.New("codec: unknown enum value")

	// ErrUnresolvedKey marks a wire key that matches no registered field.
	// Returned by the reconciler, never by a codec.
	ErrUnresolvedKey = errors.New("codec: unresolved wire key")
)

// Error carries one decode failure with enough context for a diagnostic
// entry: the raw wire literal and the failure kind it wraps.
type Error struct {
	Raw  string
	Kind error  // one of the sentinels above
	Why  string // short human-readable cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Why != "" {
		return e.Kind.Error() + ": " + e.Why
	}
	return e.Kind.Error()
}

// Unwrap returns the sentinel failure kind for errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

func invalidFormat(raw, why string) error {
	return &Error{Raw: raw, Kind: ErrInvalidFormat, Why: why}
}

func unknownValue(raw, why string) error {
	return &Error{Raw: raw, Kind: ErrUnknownValue, Why: why}
}
