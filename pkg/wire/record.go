// Package wire models the textual query-parameter side of filter
// synchronization: an ordered key/value record, the tag protocol that
// lets the engine recognize its own writes, and the sink interface the
// engine pushes to and pulls from.
package wire

import (
	"net/url"
	"strings"
)

// Tag is an opaque monotonically increasing counter attached to each
// outgoing wire write. A change event carrying the engine's last issued
// tag is the echo of that write; the zero Tag means untagged (external).
type Tag uint64

// Mode selects how a wire write interacts with navigation history,
// mirroring pushState/replaceState semantics on a browser location.
type Mode int

const (
	// ModeReplace replaces the current history entry. The default for
	// filter sync: typing in a filter should not spam the back button.
	ModeReplace Mode = iota

	// ModePush adds a new history entry.
	ModePush
)

// Pair is one decoded query parameter.
type Pair struct {
	Key   string
	Value string
}

// Record is an ordered mapping from string key to string value, the
// decoded form of a query string. Records are ephemeral: constructed
// fresh on each push and received fresh on each navigation event.
type Record struct {
	pairs []Pair
	index map[string]int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{index: make(map[string]int)}
}

// Set adds or replaces a key, preserving first-insertion order.
func (r *Record) Set(key, value string) {
	if i, ok := r.index[key]; ok {
		r.pairs[i].Value = value
		return
	}
	r.index[key] = len(r.pairs)
	r.pairs = append(r.pairs, Pair{Key: key, Value: value})
}

// Get returns the value for a key.
func (r *Record) Get(key string) (string, bool) {
	i, ok := r.index[key]
	if !ok {
		return "", false
	}
	return r.pairs[i].Value, true
}

// Has reports whether the key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Len returns the number of pairs.
func (r *Record) Len() int { return len(r.pairs) }

// Pairs returns the pairs in order. The returned slice is a copy.
func (r *Record) Pairs() []Pair {
	cp := make([]Pair, len(r.pairs))
	copy(cp, r.pairs)
	return cp
}

// Keys returns the keys in order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.pairs))
	for i, p := range r.pairs {
		keys[i] = p.Key
	}
	return keys
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, p := range r.pairs {
		out.Set(p.Key, p.Value)
	}
	return out
}

// Equal reports whether two records hold the same pairs in the same
// order.
func (r *Record) Equal(o *Record) bool {
	if len(r.pairs) != len(o.pairs) {
		return false
	}
	for i, p := range r.pairs {
		if o.pairs[i] != p {
			return false
		}
	}
	return true
}

// Encode renders the record as a percent-encoded query string without
// the leading "?". Order is preserved, unlike url.Values.Encode.
func (r *Record) Encode() string {
	var b strings.Builder
	for i, p := range r.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// ParseQuery decodes a query string (with or without a leading "?") into
// a record, preserving parameter order. Undecodable entries are skipped;
// a malformed query never fails the whole parse. Duplicate keys keep the
// last value.
func ParseQuery(raw string) *Record {
	raw = strings.TrimPrefix(raw, "?")
	rec := NewRecord()
	if raw == "" {
		return rec
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		rec.Set(key, value)
	}
	return rec
}
