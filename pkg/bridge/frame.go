package bridge

import (
	"encoding/json"

	"github.com/movapages/angular-url-form-sync/pkg/wire"
)

// Frame types exchanged with the thin client.
const (
	// frameURLPatch (server to client): replace the location's query
	// parameters. Carries the write's tag; the client echoes it back on
	// the resulting navigate so the engine can drop its own echo.
	frameURLPatch = "url-patch"

	// frameNavigate (client to server): the location changed. Tag is zero
	// for external navigations (deep link, back/forward, manual edit).
	frameNavigate = "navigate"

	// frameInput (client to server): one field edited. An empty value
	// clears the field.
	frameInput = "input"

	// frameResult (server to client): terminal fetch outcome.
	frameResult = "result"

	// frameError (server to client): a rejected input or skipped wire key.
	frameError = "error"
)

// wirePair is one query parameter in client order. A JSON object would
// lose ordering, so pairs travel as a list.
type wirePair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// frame is the single message shape on the socket. Unused fields are
// omitted per type.
type frame struct {
	Type string `json:"type"`

	Pairs []wirePair `json:"pairs,omitempty"`
	Mode  string     `json:"mode,omitempty"`
	Tag   uint64     `json:"tag,omitempty"`

	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`

	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// recordToPairs converts a wire record for transport.
func recordToPairs(rec *wire.Record) []wirePair {
	pairs := rec.Pairs()
	out := make([]wirePair, len(pairs))
	for i, p := range pairs {
		out[i] = wirePair{Key: p.Key, Value: p.Value}
	}
	return out
}

// pairsToRecord rebuilds a wire record from transport order.
func pairsToRecord(pairs []wirePair) *wire.Record {
	rec := wire.NewRecord()
	for _, p := range pairs {
		rec.Set(p.Key, p.Value)
	}
	return rec
}

// modeString renders a wire mode for the client.
func modeString(m wire.Mode) string {
	if m == wire.ModePush {
		return "push"
	}
	return "replace"
}
