// Package urlsync is the bidirectional synchronization engine between a
// typed filter state and the query-parameter representation of that
// state.
//
// The engine owns both directions of the sync:
//
//   - push: state mutations are projected to a complete wire record and
//     written to the Sink, tagged so the engine can recognize the
//     resulting change notification as its own echo.
//   - pull: externally originated wire changes (deep links, manual
//     edits, back/forward navigation) are reconciled into a single
//     atomic state patch, applied silently so it is not projected back.
//
// Malformed wire entries never abort a reconciliation pass. Each failed
// field is skipped, its previous state value retained, and one
// Diagnostic reported per skipped field.
//
// Example:
//
//	state := filter.NewState(reg)
//	sink := wire.NewMemorySink()
//	eng, _ := urlsync.New(state, sink)
//	eng.Start()
//	defer eng.Stop()
//
//	state.Set("q", filter.TextValue("deploy"))   // projected to ?q=deploy
//	sink.Navigate(wire.ParseQuery("q=rollback")) // reconciled into state
package urlsync
