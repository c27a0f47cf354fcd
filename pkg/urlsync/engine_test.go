package urlsync

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/movapages/angular-url-form-sync/pkg/codec"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/wire"
)

func logViewerRegistry(t *testing.T) *filter.Registry {
	t.Helper()
	return filter.MustRegistry(
		filter.FieldSpec{Name: "accountId", Kind: filter.KindInteger},
		filter.FieldSpec{Name: "needToFix", Kind: filter.KindBoolean},
		filter.FieldSpec{Name: "level", Kind: filter.KindStringArray},
		filter.FieldSpec{Name: "dateFrom", Kind: filter.KindDate},
		filter.FieldSpec{Name: "dateTo", Kind: filter.KindDate},
		filter.FieldSpec{Name: "q", Kind: filter.KindText},
	)
}

func startedEngine(t *testing.T, reg *filter.Registry, opts ...Option) (*filter.State, *wire.MemorySink, *Engine) {
	t.Helper()
	state := filter.NewState(reg)
	sink := wire.NewMemorySink()
	eng, err := New(state, sink, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(eng.Stop)
	return state, sink, eng
}

func TestProjectWritesDateRange(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	err := state.ApplyPatch(filter.Patch{
		"dateFrom": filter.DateValue(filter.Date{Year: 2024, Month: time.March, Day: 1}),
		"dateTo":   filter.DateValue(filter.Date{Year: 2024, Month: time.March, Day: 7}),
	}, false)
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	got := sink.Current().Encode()
	want := "dateFrom=2024-03-01&dateTo=2024-03-07"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestProjectOmitsAbsentAndDefaults(t *testing.T) {
	reg := filter.MustRegistry(
		filter.FieldSpec{Name: "needToFix", Kind: filter.KindBoolean, Default: filter.BooleanValue(false)},
		filter.FieldSpec{Name: "q", Kind: filter.KindText},
	)
	state, sink, _ := startedEngine(t, reg)

	if err := state.Set("q", filter.TextValue("invoice")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := sink.Current().Encode(); got != "q=invoice" {
		t.Errorf("Expected default-valued field omitted, got %s", got)
	}

	// Moving off the default puts the key on the wire.
	if err := state.Set("needToFix", filter.BooleanValue(true)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !sink.Current().Has("needToFix") {
		t.Error("Expected non-default value on the wire")
	}

	// Back to the default removes it again.
	if err := state.Set("needToFix", filter.BooleanValue(false)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if sink.Current().Has("needToFix") {
		t.Error("Expected default value omitted from the wire")
	}
}

func TestProjectClearingRemovesExactlyThatKey(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	err := state.ApplyPatch(filter.Patch{
		"accountId": filter.IntegerValue(42),
		"q":         filter.TextValue("invoice"),
	}, false)
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if err := state.Clear("accountId"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	cur := sink.Current()
	if cur.Has("accountId") {
		t.Error("Expected cleared field off the wire")
	}
	if v, _ := cur.Get("q"); v != "invoice" {
		t.Errorf("Expected other keys preserved, got q=%q", v)
	}
}

func TestProjectOmitsEmptyArray(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	if err := state.Set("level", filter.StringArrayValue(nil)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if sink.Current().Has("level") {
		t.Error("Expected empty array to have no wire key")
	}
}

func TestProjectKeyOrderFollowsRegistry(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	// Set in reverse of declaration order.
	err := state.ApplyPatch(filter.Patch{
		"q":         filter.TextValue("x"),
		"accountId": filter.IntegerValue(1),
	}, false)
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if diff := cmp.Diff([]string{"accountId", "q"}, sink.Current().Keys()); diff != "" {
		t.Errorf("Key order mismatch (-want +got):\n%s", diff)
	}
}

func TestEchoIsSuppressed(t *testing.T) {
	var diags CollectDiagnostics
	state, sink, _ := startedEngine(t, logViewerRegistry(t), WithDiagnostics(&diags))

	stateChanges := 0
	unsub := state.Subscribe(func(filter.Change) { stateChanges++ })
	defer unsub()

	if err := state.Set("accountId", filter.IntegerValue(42)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// The sink echoed the engine's own write back; the engine must not
	// reconcile it into a second state change or a second write.
	if stateChanges != 1 {
		t.Errorf("Expected exactly 1 state change, got %d", stateChanges)
	}
	if n := len(sink.Writes()); n != 1 {
		t.Errorf("Expected exactly 1 wire write, got %d", n)
	}
	if diags.Len() != 0 {
		t.Errorf("Expected no diagnostics, got %v", diags.Entries())
	}
}

func TestReconcileExternalNavigation(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	sink.Navigate(wire.ParseQuery("accountId=42&needToFix=true&level=error,warn"))

	if i, _ := state.Get("accountId").Int(); i != 42 {
		t.Errorf("Expected accountId 42, got %v", state.Get("accountId"))
	}
	if b, _ := state.Get("needToFix").Bool(); !b {
		t.Errorf("Expected needToFix true, got %v", state.Get("needToFix"))
	}
	levels, _ := state.Get("level").Strings()
	if diff := cmp.Diff([]string{"error", "warn"}, levels); diff != "" {
		t.Errorf("Levels mismatch (-want +got):\n%s", diff)
	}

	// Reconciliation is silent: no projection was pushed back.
	if n := len(sink.Writes()); n != 0 {
		t.Errorf("Expected no wire writes from reconciliation, got %d", n)
	}
}

func TestReconcilePartialFailureIsolation(t *testing.T) {
	var diags CollectDiagnostics
	state, sink, _ := startedEngine(t, logViewerRegistry(t), WithDiagnostics(&diags))

	sink.Navigate(wire.ParseQuery("accountId=42&dateFrom=not-a-date&q=ok"))

	if i, _ := state.Get("accountId").Int(); i != 42 {
		t.Error("Expected good field applied despite bad sibling")
	}
	if q, _ := state.Get("q").Text(); q != "ok" {
		t.Error("Expected good field applied despite bad sibling")
	}
	if state.Get("dateFrom").Present() {
		t.Error("Expected bad field not applied")
	}

	entries := diags.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(entries))
	}
	if entries[0].WireKey != "dateFrom" || entries[0].Raw != "not-a-date" {
		t.Errorf("Unexpected diagnostic %+v", entries[0])
	}
	if !errors.Is(entries[0].Err, codec.ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat, got %v", entries[0].Err)
	}
}

func TestReconcileAllFieldsBad(t *testing.T) {
	var diags CollectDiagnostics
	_, _, eng := startedEngine(t, logViewerRegistry(t), WithDiagnostics(&diags))

	patch := eng.Reconcile(wire.ParseQuery("dateFrom=not-a-date&needToFix=maybe"))
	if len(patch) != 0 {
		t.Errorf("Expected empty patch, got %v", patch)
	}
	if diags.Len() != 2 {
		t.Errorf("Expected 2 diagnostics, got %d", diags.Len())
	}
}

func TestReconcileUnresolvedKey(t *testing.T) {
	var diags CollectDiagnostics
	_, sink, _ := startedEngine(t, logViewerRegistry(t), WithDiagnostics(&diags))

	sink.Navigate(wire.ParseQuery("utm_source=mail"))

	entries := diags.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(entries))
	}
	if !errors.Is(entries[0].Err, codec.ErrUnresolvedKey) {
		t.Errorf("Expected ErrUnresolvedKey, got %v", entries[0].Err)
	}
}

func TestReconcileEnumUnknownValue(t *testing.T) {
	reg := filter.MustRegistry(
		filter.FieldSpec{Name: "severity", Kind: filter.KindEnum, EnumValues: []string{"low", "high"}},
	)
	var diags CollectDiagnostics
	_, sink, _ := startedEngine(t, reg, WithDiagnostics(&diags))

	sink.Navigate(wire.ParseQuery("severity=medium"))

	entries := diags.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %d", len(entries))
	}
	if !errors.Is(entries[0].Err, codec.ErrUnknownValue) {
		t.Errorf("Expected ErrUnknownValue, got %v", entries[0].Err)
	}
}

func TestOlderTagStillReconciles(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	// Two projections issue tags 1 and 2.
	if err := state.Set("q", filter.TextValue("a")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := state.Set("q", filter.TextValue("b")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	writes := sink.Writes()
	if len(writes) != 2 {
		t.Fatalf("Expected 2 writes, got %d", len(writes))
	}

	// A change event carrying the superseded first tag means the
	// location moved again after our last write; it must reconcile.
	rec := wire.ParseQuery("q=old")
	sink.Write(wire.Write{Record: rec, Tag: writes[0].Tag})

	if q, _ := state.Get("q").Text(); q != "old" {
		t.Errorf("Expected superseded tag to reconcile, got q=%q", q)
	}
}

func TestUnknownKeysDroppedByDefault(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	sink.Navigate(wire.ParseQuery("accountId=1&utm_source=mail"))
	if err := state.Set("q", filter.TextValue("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if sink.Current().Has("utm_source") {
		t.Error("Expected foreign key dropped on projection")
	}
}

func TestPreserveUnknownKeys(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t), PreserveUnknownKeys())

	sink.Navigate(wire.ParseQuery("accountId=1&utm_source=mail"))
	if err := state.Set("q", filter.TextValue("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	cur := sink.Current()
	if v, _ := cur.Get("utm_source"); v != "mail" {
		t.Errorf("Expected foreign key carried through, got %q", v)
	}
	if v, _ := cur.Get("q"); v != "x" {
		t.Errorf("Expected own field projected, got %q", v)
	}
	if i, _ := state.Get("accountId").Int(); i != 1 {
		t.Errorf("Expected own key reconciled, got %v", state.Get("accountId"))
	}
}

func TestSilentPatchDoesNotProject(t *testing.T) {
	state, sink, _ := startedEngine(t, logViewerRegistry(t))

	if err := state.ApplyPatch(filter.Patch{"q": filter.TextValue("x")}, true); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if n := len(sink.Writes()); n != 0 {
		t.Errorf("Expected silent patch not to project, got %d writes", n)
	}
}

func TestStartTwiceFails(t *testing.T) {
	_, _, eng := startedEngine(t, logViewerRegistry(t))
	if err := eng.Start(); !errors.Is(err, ErrStarted) {
		t.Errorf("Expected ErrStarted, got %v", err)
	}
}

func TestStopDetaches(t *testing.T) {
	state, sink, eng := startedEngine(t, logViewerRegistry(t))
	eng.Stop()

	if err := state.Set("q", filter.TextValue("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if n := len(sink.Writes()); n != 0 {
		t.Errorf("Expected no writes after Stop, got %d", n)
	}

	sink.Navigate(wire.ParseQuery("accountId=5"))
	if state.Get("accountId").Present() {
		t.Error("Expected no reconciliation after Stop")
	}
}

func TestMiddlewareObservesBothDirections(t *testing.T) {
	var events []Event
	mw := MiddlewareFunc(func(ev *Event, next func() error) error {
		err := next()
		events = append(events, *ev)
		return err
	})
	state, sink, _ := startedEngine(t, logViewerRegistry(t), WithMiddleware(mw))

	if err := state.Set("q", filter.TextValue("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	sink.Navigate(wire.ParseQuery("accountId=3&bogus=1"))

	if len(events) != 2 {
		t.Fatalf("Expected 2 middleware events, got %d", len(events))
	}
	if events[0].Kind != EventProject || events[0].Fields != 1 || events[0].Tag == 0 {
		t.Errorf("Unexpected project event %+v", events[0])
	}
	if events[1].Kind != EventReconcile || events[1].Fields != 1 || events[1].Diagnostics != 1 {
		t.Errorf("Unexpected reconcile event %+v", events[1])
	}
}
