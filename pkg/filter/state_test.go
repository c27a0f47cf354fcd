package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return MustRegistry(
		FieldSpec{Name: "accountId", Kind: KindInteger},
		FieldSpec{Name: "needToFix", Kind: KindBoolean},
		FieldSpec{Name: "level", Kind: KindStringArray},
		FieldSpec{Name: "dateFrom", Kind: KindDate},
		FieldSpec{Name: "q", Kind: KindText},
	)
}

func TestStateSetAndClear(t *testing.T) {
	s := NewState(testRegistry(t))

	if err := s.Set("accountId", IntegerValue(42)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if i, ok := s.Get("accountId").Int(); !ok || i != 42 {
		t.Errorf("Expected 42, got %v", s.Get("accountId"))
	}

	if err := s.Clear("accountId"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if s.Get("accountId").Present() {
		t.Error("Expected cleared field to be absent")
	}
}

func TestStateRejectsUnknownField(t *testing.T) {
	s := NewState(testRegistry(t))
	if err := s.Set("nope", TextValue("x")); err == nil {
		t.Fatal("Expected unknown field to fail")
	}
}

func TestStateRejectsKindMismatch(t *testing.T) {
	s := NewState(testRegistry(t))
	if err := s.Set("accountId", TextValue("42")); err != nil {
		// good
		return
	}
	t.Fatal("Expected kind mismatch to fail")
}

func TestStateKindMismatchLeavesStateUntouched(t *testing.T) {
	s := NewState(testRegistry(t))
	if err := s.Set("q", TextValue("keep")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	err := s.ApplyPatch(Patch{
		"q":         TextValue("lost"),
		"accountId": BooleanValue(true),
	}, false)
	if err == nil {
		t.Fatal("Expected patch with bad kind to fail")
	}
	if q, _ := s.Get("q").Text(); q != "keep" {
		t.Errorf("Expected rejected patch to leave state untouched, got q=%q", q)
	}
}

func TestStateDefaultsApplied(t *testing.T) {
	reg := MustRegistry(
		FieldSpec{Name: "needToFix", Kind: KindBoolean, Default: BooleanValue(false)},
		FieldSpec{Name: "q", Kind: KindText},
	)
	s := NewState(reg)

	if b, ok := s.Get("needToFix").Bool(); !ok || b {
		t.Errorf("Expected default false, got %v", s.Get("needToFix"))
	}
	if s.Get("q").Present() {
		t.Error("Expected field without default to be absent")
	}
}

func TestStateNotifiesOncePerPatch(t *testing.T) {
	s := NewState(testRegistry(t))

	var changes []Change
	unsub := s.Subscribe(func(c Change) { changes = append(changes, c) })
	defer unsub()

	err := s.ApplyPatch(Patch{
		"accountId": IntegerValue(7),
		"q":         TextValue("invoice"),
	}, false)
	if err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	if len(changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(changes))
	}
	if diff := cmp.Diff([]string{"accountId", "q"}, changes[0].Fields); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
	if changes[0].Silent {
		t.Error("Expected non-silent change")
	}
}

func TestStateSilentFlagPropagates(t *testing.T) {
	s := NewState(testRegistry(t))

	var got Change
	unsub := s.Subscribe(func(c Change) { got = c })
	defer unsub()

	if err := s.ApplyPatch(Patch{"q": TextValue("x")}, true); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if !got.Silent {
		t.Error("Expected silent change")
	}
}

func TestStateNoOpPatchDoesNotNotify(t *testing.T) {
	s := NewState(testRegistry(t))
	if err := s.Set("q", TextValue("same")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	calls := 0
	unsub := s.Subscribe(func(Change) { calls++ })
	defer unsub()

	if err := s.Set("q", TextValue("same")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Clear("accountId"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no notifications for no-op mutations, got %d", calls)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := NewState(testRegistry(t))

	calls := 0
	unsub := s.Subscribe(func(Change) { calls++ })
	unsub()

	if err := s.Set("q", TextValue("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no notifications after unsubscribe, got %d", calls)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewState(testRegistry(t))
	if err := s.Set("accountId", IntegerValue(1)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	snap := s.Snapshot()
	if err := s.Set("accountId", IntegerValue(2)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if i, _ := snap.Get("accountId").Int(); i != 1 {
		t.Errorf("Expected snapshot to keep 1, got %d", i)
	}
	if i, _ := s.Snapshot().Get("accountId").Int(); i != 2 {
		t.Errorf("Expected fresh snapshot to see 2, got %d", i)
	}
}

func TestSnapshotEqual(t *testing.T) {
	s := NewState(testRegistry(t))
	if err := s.Set("level", StringArrayValue([]string{"error", "warn"})); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	a := s.Snapshot()
	b := s.Snapshot()
	if !a.Equal(b) {
		t.Error("Expected identical snapshots to be equal")
	}

	if err := s.Set("level", StringArrayValue([]string{"error"})); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if a.Equal(s.Snapshot()) {
		t.Error("Expected diverged snapshots to differ")
	}
}

func TestRequiredFieldsPredicate(t *testing.T) {
	reg := MustRegistry(
		FieldSpec{Name: "accountId", Kind: KindInteger, Required: true},
		FieldSpec{Name: "q", Kind: KindText},
	)
	s := NewState(reg)
	valid := RequiredFields(reg)

	if valid(s.Snapshot()) {
		t.Error("Expected missing required field to be invalid")
	}
	if err := s.Set("accountId", IntegerValue(9)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !valid(s.Snapshot()) {
		t.Error("Expected present required field to be valid")
	}
}
