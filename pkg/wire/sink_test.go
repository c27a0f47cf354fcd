package wire

import "testing"

func TestMemorySinkEchoesWrites(t *testing.T) {
	sink := NewMemorySink()

	var events []ChangeEvent
	unsub := sink.Subscribe(func(ev ChangeEvent) { events = append(events, ev) })
	defer unsub()

	rec := NewRecord()
	rec.Set("q", "x")
	sink.Write(Write{Record: rec, Mode: ModeReplace, Tag: 7})

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Tag != 7 {
		t.Errorf("Expected echo to carry tag 7, got %d", events[0].Tag)
	}
	if !sink.Current().Equal(rec) {
		t.Error("Expected current record to match the write")
	}
}

func TestMemorySinkNavigateIsUntagged(t *testing.T) {
	sink := NewMemorySink()

	var events []ChangeEvent
	unsub := sink.Subscribe(func(ev ChangeEvent) { events = append(events, ev) })
	defer unsub()

	rec := NewRecord()
	rec.Set("dateFrom", "2024-03-01")
	sink.Navigate(rec)

	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Tag != 0 {
		t.Errorf("Expected untagged navigation, got tag %d", events[0].Tag)
	}
}

func TestMemorySinkRecordsWrites(t *testing.T) {
	sink := NewMemorySink()

	a := NewRecord()
	a.Set("q", "1")
	b := NewRecord()
	b.Set("q", "2")

	sink.Write(Write{Record: a, Tag: 1})
	sink.Write(Write{Record: b, Mode: ModePush, Tag: 2})

	writes := sink.Writes()
	if len(writes) != 2 {
		t.Fatalf("Expected 2 writes, got %d", len(writes))
	}
	if writes[1].Mode != ModePush {
		t.Error("Expected second write to be push mode")
	}
	if v, _ := writes[0].Record.Get("q"); v != "1" {
		t.Errorf("Expected first write preserved, got q=%s", v)
	}
}
