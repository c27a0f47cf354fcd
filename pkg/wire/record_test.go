package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecordPreservesInsertionOrder(t *testing.T) {
	rec := NewRecord()
	rec.Set("z", "1")
	rec.Set("a", "2")
	rec.Set("m", "3")

	if diff := cmp.Diff([]string{"z", "a", "m"}, rec.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	// Overwriting keeps the original position.
	rec.Set("z", "9")
	if diff := cmp.Diff([]string{"z", "a", "m"}, rec.Keys()); diff != "" {
		t.Errorf("Keys mismatch after overwrite (-want +got):\n%s", diff)
	}
	if v, _ := rec.Get("z"); v != "9" {
		t.Errorf("Expected 9, got %s", v)
	}
}

func TestRecordEncode(t *testing.T) {
	rec := NewRecord()
	rec.Set("q", "payment gateway")
	rec.Set("level", "error,warn")

	got := rec.Encode()
	want := "q=payment+gateway&level=error%2Cwarn"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestParseQuery(t *testing.T) {
	rec := ParseQuery("?dateFrom=2024-03-01&q=payment+gateway")

	if diff := cmp.Diff([]string{"dateFrom", "q"}, rec.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	if v, _ := rec.Get("q"); v != "payment gateway" {
		t.Errorf("Expected decoded value, got %q", v)
	}
}

func TestParseQueryDuplicateKeysKeepLast(t *testing.T) {
	rec := ParseQuery("a=1&b=2&a=3")
	if v, _ := rec.Get("a"); v != "3" {
		t.Errorf("Expected last value 3, got %s", v)
	}
	if rec.Len() != 2 {
		t.Errorf("Expected 2 pairs, got %d", rec.Len())
	}
}

func TestParseQuerySkipsUndecodable(t *testing.T) {
	rec := ParseQuery("good=1&bad=%zz&also=2")
	if rec.Has("bad") {
		t.Error("Expected undecodable pair to be skipped")
	}
	if rec.Len() != 2 {
		t.Errorf("Expected 2 pairs, got %d", rec.Len())
	}
}

func TestParseQueryEmpty(t *testing.T) {
	if n := ParseQuery("").Len(); n != 0 {
		t.Errorf("Expected empty record, got %d pairs", n)
	}
	if n := ParseQuery("?").Len(); n != 0 {
		t.Errorf("Expected empty record, got %d pairs", n)
	}
}

func TestRecordEqualIsOrderSensitive(t *testing.T) {
	a := NewRecord()
	a.Set("x", "1")
	a.Set("y", "2")

	b := NewRecord()
	b.Set("y", "2")
	b.Set("x", "1")

	if a.Equal(b) {
		t.Error("Expected records with different order to differ")
	}
	if !a.Equal(a.Clone()) {
		t.Error("Expected clone to be equal")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewRecord()
	a.Set("x", "1")

	b := a.Clone()
	b.Set("x", "2")
	b.Set("y", "3")

	if v, _ := a.Get("x"); v != "1" {
		t.Errorf("Expected original untouched, got x=%s", v)
	}
	if a.Has("y") {
		t.Error("Expected original not to gain keys")
	}
}
