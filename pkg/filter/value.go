package filter

import (
	"fmt"
	"time"
)

// Date is a local calendar date. Equality compares year, month and day
// only; a time-of-day never enters the model, so two dates observed in
// different timezones can never drift apart.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf extracts the calendar date from a time.Time in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Valid reports whether the date names a real calendar day.
func (d Date) Valid() bool {
	if d.Month < time.January || d.Month > time.December {
		return false
	}
	norm := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	ny, nm, nd := norm.Date()
	return ny == d.Year && nm == d.Month && nd == d.Day
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Value is an optional typed filter value. The zero Value is absent.
// A present Value carries exactly the representation implied by its kind.
type Value struct {
	kind    FieldKind
	present bool

	date    Date
	integer int64
	boolean bool
	list    []string
	text    string // enum and text kinds
}

// Absent returns the absent value. It compares equal to any other absent
// value regardless of kind.
func Absent() Value {
	return Value{}
}

// DateValue returns a present date value.
func DateValue(d Date) Value {
	return Value{kind: KindDate, present: true, date: d}
}

// IntegerValue returns a present integer value.
func IntegerValue(i int64) Value {
	return Value{kind: KindInteger, present: true, integer: i}
}

// BooleanValue returns a present boolean value.
func BooleanValue(b bool) Value {
	return Value{kind: KindBoolean, present: true, boolean: b}
}

// StringArrayValue returns a present string-array value.
// The slice is copied; the caller keeps ownership of its argument.
func StringArrayValue(elems []string) Value {
	cp := make([]string, len(elems))
	copy(cp, elems)
	return Value{kind: KindStringArray, present: true, list: cp}
}

// EnumValue returns a present enum value. Membership in the declared set
// is enforced by the codec and by State.Set, not here.
func EnumValue(s string) Value {
	return Value{kind: KindEnum, present: true, text: s}
}

// TextValue returns a present free-text value.
func TextValue(s string) Value {
	return Value{kind: KindText, present: true, text: s}
}

// Present reports whether the value is set.
func (v Value) Present() bool { return v.present }

// Kind returns the value's kind. Only meaningful for present values.
func (v Value) Kind() FieldKind { return v.kind }

// Date returns the date payload. The bool is false if the value is absent
// or not a date.
func (v Value) Date() (Date, bool) {
	if !v.present || v.kind != KindDate {
		return Date{}, false
	}
	return v.date, true
}

// Int returns the integer payload.
func (v Value) Int() (int64, bool) {
	if !v.present || v.kind != KindInteger {
		return 0, false
	}
	return v.integer, true
}

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) {
	if !v.present || v.kind != KindBoolean {
		return false, false
	}
	return v.boolean, true
}

// Strings returns a copy of the string-array payload.
func (v Value) Strings() ([]string, bool) {
	if !v.present || v.kind != KindStringArray {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

// Text returns the enum or text payload.
func (v Value) Text() (string, bool) {
	if !v.present || (v.kind != KindEnum && v.kind != KindText) {
		return "", false
	}
	return v.text, true
}

// Equal reports value equality under the kind's own equality. Date
// equality ignores time-of-day by construction; arrays compare
// element-wise in order. Absent equals absent.
func (v Value) Equal(o Value) bool {
	if v.present != o.present {
		return false
	}
	if !v.present {
		return true
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindDate:
		return v.date == o.date
	case KindInteger:
		return v.integer == o.integer
	case KindBoolean:
		return v.boolean == o.boolean
	case KindStringArray:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return v.text == o.text
	}
}

// String renders the value for diagnostics. Not the wire encoding.
func (v Value) String() string {
	if !v.present {
		return "<absent>"
	}
	switch v.kind {
	case KindDate:
		return v.date.String()
	case KindInteger:
		return fmt.Sprintf("%d", v.integer)
	case KindBoolean:
		return fmt.Sprintf("%v", v.boolean)
	case KindStringArray:
		return fmt.Sprintf("%v", v.list)
	default:
		return v.text
	}
}
