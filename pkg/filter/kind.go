package filter

// FieldKind identifies the wire type of a filter field.
// Every field in a registry declares exactly one kind; the kind selects
// the codec used to move values between typed state and the query string.
type FieldKind int

const (
	// KindDate is a local calendar date (year, month, day). No time-of-day,
	// no timezone offset. Serialized as YYYY-MM-DD.
	KindDate FieldKind = iota

	// KindInteger is a signed base-10 integer.
	KindInteger

	// KindBoolean is a boolean serialized as the exact literals
	// "true" and "false".
	KindBoolean

	// KindStringArray is an ordered list of strings serialized as
	// comma-joined elements. Elements must not contain commas.
	KindStringArray

	// KindEnum is a string constrained to a declared set of values.
	KindEnum

	// KindText is free text, passed through unchanged.
	KindText
)

// String returns the kind name for diagnostics and errors.
func (k FieldKind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindStringArray:
		return "string-array"
	case KindEnum:
		return "enum"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}
