// Package codec converts typed filter values to and from their
// query-string literals, one codec per field kind.
//
// Codecs are pure and hold no shared state. Encoding is lossless within
// each kind's declared precision; dates in particular are encoded as
// calendar dates, never instants, so a value re-parsed in a different
// timezone context can never shift to a neighboring day.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/movapages/angular-url-form-sync/pkg/filter"
)

// Codec converts between a typed value and its wire literal.
type Codec interface {
	// Encode serializes a present value. ok is false when the value has
	// no representable wire form and its key must be omitted.
	Encode(v filter.Value) (s string, ok bool)

	// Decode parses a wire literal. Failures wrap ErrInvalidFormat or
	// ErrUnknownValue.
	Decode(raw string) (filter.Value, error)
}

// For returns the codec for a field spec. Enum codecs capture the
// spec's declared value set.
func For(spec filter.FieldSpec) Codec {
	switch spec.Kind {
	case filter.KindDate:
		return dateCodec{}
	case filter.KindInteger:
		return integerCodec{}
	case filter.KindBoolean:
		return booleanCodec{}
	case filter.KindStringArray:
		return stringArrayCodec{}
	case filter.KindEnum:
		return enumCodec{values: spec.EnumValues}
	default:
		return textCodec{}
	}
}

// dateCodec encodes local calendar dates as YYYY-MM-DD.
type dateCodec struct{}

func (dateCodec) Encode(v filter.Value) (string, bool) {
	d, ok := v.Date()
	if !ok {
		return "", false
	}
	return d.String(), true
}

func (dateCodec) Decode(raw string) (filter.Value, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return filter.Value{}, invalidFormat(raw, "date must have exactly 3 components")
	}
	nums := make([]int, 3)
	for i, p := range parts {
		// Digits only: Atoi alone would admit signed components like "+3".
		if p == "" || !isDigits(p) {
			return filter.Value{}, invalidFormat(raw, fmt.Sprintf("non-numeric date component %q", p))
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return filter.Value{}, invalidFormat(raw, fmt.Sprintf("non-numeric date component %q", p))
		}
		nums[i] = n
	}
	d := filter.Date{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	if !d.Valid() {
		return filter.Value{}, invalidFormat(raw, "date out of calendar range")
	}
	return filter.DateValue(d), nil
}

// isDigits reports whether s consists of ASCII digits only.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// integerCodec encodes signed base-10 integers.
type integerCodec struct{}

func (integerCodec) Encode(v filter.Value) (string, bool) {
	i, ok := v.Int()
	if !ok {
		return "", false
	}
	return strconv.FormatInt(i, 10), true
}

func (integerCodec) Decode(raw string) (filter.Value, error) {
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return filter.Value{}, invalidFormat(raw, "not a base-10 integer")
	}
	return filter.IntegerValue(i), nil
}

// booleanCodec accepts exactly the literals "true" and "false",
// case-sensitive. "1", "True" and friends are malformed on purpose: the
// wire grammar is a contract, not a convenience.
type booleanCodec struct{}

func (booleanCodec) Encode(v filter.Value) (string, bool) {
	b, ok := v.Bool()
	if !ok {
		return "", false
	}
	return strconv.FormatBool(b), true
}

func (booleanCodec) Decode(raw string) (filter.Value, error) {
	switch raw {
	case "true":
		return filter.BooleanValue(true), nil
	case "false":
		return filter.BooleanValue(false), nil
	default:
		return filter.Value{}, invalidFormat(raw, `boolean must be "true" or "false"`)
	}
}

// stringArrayCodec joins elements with commas. Elements must not contain
// commas themselves. Decoding never fails; empty elements are dropped, so
// ",,a," decodes to ["a"] and "" decodes to the empty array.
type stringArrayCodec struct{}

func (stringArrayCodec) Encode(v filter.Value) (string, bool) {
	elems, ok := v.Strings()
	if !ok || len(elems) == 0 {
		// An empty array has no wire form; the key is omitted.
		return "", false
	}
	return strings.Join(elems, ","), true
}

func (stringArrayCodec) Decode(raw string) (filter.Value, error) {
	var elems []string
	for _, part := range strings.Split(raw, ",") {
		if part == "" {
			continue
		}
		elems = append(elems, part)
	}
	return filter.StringArrayValue(elems), nil
}

// enumCodec restricts literals to the declared value set.
type enumCodec struct {
	values []string
}

func (c enumCodec) Encode(v filter.Value) (string, bool) {
	s, ok := v.Text()
	if !ok {
		return "", false
	}
	return s, true
}

func (c enumCodec) Decode(raw string) (filter.Value, error) {
	for _, val := range c.values {
		if raw == val {
			return filter.EnumValue(raw), nil
		}
	}
	return filter.Value{}, unknownValue(raw, fmt.Sprintf("not one of %v", c.values))
}

// textCodec passes strings through unchanged. Percent-decoding is the
// wire transport's job and has already happened by the time Decode runs.
type textCodec struct{}

func (textCodec) Encode(v filter.Value) (string, bool) {
	s, ok := v.Text()
	if !ok {
		return "", false
	}
	return s, true
}

func (textCodec) Decode(raw string) (filter.Value, error) {
	return filter.TextValue(raw), nil
}
