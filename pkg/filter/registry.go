package filter

import "fmt"

// FieldSpec declares one filter field: its state name, wire type and the
// query-parameter key it occupies.
type FieldSpec struct {
	// Name is the field's name in filter state. Must be unique.
	Name string

	// Kind selects the codec for this field.
	Kind FieldKind

	// WireKey is the query-parameter key. Defaults to Name when empty.
	// Must be unique across the registry.
	WireKey string

	// EnumValues is the declared value set for KindEnum fields.
	EnumValues []string

	// Required marks the field for the RequiredFields validity predicate.
	Required bool

	// Default, when present, is the field's initial state value. Values
	// equal to the default are omitted from wire projections.
	Default Value
}

// wireKey returns the effective wire key.
func (s FieldSpec) wireKey() string {
	if s.WireKey != "" {
		return s.WireKey
	}
	return s.Name
}

// Registry is the bidirectional field index for one screen: field name to
// spec, and wire key to spec. Built once from a declarative list and
// immutable afterwards. Construction fails fast on duplicate names or
// wire keys so a collision never surfaces as runtime misrouting.
type Registry struct {
	ordered   []FieldSpec
	byName    map[string]FieldSpec
	byWireKey map[string]FieldSpec
}

// NewRegistry builds a registry from the declared field specs.
//
// Example:
//
//	reg, err := filter.NewRegistry(
//	    filter.FieldSpec{Name: "accountId", Kind: filter.KindInteger},
//	    filter.FieldSpec{Name: "dateFrom", Kind: filter.KindDate},
//	    filter.FieldSpec{Name: "level", Kind: filter.KindStringArray},
//	)
func NewRegistry(specs ...FieldSpec) (*Registry, error) {
	r := &Registry{
		ordered:   make([]FieldSpec, 0, len(specs)),
		byName:    make(map[string]FieldSpec, len(specs)),
		byWireKey: make(map[string]FieldSpec, len(specs)),
	}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("filter: field spec with empty name")
		}
		if _, dup := r.byName[spec.Name]; dup {
			return nil, fmt.Errorf("filter: duplicate field name %q", spec.Name)
		}
		key := spec.wireKey()
		if _, dup := r.byWireKey[key]; dup {
			return nil, fmt.Errorf("filter: duplicate wire key %q", key)
		}
		if spec.Kind == KindEnum && len(spec.EnumValues) == 0 {
			return nil, fmt.Errorf("filter: enum field %q declares no values", spec.Name)
		}
		if spec.Default.Present() && spec.Default.Kind() != spec.Kind {
			return nil, fmt.Errorf("filter: default for field %q has kind %s, want %s",
				spec.Name, spec.Default.Kind(), spec.Kind)
		}
		r.ordered = append(r.ordered, spec)
		r.byName[spec.Name] = spec
		r.byWireKey[key] = spec
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. For declarative
// screen setup where the field list is a compile-time constant.
func MustRegistry(specs ...FieldSpec) *Registry {
	r, err := NewRegistry(specs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup resolves a field by state name.
func (r *Registry) Lookup(name string) (FieldSpec, bool) {
	spec, ok := r.byName[name]
	return spec, ok
}

// LookupWireKey resolves a field by query-parameter key.
func (r *Registry) LookupWireKey(key string) (FieldSpec, bool) {
	spec, ok := r.byWireKey[key]
	return spec, ok
}

// Fields returns the specs in declaration order. The returned slice is a
// copy.
func (r *Registry) Fields() []FieldSpec {
	cp := make([]FieldSpec, len(r.ordered))
	copy(cp, r.ordered)
	return cp
}

// WireKeyOf returns the effective wire key for a spec.
func WireKeyOf(spec FieldSpec) string {
	return spec.wireKey()
}
