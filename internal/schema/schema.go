// Package schema defines the per-entity-type field schemas that drive row
// validation, diff computation, and merge-patch application.
//
// A schema declares, for every field of an entity type, its wire type (how raw
// spreadsheet cells are coerced) and its change kind (how the diff engine
// compares a proposed value against the canonical one). Keeping both in one
// declaration is what lets the pipeline stay data-driven instead of growing a
// hand-written branch per field name.
package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FieldType represents the expected data type for an imported field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldBool
)

// ChangeKind controls how the diff engine compares a field.
type ChangeKind int

const (
	// Scalar fields compare by direct inequality.
	Scalar ChangeKind = iota
	// NestedMap fields recurse key-by-key; unchanged subtrees yield no delta.
	NestedMap
	// ImageSet fields compare as an order-insensitive set of URLs and
	// produce a single coarse delta carrying both full arrays.
	ImageSet
	// FeatureMap fields compare boolean toggles key-by-key over the union
	// of keys; each differing toggle is its own delta.
	FeatureMap
)

// FieldSpec defines validation and diff rules for a single field.
type FieldSpec struct {
	Name       string     // Field name as it appears in import headers and payloads
	Type       FieldType  // Expected data type for coercion
	Kind       ChangeKind // How the diff engine compares this field
	Required   bool       // Field must be present and non-empty in imports
	AllowEmpty bool       // If true, empty values pass even when Required
	EnumValues []string   // Valid values for FieldEnum type
	Identity   bool       // Field participates in the dedupe key
}

// EntityType describes one canonical entity kind and its field schema.
type EntityType struct {
	Key    string // Unique identifier: "listing", "city", "street"
	Label  string // Display name
	Fields []FieldSpec
}

// Field returns the spec for a named field.
func (e EntityType) Field(name string) (FieldSpec, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// IdentityFields returns the names of the fields that compose the dedupe key,
// in schema order.
func (e EntityType) IdentityFields() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Identity {
			names = append(names, f.Name)
		}
	}
	return names
}

// RequiredFields returns the names of all required fields, in schema order.
func (e EntityType) RequiredFields() []string {
	var names []string
	for _, f := range e.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// DedupeKey builds the case- and whitespace-insensitive composite key used for
// duplicate detection, from already-normalized field values. Returns "" when
// none of the identity fields carry a value, in which case the row cannot
// collide with anything.
func (e EntityType) DedupeKey(fields map[string]any) string {
	parts := make([]string, 0, 4)
	empty := true
	for _, f := range e.Fields {
		if !f.Identity {
			continue
		}
		s := foldValue(fields[f.Name])
		if s != "" {
			empty = false
		}
		parts = append(parts, s)
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "\x1f")
}

// ValidateProposed checks a proposed edit payload against the schema.
// Unknown fields are rejected outright rather than passed through untyped.
func (e EntityType) ValidateProposed(proposed map[string]any) error {
	var unknown []string
	for name := range proposed {
		if _, ok := e.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown fields for %s: %s", e.Key, strings.Join(unknown, ", "))
	}
	return nil
}

// foldValue renders a value for dedupe-key purposes: lowercase, with runs of
// whitespace collapsed to a single space.
func foldValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		s = t
	default:
		s = fmt.Sprintf("%v", t)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
