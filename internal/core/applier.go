package core

// applier.go materializes an approved edit's deltas into a canonical field
// document. The patch itself is a pure function over the document; the
// transactional write around it lives in moderation.go so the whole apply
// either commits or leaves the entity untouched.

import (
	"fmt"
	"strings"

	"github.com/adboard/marketplace/internal/schema"
)

// ApplyDeltas returns a new field document with every delta's new value
// written at its path. The input document is never mutated; all deltas apply
// or an error is returned with no partial result.
func ApplyDeltas(fields map[string]any, deltas []FieldDelta) (map[string]any, error) {
	out := deepCopyMap(fields)

	for _, d := range deltas {
		if err := writeAtPath(out, d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeAtPath writes a delta's new value at its dot-addressed path, creating
// intermediate maps as needed. A nil new value on a map-valued kind removes
// the key; a nil scalar clears the field.
func writeAtPath(doc map[string]any, d FieldDelta) error {
	parts := strings.Split(d.Path, ".")
	cur := doc

	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := make(map[string]any)
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("path %s: %s is not a map", d.Path, strings.Join(parts[:i+1], "."))
		}
		cur = m
	}

	leaf := parts[len(parts)-1]
	removable := d.Kind == schema.NestedMap || d.Kind == schema.FeatureMap
	if d.New == nil && removable && len(parts) > 1 {
		delete(cur, leaf)
		return nil
	}
	cur[leaf] = d.New
	return nil
}

// deepCopyMap copies a field document so the patch never aliases canonical
// state held elsewhere.
func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
