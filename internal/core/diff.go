package core

// diff.go implements the field-level diff engine between a canonical entity
// and a proposed version.
//
// The comparison is driven entirely by the entity type's schema: each field's
// ChangeKind decides whether it diffs as a scalar, recurses into a nested
// attribute map, collapses into one coarse image-set delta, or fans out into
// per-toggle feature deltas. There is deliberately no per-field-name logic
// here.
//
// ComputeDelta is deterministic and side-effect free; a proposed version equal
// to the canonical one yields an empty delta list.

import (
	"sort"

	"github.com/adboard/marketplace/internal/schema"
)

// ComputeDelta returns the ordered list of differences between the canonical
// field document and a proposed one. Only fields present in the proposed
// payload are considered: a submitter proposes exactly the fields they intend
// to change. Deltas follow schema field order; within a map-valued field,
// key order.
func ComputeDelta(et schema.EntityType, canonical, proposed map[string]any) []FieldDelta {
	var deltas []FieldDelta

	for _, spec := range et.Fields {
		pv, ok := proposed[spec.Name]
		if !ok {
			continue
		}
		cv := canonical[spec.Name]

		switch spec.Kind {
		case schema.NestedMap:
			deltas = append(deltas, diffNestedMap(spec.Name, cv, pv)...)
		case schema.ImageSet:
			if d, changed := diffImageSet(spec.Name, cv, pv); changed {
				deltas = append(deltas, d)
			}
		case schema.FeatureMap:
			deltas = append(deltas, diffFeatureMap(spec.Name, cv, pv)...)
		default:
			if !valueEqual(cv, pv) {
				deltas = append(deltas, FieldDelta{Path: spec.Name, Kind: schema.Scalar, Old: cv, New: pv})
			}
		}
	}

	return deltas
}

// diffNestedMap recurses key-by-key over an attribute map. A key present on
// only one side counts as changed with the missing side reported as nil;
// unchanged subtrees yield no delta.
func diffNestedMap(path string, canonical, proposed any) []FieldDelta {
	cm, cok := canonical.(map[string]any)
	pm, pok := proposed.(map[string]any)
	if !cok || !pok {
		// One side is not a map; fall back to a scalar comparison at
		// this path so the change is still surfaced.
		if !valueEqual(canonical, proposed) {
			return []FieldDelta{{Path: path, Kind: schema.NestedMap, Old: canonical, New: proposed}}
		}
		return nil
	}

	var deltas []FieldDelta
	for _, key := range unionKeys(cm, pm) {
		cv, inC := cm[key]
		pv, inP := pm[key]
		sub := path + "." + key

		switch {
		case inC && inP:
			if isMap(cv) || isMap(pv) {
				deltas = append(deltas, diffNestedMap(sub, cv, pv)...)
			} else if !valueEqual(cv, pv) {
				deltas = append(deltas, FieldDelta{Path: sub, Kind: schema.NestedMap, Old: cv, New: pv})
			}
		case inC:
			deltas = append(deltas, FieldDelta{Path: sub, Kind: schema.NestedMap, Old: cv, New: nil})
		default:
			deltas = append(deltas, FieldDelta{Path: sub, Kind: schema.NestedMap, Old: nil, New: pv})
		}
	}
	return deltas
}

// diffImageSet compares two image arrays as sets of URLs, order-insensitive.
// Any membership difference produces exactly one coarse delta carrying both
// full arrays; reordering alone is not a change.
func diffImageSet(path string, canonical, proposed any) (FieldDelta, bool) {
	cs := toStringSet(canonical)
	ps := toStringSet(proposed)

	if len(cs) == len(ps) {
		same := true
		for url := range cs {
			if !ps[url] {
				same = false
				break
			}
		}
		if same {
			return FieldDelta{}, false
		}
	}

	return FieldDelta{Path: path, Kind: schema.ImageSet, Old: canonical, New: proposed}, true
}

// diffFeatureMap compares boolean toggles key-by-key over the union of keys.
// Each differing toggle is its own delta: unlike images, every toggle is
// independently meaningful to a reviewer.
func diffFeatureMap(path string, canonical, proposed any) []FieldDelta {
	cm, _ := canonical.(map[string]any)
	pm, _ := proposed.(map[string]any)

	var deltas []FieldDelta
	for _, key := range unionKeys(cm, pm) {
		cv, inC := cm[key]
		pv, inP := pm[key]
		if inC && inP && valueEqual(cv, pv) {
			continue
		}
		if !inC {
			cv = nil
		}
		if !inP {
			pv = nil
		}
		deltas = append(deltas, FieldDelta{Path: path + "." + key, Kind: schema.FeatureMap, Old: cv, New: pv})
	}
	return deltas
}

// valueEqual compares two field values, treating int/float representations of
// the same number as equal. JSON decoding yields float64 while in-process
// construction may use int, so numeric comparison cannot rely on type identity.
func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch at := a.(type) {
	case nil:
		return b == nil
	case string:
		bs, ok := b.(string)
		return ok && at == bs
	case bool:
		bb, ok := b.(bool)
		return ok && at == bb
	case []any:
		bl, ok := b.([]any)
		if !ok || len(at) != len(bl) {
			return false
		}
		for i := range at {
			if !valueEqual(at[i], bl[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bm, ok := b.(map[string]any)
		if !ok || len(at) != len(bm) {
			return false
		}
		for k, av := range at {
			bv, ok := bm[k]
			if !ok || !valueEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toStringSet(v any) map[string]bool {
	set := make(map[string]bool)
	list, ok := v.([]any)
	if !ok {
		if sl, ok2 := v.([]string); ok2 {
			for _, s := range sl {
				set[s] = true
			}
		}
		return set
	}
	for _, item := range list {
		if s, ok := item.(string); ok {
			set[s] = true
		}
	}
	return set
}
