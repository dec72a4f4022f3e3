package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adboard/marketplace/internal/schema"
)

func TestComputeDeltaNoChanges(t *testing.T) {
	et := listingType()
	canonical := map[string]any{
		"title":    "Flat",
		"price":    float64(1000),
		"city":     "Haifa",
		"images":   []any{"a.jpg", "b.jpg"},
		"features": map[string]any{"parking": true},
	}
	proposed := map[string]any{
		"title":    "Flat",
		"price":    float64(1000),
		"city":     "Haifa",
		"images":   []any{"a.jpg", "b.jpg"},
		"features": map[string]any{"parking": true},
	}

	if deltas := ComputeDelta(et, canonical, proposed); len(deltas) != 0 {
		t.Errorf("identical documents produced deltas: %v", deltas)
	}
}

func TestComputeDeltaScalar(t *testing.T) {
	et := listingType()
	canonical := map[string]any{"title": "Flat", "price": float64(1000)}
	proposed := map[string]any{"price": float64(1200)}

	got := ComputeDelta(et, canonical, proposed)
	want := []FieldDelta{
		{Path: "price", Kind: schema.Scalar, Old: float64(1000), New: float64(1200)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltaOnlyProposedFields(t *testing.T) {
	// Fields absent from the proposal are not deltas, even when the
	// canonical document has values for them.
	et := listingType()
	canonical := map[string]any{"title": "Flat", "price": float64(1000), "city": "Haifa"}
	proposed := map[string]any{"price": float64(1200)}

	got := ComputeDelta(et, canonical, proposed)
	if len(got) != 1 || got[0].Path != "price" {
		t.Errorf("expected only the price delta, got %v", got)
	}
}

func TestComputeDeltaNumericCrossType(t *testing.T) {
	// JSON decodes numbers as float64; in-process values may be int.
	et := listingType()
	canonical := map[string]any{"price": 1000}
	proposed := map[string]any{"price": float64(1000)}

	if deltas := ComputeDelta(et, canonical, proposed); len(deltas) != 0 {
		t.Errorf("int/float64 of same number produced deltas: %v", deltas)
	}
}

func TestComputeDeltaNestedMap(t *testing.T) {
	et := listingType()
	canonical := map[string]any{
		"attributes": map[string]any{
			"heating":  "central",
			"parking":  "street",
			"interior": map[string]any{"floors": "wood", "kitchen": "new"},
		},
	}
	proposed := map[string]any{
		"attributes": map[string]any{
			"heating":  "central",
			"parking":  "garage",
			"interior": map[string]any{"floors": "wood", "kitchen": "old"},
			"balcony":  "yes",
		},
	}

	got := ComputeDelta(et, canonical, proposed)
	want := []FieldDelta{
		{Path: "attributes.balcony", Kind: schema.NestedMap, Old: nil, New: "yes"},
		{Path: "attributes.interior.kitchen", Kind: schema.NestedMap, Old: "new", New: "old"},
		{Path: "attributes.parking", Kind: schema.NestedMap, Old: "street", New: "garage"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltaNestedMapRemoval(t *testing.T) {
	et := listingType()
	canonical := map[string]any{
		"attributes": map[string]any{"heating": "central", "parking": "street"},
	}
	proposed := map[string]any{
		"attributes": map[string]any{"heating": "central"},
	}

	got := ComputeDelta(et, canonical, proposed)
	want := []FieldDelta{
		{Path: "attributes.parking", Kind: schema.NestedMap, Old: "street", New: nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltaImageSet(t *testing.T) {
	et := listingType()

	t.Run("reorder is not a change", func(t *testing.T) {
		canonical := map[string]any{"images": []any{"a.jpg", "b.jpg", "c.jpg"}}
		proposed := map[string]any{"images": []any{"c.jpg", "a.jpg", "b.jpg"}}

		if deltas := ComputeDelta(et, canonical, proposed); len(deltas) != 0 {
			t.Errorf("reordered image set produced deltas: %v", deltas)
		}
	})

	t.Run("membership change is one coarse delta", func(t *testing.T) {
		canonical := map[string]any{"images": []any{"a.jpg", "b.jpg"}}
		proposed := map[string]any{"images": []any{"a.jpg", "d.jpg"}}

		got := ComputeDelta(et, canonical, proposed)
		if len(got) != 1 {
			t.Fatalf("expected exactly one delta, got %v", got)
		}
		d := got[0]
		if d.Path != "images" || d.Kind != schema.ImageSet {
			t.Errorf("delta = %+v", d)
		}
		if diff := cmp.Diff(canonical["images"], d.Old); diff != "" {
			t.Errorf("old array mismatch:\n%s", diff)
		}
		if diff := cmp.Diff(proposed["images"], d.New); diff != "" {
			t.Errorf("new array mismatch:\n%s", diff)
		}
	})

	t.Run("removing all images", func(t *testing.T) {
		canonical := map[string]any{"images": []any{"a.jpg"}}
		proposed := map[string]any{"images": []any{}}

		got := ComputeDelta(et, canonical, proposed)
		if len(got) != 1 {
			t.Fatalf("expected one delta, got %v", got)
		}
	})
}

func TestComputeDeltaFeatureMap(t *testing.T) {
	et := listingType()
	canonical := map[string]any{
		"features": map[string]any{"parking": true, "elevator": false, "garden": true},
	}
	proposed := map[string]any{
		"features": map[string]any{"parking": true, "elevator": true, "aircon": true},
	}

	got := ComputeDelta(et, canonical, proposed)
	want := []FieldDelta{
		{Path: "features.aircon", Kind: schema.FeatureMap, Old: nil, New: true},
		{Path: "features.elevator", Kind: schema.FeatureMap, Old: false, New: true},
		{Path: "features.garden", Kind: schema.FeatureMap, Old: true, New: nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeDeltaDeterministic(t *testing.T) {
	et := listingType()
	canonical := map[string]any{
		"title":      "Flat",
		"attributes": map[string]any{"a": "1", "b": "2", "c": "3"},
		"features":   map[string]any{"x": true, "y": false},
	}
	proposed := map[string]any{
		"title":      "Bigger flat",
		"attributes": map[string]any{"a": "9", "b": "2", "d": "4"},
		"features":   map[string]any{"x": false, "z": true},
	}

	first := ComputeDelta(et, canonical, proposed)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, ComputeDelta(et, canonical, proposed)); diff != "" {
			t.Fatalf("delta ordering not deterministic:\n%s", diff)
		}
	}
}

func TestComputeDeltaSymmetry(t *testing.T) {
	// Swapping the two documents yields the same paths with old and new
	// values exchanged, for every change kind.
	et := listingType()
	a := map[string]any{
		"title":      "Flat",
		"price":      float64(1000),
		"attributes": map[string]any{"heating": "gas", "interior": map[string]any{"kitchen": "old"}},
		"images":     []any{"a.jpg", "b.jpg"},
		"features":   map[string]any{"parking": true, "garden": true},
	}
	b := map[string]any{
		"title":      "Bigger flat",
		"price":      float64(1200),
		"attributes": map[string]any{"heating": "electric", "interior": map[string]any{"kitchen": "new"}, "balcony": "yes"},
		"images":     []any{"a.jpg", "c.jpg"},
		"features":   map[string]any{"parking": false, "aircon": true},
	}

	forward := ComputeDelta(et, a, b)
	reverse := ComputeDelta(et, b, a)

	if len(forward) == 0 {
		t.Fatal("expected deltas between distinct documents")
	}

	swapped := make([]FieldDelta, len(reverse))
	for i, d := range reverse {
		swapped[i] = FieldDelta{Path: d.Path, Kind: d.Kind, Old: d.New, New: d.Old}
	}
	if diff := cmp.Diff(forward, swapped); diff != "" {
		t.Errorf("reverse deltas do not mirror forward (-forward +mirrored reverse):\n%s", diff)
	}
}
