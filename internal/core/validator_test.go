package core

import (
	"strings"
	"testing"

	"github.com/adboard/marketplace/internal/schema"
)

func listingType() schema.EntityType {
	et, ok := schema.Get("listing")
	if !ok {
		panic("listing schema not registered")
	}
	return et
}

var listingHeaders = []string{"title", "price", "city", "street", "listing_type"}

func TestValidateHeaders(t *testing.T) {
	tests := []struct {
		name        string
		headers     []string
		wantErr     bool
		wantMissing string
	}{
		{
			name:    "all required present",
			headers: listingHeaders,
		},
		{
			name:    "case insensitive",
			headers: []string{"Title", "PRICE", "City", "listing_type"},
		},
		{
			name:        "missing city",
			headers:     []string{"title", "price", "listing_type"},
			wantErr:     true,
			wantMissing: "city",
		},
		{
			name:        "missing everything",
			headers:     []string{"unrelated"},
			wantErr:     true,
			wantMissing: "title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRowValidator(listingType(), tt.headers)
			err := v.ValidateHeaders()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantMissing) {
					t.Errorf("error %q does not name missing column %s", err, tt.wantMissing)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestClassifyRow(t *testing.T) {
	v := NewRowValidator(listingType(), listingHeaders)

	tests := []struct {
		name       string
		row        []string
		wantStatus RowStatus
		wantErrs   []string // substrings that must appear in row errors
	}{
		{
			name:       "valid row",
			row:        []string{"Sunny flat", "₪1,250,000", "Haifa", "Herzl", "sale"},
			wantStatus: RowValid,
		},
		{
			name:       "all blank is empty",
			row:        []string{"", "  ", "", "", ""},
			wantStatus: RowEmpty,
		},
		{
			name:       "missing required city",
			row:        []string{"Sunny flat", "1000", "", "Herzl", "sale"},
			wantStatus: RowInvalid,
			wantErrs:   []string{"city"},
		},
		{
			name:       "bad price and bad enum",
			row:        []string{"Sunny flat", "cheap", "Haifa", "", "lease"},
			wantStatus: RowInvalid,
			wantErrs:   []string{"price", "listing_type"},
		},
		{
			name:       "short row pads missing cells",
			row:        []string{"Sunny flat", "1000"},
			wantStatus: RowInvalid,
			wantErrs:   []string{"city", "listing_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := v.ClassifyRow(1, tt.row)
			if sr.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (errors: %v)", sr.Status, tt.wantStatus, sr.Errors)
			}
			for _, want := range tt.wantErrs {
				found := false
				for _, e := range sr.Errors {
					if strings.Contains(e, want) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("errors %v do not mention field %s", sr.Errors, want)
				}
			}
		})
	}
}

func TestClassifyRowNormalizes(t *testing.T) {
	v := NewRowValidator(listingType(), listingHeaders)

	sr := v.ClassifyRow(1, []string{"Flat", "₪1,000", "Haifa", "Herzl", "SALE"})
	if sr.Status != RowValid {
		t.Fatalf("status = %s, errors = %v", sr.Status, sr.Errors)
	}
	if got := sr.Normalized["price"]; got != float64(1000) {
		t.Errorf("price normalized to %v, want 1000", got)
	}
	if got := sr.Normalized["listing_type"]; got != "sale" {
		t.Errorf("listing_type normalized to %v, want sale", got)
	}
	if sr.DedupeKey == "" {
		t.Error("valid row should carry a dedupe key")
	}
}

func TestClassifyRowsSummaryScenario(t *testing.T) {
	// Three rows, row 2 missing required city: two valid, one invalid.
	v := NewRowValidator(listingType(), listingHeaders)
	rows := [][]string{
		{"Flat A", "1000", "Haifa", "Herzl", "sale"},
		{"Flat B", "2000", "", "Allenby", "rent"},
		{"Flat C", "3000", "Tel Aviv", "Dizengoff", "sale"},
	}

	staged, sum := MarkDuplicates(v.ClassifyRows(rows), nil)

	if sum.TotalRows != 3 || sum.ValidRows != 2 || sum.InvalidRows != 1 {
		t.Errorf("summary = %+v, want total 3 valid 2 invalid 1", sum)
	}
	if staged[1].Status != RowInvalid {
		t.Errorf("row 2 status = %s, want invalid", staged[1].Status)
	}
	if staged[1].RowNumber != 2 {
		t.Errorf("row numbering = %d, want 2", staged[1].RowNumber)
	}
}

func TestMarkDuplicates(t *testing.T) {
	v := NewRowValidator(listingType(), listingHeaders)

	t.Run("in-batch duplicate", func(t *testing.T) {
		rows := v.ClassifyRows([][]string{
			{"Same flat", "1000", "Haifa", "Herzl", "sale"},
			{"SAME   Flat", "2000", "haifa", "HERZL", "rent"},
		})
		staged, sum := MarkDuplicates(rows, nil)

		if staged[0].Status != RowValid {
			t.Errorf("first row status = %s, want valid", staged[0].Status)
		}
		if staged[1].Status != RowDuplicate {
			t.Errorf("second row status = %s, want duplicate", staged[1].Status)
		}
		if sum.ValidRows != 1 || sum.DuplicateRows != 1 {
			t.Errorf("summary = %+v", sum)
		}
	})

	t.Run("duplicate against canonical store", func(t *testing.T) {
		rows := v.ClassifyRows([][]string{
			{"Known flat", "1000", "Haifa", "Herzl", "sale"},
		})
		existing := map[string]bool{rows[0].DedupeKey: true}
		staged, sum := MarkDuplicates(rows, existing)

		if staged[0].Status != RowDuplicate {
			t.Errorf("status = %s, want duplicate", staged[0].Status)
		}
		if sum.DuplicateRows != 1 || sum.ValidRows != 0 {
			t.Errorf("summary = %+v", sum)
		}
	})

	t.Run("invalid wins over duplicate", func(t *testing.T) {
		rows := v.ClassifyRows([][]string{
			{"Twin flat", "1000", "Haifa", "Herzl", "sale"},
			{"Twin flat", "cheap", "Haifa", "Herzl", "sale"},
		})
		staged, sum := MarkDuplicates(rows, nil)

		if staged[1].Status != RowInvalid {
			t.Fatalf("status = %s, want invalid", staged[1].Status)
		}
		if !staged[1].AlsoDuplicate {
			t.Error("collision flag not set on invalid duplicate")
		}
		// Counted once under invalid, with the collision still tallied.
		if sum.InvalidRows != 1 || sum.ValidRows != 1 || sum.DuplicateRows != 1 {
			t.Errorf("summary = %+v", sum)
		}
	})

	t.Run("idempotent re-run with fresh canonical set", func(t *testing.T) {
		rows := v.ClassifyRows([][]string{
			{"Flat A", "1000", "Haifa", "Herzl", "sale"},
			{"Flat B", "2000", "Haifa", "Allenby", "rent"},
		})
		existing := map[string]bool{rows[1].DedupeKey: true}

		first, _ := MarkDuplicates(rows, existing)
		if first[1].Status != RowDuplicate {
			t.Fatalf("precondition: row 2 should be duplicate, got %s", first[1].Status)
		}

		// Re-run with the colliding entity gone; the mark must clear.
		second, sum := MarkDuplicates(first, nil)
		if second[1].Status != RowValid {
			t.Errorf("re-run status = %s, want valid", second[1].Status)
		}
		if sum.ValidRows != 2 || sum.DuplicateRows != 0 {
			t.Errorf("re-run summary = %+v", sum)
		}
	})

	t.Run("empty rows never collide", func(t *testing.T) {
		rows := v.ClassifyRows([][]string{
			{"", "", "", "", ""},
			{"", "", "", "", ""},
		})
		staged, sum := MarkDuplicates(rows, nil)

		for i, sr := range staged {
			if sr.Status != RowEmpty {
				t.Errorf("row %d status = %s, want empty", i+1, sr.Status)
			}
		}
		if sum.EmptyRows != 2 || sum.DuplicateRows != 0 {
			t.Errorf("summary = %+v", sum)
		}
	})
}

func TestCoerceImportCellImageSet(t *testing.T) {
	spec := schema.FieldSpec{Name: "images", Kind: schema.ImageSet}

	got, err := coerceImportCell(spec, "a.jpg | b.jpg ||c.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	urls, ok := got.([]any)
	if !ok {
		t.Fatalf("got %T, want []any", got)
	}
	want := []string{"a.jpg", "b.jpg", "c.jpg"}
	if len(urls) != len(want) {
		t.Fatalf("got %v, want %v", urls, want)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %v, want %s", i, urls[i], want[i])
		}
	}
}
