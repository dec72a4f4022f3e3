package core

// validator.go provides row-level classification for import batches.
//
// Each raw row is classified into exactly one of Valid, Invalid, Duplicate,
// or Empty, with every failing field reported by name. Classification is
// purely functional: the same input always yields the same result, and no
// canonical data is touched (duplicate checks against the canonical store go
// through a lookup callback supplied by the caller).
//
// Precedence when a row is both structurally invalid and a duplicate:
// Invalid wins as the primary status, and the row carries the AlsoDuplicate
// flag so the collision stays visible in the preview.

import (
	"fmt"
	"strings"

	"github.com/adboard/marketplace/internal/schema"
)

// HeaderIndex maps lowercased column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(schema.CleanCell(h))] = i
	}
	return idx
}

// RowValidator classifies raw rows against an entity type's field schema.
type RowValidator struct {
	et      schema.EntityType
	headers []string
	idx     HeaderIndex
}

// NewRowValidator creates a validator for the given entity type and file headers.
func NewRowValidator(et schema.EntityType, headers []string) *RowValidator {
	return &RowValidator{
		et:      et,
		headers: headers,
		idx:     MakeHeaderIndex(headers),
	}
}

// ValidateHeaders ensures every required field has a column in the file.
func (v *RowValidator) ValidateHeaders() error {
	var missing []string
	for _, name := range v.et.RequiredFields() {
		if _, ok := v.idx[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ClassifyRow classifies a single raw row. Duplicate detection against
// earlier rows and the canonical store happens in ClassifyRows; this method
// handles everything else.
func (v *RowValidator) ClassifyRow(rowNumber int, row []string) StagedRow {
	sr := StagedRow{
		RowNumber:  rowNumber,
		Raw:        make(map[string]string, len(v.headers)),
		Normalized: make(map[string]any),
	}

	allBlank := true
	for i, h := range v.headers {
		var cell string
		if i < len(row) {
			cell = schema.CleanCell(row[i])
		}
		sr.Raw[strings.ToLower(schema.CleanCell(h))] = cell
		if cell != "" {
			allBlank = false
		}
	}

	if allBlank {
		sr.Status = RowEmpty
		sr.Normalized = nil
		return sr
	}

	for _, spec := range v.et.Fields {
		pos, present := v.idx[strings.ToLower(spec.Name)]

		var raw string
		if present && pos < len(row) {
			raw = schema.CleanCell(row[pos])
		}

		if raw == "" {
			if spec.Required && !spec.AllowEmpty {
				sr.Errors = append(sr.Errors, fmt.Sprintf("%s: required field is empty", spec.Name))
			}
			continue
		}

		val, err := coerceImportCell(spec, raw)
		if err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("%s: %v", spec.Name, err))
			continue
		}
		sr.Normalized[spec.Name] = val
	}

	sr.DedupeKey = v.et.DedupeKey(sr.Normalized)

	if len(sr.Errors) > 0 {
		sr.Status = RowInvalid
	} else {
		sr.Status = RowValid
	}
	return sr
}

// ClassifyRows runs structural classification over every row of a batch.
// Duplicate marking is a separate pass (MarkDuplicates) so commit-time
// re-validation can re-run it against the canonical state of that moment.
func (v *RowValidator) ClassifyRows(rows [][]string) []StagedRow {
	out := make([]StagedRow, 0, len(rows))
	for i, row := range rows {
		out = append(out, v.ClassifyRow(i+1, row))
	}
	return out
}

// MarkDuplicates marks rows whose dedupe key collides with an earlier row in
// the same batch or with an existing canonical entity, and recomputes the
// batch summary. The pass is idempotent: earlier duplicate marks are cleared
// first, so it can be re-run at commit time with a fresh canonical key set.
func MarkDuplicates(rows []StagedRow, existing map[string]bool) ([]StagedRow, BatchSummary) {
	seen := make(map[string]bool, len(rows))
	out := make([]StagedRow, len(rows))
	var sum BatchSummary

	for i, sr := range rows {
		// Reset prior marks; a duplicate row is structurally valid.
		if sr.Status == RowDuplicate {
			sr.Status = RowValid
		}
		sr.AlsoDuplicate = false

		if sr.Status != RowEmpty && sr.DedupeKey != "" {
			dup := seen[sr.DedupeKey] || existing[sr.DedupeKey]
			seen[sr.DedupeKey] = true

			if dup {
				if sr.Status == RowInvalid {
					sr.AlsoDuplicate = true
				} else {
					sr.Status = RowDuplicate
				}
			}
		}

		sum.TotalRows++
		switch sr.Status {
		case RowValid:
			sum.ValidRows++
		case RowInvalid:
			sum.InvalidRows++
		case RowDuplicate:
			sum.DuplicateRows++
		case RowEmpty:
			sum.EmptyRows++
		}
		if sr.AlsoDuplicate {
			sum.DuplicateRows++
		}

		out[i] = sr
	}

	return out, sum
}

// coerceImportCell converts one import cell into its typed value. Image-set
// fields arrive as a pipe-separated URL list in bulk files; everything else
// goes through the schema coercion rules.
func coerceImportCell(spec schema.FieldSpec, raw string) (any, error) {
	if spec.Kind == schema.ImageSet {
		parts := strings.Split(raw, "|")
		urls := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				urls = append(urls, p)
			}
		}
		return urls, nil
	}
	return schema.Coerce(spec, raw)
}
