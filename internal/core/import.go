package core

// import.go implements the bulk-import half of the pipeline: preview stages a
// fully-classified batch without touching canonical data, and commit
// materializes the batch's valid rows in one transaction.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adboard/marketplace/internal/schema"
	"github.com/google/uuid"
)

// DefaultPreviewSample caps the number of rows echoed back in a preview
// response. Counters always reflect every row.
const DefaultPreviewSample = 50

// PreviewResult is the response of an import preview.
type PreviewResult struct {
	BatchID  string       `json:"batchId"`
	FileName string       `json:"fileName"`
	Summary  BatchSummary `json:"summary"`
	Warnings []string     `json:"warnings,omitempty"`
	Preview  []StagedRow  `json:"preview"`
}

// PreviewImport parses and classifies an import file and stages the batch for
// a later commit. Canonical data is only read (for duplicate detection),
// never written.
func (s *Service) PreviewImport(ctx context.Context, entityType, fileName string, data []byte) (*PreviewResult, error) {
	et, ok := schema.Get(entityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}

	// File parsing is the CPU-bound step; it runs under the bounded limiter.
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	parsed, err := ParseImportFile(fileName, data, s.rowCap)
	if err != nil {
		return nil, err
	}

	validator := NewRowValidator(et, parsed.Headers)
	if err := validator.ValidateHeaders(); err != nil {
		return nil, err
	}

	rows := validator.ClassifyRows(parsed.Rows)

	existing, err := existingDedupeKeys(ctx, s.pool, et.Key, collectDedupeKeys(rows))
	if err != nil {
		return nil, err
	}
	rows, summary := MarkDuplicates(rows, existing)

	batch := &StagedBatch{
		ID:         uuid.NewString(),
		EntityType: et.Key,
		FileName:   fileName,
		CreatedBy:  ActorFromContext(ctx),
		CreatedAt:  time.Now(),
		Rows:       rows,
		Summary:    summary,
	}
	s.batches.Put(batch)

	slog.Info("import previewed",
		"batch_id", batch.ID,
		"entity_type", et.Key,
		"file", fileName,
		"total", summary.TotalRows,
		"valid", summary.ValidRows,
		"invalid", summary.InvalidRows,
		"duplicates", summary.DuplicateRows,
	)

	return &PreviewResult{
		BatchID:  batch.ID,
		FileName: fileName,
		Summary:  summary,
		Warnings: unknownColumnWarnings(et, parsed.Headers),
		Preview:  sampleRows(rows, s.previewSampleSize()),
	}, nil
}

// CommitBatch materializes a staged batch. Rows are re-validated against the
// canonical state of this moment; all eligible rows insert in one transaction
// together with the ImportLog and the audit entry, or nothing does.
func (s *Service) CommitBatch(ctx context.Context, batchID string, opts CommitOptions) (*CommitResult, error) {
	if err := s.requireReviewer(ctx); err != nil {
		return nil, err
	}

	batch, err := s.batches.BeginCommit(batchID)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			s.batches.ReleaseCommit(batchID)
		}
	}()

	if opts.DeleteExisting && opts.Confirm != batch.EntityType {
		return nil, ErrNotConfirmed
	}

	et, ok := schema.Get(batch.EntityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type: %s", batch.EntityType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var wiped int64
	if opts.DeleteExisting {
		if wiped, err = wipeEntities(ctx, tx, et.Key); err != nil {
			return nil, err
		}
	}

	// Re-validate against the canonical state inside the transaction. After
	// a wipe there is nothing left to collide with.
	existing := map[string]bool{}
	if !opts.DeleteExisting {
		existing, err = existingDedupeKeys(ctx, tx, et.Key, collectDedupeKeys(batch.Rows))
		if err != nil {
			return nil, err
		}
	}
	previewStatus := rowStatuses(batch.Rows)
	rows, _ := MarkDuplicates(batch.Rows, existing)

	result := &CommitResult{BatchID: batch.ID}
	for i, row := range rows {
		switch row.Status {
		case RowValid:
			if _, err := insertEntity(ctx, tx, et.Key, row.Normalized, row.DedupeKey); err != nil {
				return nil, fmt.Errorf("row %d: %w", row.RowNumber, err)
			}
			result.SuccessRows++
		case RowDuplicate:
			if previewStatus[i] == RowValid && existing[row.DedupeKey] {
				// The row was unique at preview time and collided with
				// canonical data since.
				if !opts.MergeMode {
					return nil, fmt.Errorf("row %d: duplicate key appeared after preview: %w", row.RowNumber, ErrConflict)
				}
				result.SkippedRows++
			} else {
				result.FailedRows++
			}
		case RowInvalid:
			result.FailedRows++
		}
	}

	if err := insertImportLog(ctx, tx, ImportLog{
		EntityType:  et.Key,
		FileName:    batch.FileName,
		TotalRows:   batch.Summary.TotalRows,
		SuccessRows: result.SuccessRows,
		FailedRows:  result.FailedRows,
		CreatedBy:   ActorFromContext(ctx),
	}); err != nil {
		return nil, err
	}

	if opts.DeleteExisting {
		if err := s.audit.Record(ctx, tx, AuditEntry{
			Action:       ActionEntityWipe,
			EntityType:   et.Key,
			RowsAffected: int(wiped),
			Reason:       fmt.Sprintf("replaced by import of %s", batch.FileName),
		}); err != nil {
			return nil, err
		}
	}
	if err := s.audit.Record(ctx, tx, AuditEntry{
		Action:       ActionImportCommit,
		EntityType:   et.Key,
		TargetID:     batch.ID,
		RowsAffected: result.SuccessRows,
		Reason:       fmt.Sprintf("committed %s: %d inserted, %d failed, %d skipped", batch.FileName, result.SuccessRows, result.FailedRows, result.SkippedRows),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true

	slog.Info("batch committed",
		"batch_id", batch.ID,
		"entity_type", et.Key,
		"inserted", result.SuccessRows,
		"failed", result.FailedRows,
		"skipped", result.SkippedRows,
	)

	return result, nil
}

// GetBatch returns a staged batch for display. Staged data stays invisible to
// canonical read paths; this accessor serves the preview screens only.
func (s *Service) GetBatch(batchID string) (*StagedBatch, error) {
	return s.batches.Get(batchID)
}

// DiscardBatch drops an uncommitted batch.
func (s *Service) DiscardBatch(batchID string) {
	s.batches.Discard(batchID)
}

func insertImportLog(ctx context.Context, tx DBTX, l ImportLog) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO import_logs (entity_type, file_name, total_rows, success_rows, failed_rows, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.EntityType, l.FileName, l.TotalRows, l.SuccessRows, l.FailedRows, l.CreatedBy)
	return err
}

func (s *Service) previewSampleSize() int {
	if s.previewSample > 0 {
		return s.previewSample
	}
	return DefaultPreviewSample
}

func collectDedupeKeys(rows []StagedRow) []string {
	keys := make([]string, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.DedupeKey != "" && !seen[r.DedupeKey] {
			seen[r.DedupeKey] = true
			keys = append(keys, r.DedupeKey)
		}
	}
	return keys
}

func rowStatuses(rows []StagedRow) []RowStatus {
	out := make([]RowStatus, len(rows))
	for i, r := range rows {
		out[i] = r.Status
	}
	return out
}

func sampleRows(rows []StagedRow, n int) []StagedRow {
	if len(rows) <= n {
		return rows
	}
	return rows[:n]
}

// unknownColumnWarnings reports file columns that no schema field claims.
// They are ignored rather than imported, and the preview says so.
func unknownColumnWarnings(et schema.EntityType, headers []string) []string {
	var warnings []string
	for _, h := range headers {
		name := schema.CleanCell(h)
		if name == "" {
			continue
		}
		if _, ok := et.Field(name); !ok {
			warnings = append(warnings, fmt.Sprintf("column %q is not a %s field and will be ignored", name, et.Key))
		}
	}
	return warnings
}
