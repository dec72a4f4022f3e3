// Package core provides the business logic for the staged-mutation and
// moderation pipeline: bulk import preview/commit and pending-edit review.
// This package has no HTTP dependencies and can be driven by any frontend.
package core

import (
	"context"
	"time"

	"github.com/adboard/marketplace/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// RowStatus is the validation classification of one staged row.
type RowStatus string

const (
	RowValid     RowStatus = "valid"
	RowInvalid   RowStatus = "invalid"
	RowDuplicate RowStatus = "duplicate"
	RowEmpty     RowStatus = "empty"
)

// StagedRow is one classified row of an import batch.
//
// When a row is both structurally invalid and a duplicate, Status is
// RowInvalid and AlsoDuplicate is set; the row is counted once, under invalid.
type StagedRow struct {
	RowNumber     int               `json:"rowNumber"`
	Raw           map[string]string `json:"raw"`
	Normalized    map[string]any    `json:"normalized,omitempty"`
	Status        RowStatus         `json:"status"`
	AlsoDuplicate bool              `json:"alsoDuplicate,omitempty"`
	Errors        []string          `json:"errors,omitempty"`

	// DedupeKey is the composite identity key, empty for empty rows.
	DedupeKey string `json:"-"`
}

// BatchSummary holds the per-status counters for a staged batch.
// Empty rows are excluded from both valid and invalid counts.
type BatchSummary struct {
	TotalRows     int `json:"totalRows"`
	ValidRows     int `json:"validRows"`
	InvalidRows   int `json:"invalidRows"`
	DuplicateRows int `json:"duplicates"`
	EmptyRows     int `json:"emptyRows"`
}

// StagedBatch is an in-flight, not-yet-committed collection of imported rows.
// It is never visible through normal read paths; only CommitBatch materializes
// its valid rows into canonical entities.
type StagedBatch struct {
	ID         string       `json:"id"`
	EntityType string       `json:"entityType"`
	FileName   string       `json:"fileName"`
	CreatedBy  string       `json:"createdBy"`
	CreatedAt  time.Time    `json:"createdAt"`
	Rows       []StagedRow  `json:"rows"`
	Summary    BatchSummary `json:"summary"`

	// Committed guards against re-committing the same batch.
	Committed bool `json:"committed"`
}

// EditStatus is the lifecycle state of a pending edit.
// Pending transitions exactly once to Approved or Rejected; both are terminal.
type EditStatus string

const (
	EditPending  EditStatus = "pending"
	EditApproved EditStatus = "approved"
	EditRejected EditStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s EditStatus) Terminal() bool {
	return s == EditApproved || s == EditRejected
}

// FieldDelta is one computed difference between a canonical entity and a
// proposed version. Path is dot-addressed for nested attribute keys
// ("attributes.parking") and reserved as "images" for the image set.
type FieldDelta struct {
	Path string            `json:"path"`
	Kind schema.ChangeKind `json:"kind"`
	Old  any               `json:"old"`
	New  any               `json:"new"`
}

// PendingEdit is a proposed change to one live entity, awaiting a moderator
// decision. The delta list is computed once at submission time; approval
// applies the originally-proposed absolute values even if the canonical
// entity drifted in the meantime (last-writer-wins on the submitted fields).
type PendingEdit struct {
	ID            uuid.UUID      `json:"id"`
	EntityType    string         `json:"entityType"`
	EntityID      uuid.UUID      `json:"entityId"`
	Proposed      map[string]any `json:"proposed"`
	Deltas        []FieldDelta   `json:"deltas"`
	Status        EditStatus     `json:"status"`
	RequestedBy   string         `json:"requestedBy"`
	RequestedAt   time.Time      `json:"requestedAt"`
	ReviewedBy    string         `json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewedAt,omitempty"`
	AdminNotes    string         `json:"adminNotes,omitempty"`
	FailureReason string         `json:"failureReason,omitempty"`
}

// Entity is a canonical, publicly-visible record. Fields is the full typed
// field document; the pipeline reads it for diffing and writes it only through
// the commit applier.
type Entity struct {
	ID                uuid.UUID      `json:"id"`
	Type              string         `json:"entityType"`
	Fields            map[string]any `json:"fields"`
	HasPendingChanges bool           `json:"hasPendingChanges"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// ImportLog is the durable summary of a committed batch, retained after the
// batch itself is discarded.
type ImportLog struct {
	ID          uuid.UUID `json:"id"`
	EntityType  string    `json:"entityType"`
	FileName    string    `json:"fileName"`
	TotalRows   int       `json:"totalRows"`
	SuccessRows int       `json:"successRows"`
	FailedRows  int       `json:"failedRows"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CommitOptions controls how a staged batch is materialized.
type CommitOptions struct {
	// DeleteExisting wipes the canonical set of the entity type before
	// inserting. Destructive; Confirm must carry the entity type key,
	// typed out by the caller, before it is honored.
	DeleteExisting bool   `json:"deleteExisting"`
	Confirm        string `json:"confirm,omitempty"`

	// MergeMode silently skips rows whose dedupe key now exists in the
	// canonical store instead of failing them.
	MergeMode bool `json:"mergeMode"`
}

// CommitResult reports the outcome of a batch commit.
type CommitResult struct {
	BatchID     string `json:"batchId"`
	SuccessRows int    `json:"successRows"`
	FailedRows  int    `json:"failedRows"`
	SkippedRows int    `json:"skippedRows"`
}

// PendingEntity pairs an entity flagged hasPendingChanges with its pending
// edit, for side-by-side diff rendering by the caller.
type PendingEntity struct {
	Entity Entity      `json:"entity"`
	Edit   PendingEdit `json:"edit"`
}
