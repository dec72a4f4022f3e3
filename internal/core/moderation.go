package core

// moderation.go is the moderation gateway: the only code path that creates
// pending edits and transitions them to a terminal state.
//
// The one-pending-edit-per-entity invariant is enforced by a partial unique
// index on pending_edits (entity_type, entity_id) WHERE status = 'pending',
// not by an application-level check, so two concurrent submits race safely:
// exactly one wins, the other gets ErrConflict.
//
// Approval applies the deltas cached at submission time. If the canonical
// entity drifted before review, the originally-proposed absolute values still
// win on the submitted fields; reviewers see this documented on the API.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adboard/marketplace/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// SubmitEdit validates a proposed field payload, computes its delta against
// the canonical entity, and stages it as a pending edit. Fails with
// ErrConflict when a pending edit already exists for the entity.
func (s *Service) SubmitEdit(ctx context.Context, entityType string, entityID uuid.UUID, proposed map[string]any) (*PendingEdit, error) {
	actor := ActorFromContext(ctx)
	if actor == "" {
		return nil, ErrUnauthorized
	}

	et, ok := schema.Get(entityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}
	if err := et.ValidateProposed(proposed); err != nil {
		return nil, err
	}
	if err := validateProposedValues(et, proposed); err != nil {
		return nil, err
	}

	entity, err := getEntity(ctx, s.pool, et.Key, entityID)
	if err != nil {
		return nil, err
	}

	deltas := ComputeDelta(et, entity.Fields, proposed)
	if len(deltas) == 0 {
		return nil, fmt.Errorf("proposed no changes to %s %s", et.Key, entityID)
	}

	edit := &PendingEdit{
		ID:          uuid.New(),
		EntityType:  et.Key,
		EntityID:    entityID,
		Proposed:    proposed,
		Deltas:      deltas,
		Status:      EditPending,
		RequestedBy: actor,
		RequestedAt: time.Now(),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := insertEdit(ctx, tx, edit); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrConflict
		}
		return nil, err
	}
	if err := setPendingFlag(ctx, tx, et.Key, entityID, true); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, tx, AuditEntry{
		Action:       ActionEditSubmit,
		EntityType:   et.Key,
		TargetID:     entityID.String(),
		RowsAffected: len(deltas),
		Meta:         map[string]any{"edit_id": edit.ID.String()},
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	slog.Info("edit submitted",
		"edit_id", edit.ID,
		"entity_type", et.Key,
		"entity_id", entityID,
		"deltas", len(deltas),
		"requested_by", actor,
	)
	return edit, nil
}

// Approve applies a pending edit's deltas to the canonical entity and marks
// the edit approved, all in one transaction. Calling it on an already
// terminal edit returns the stored edit without re-executing any write.
// On apply failure the entity is untouched and the edit stays Pending with
// the failure reason recorded.
func (s *Service) Approve(ctx context.Context, editID uuid.UUID, notes string) (*PendingEdit, error) {
	if err := s.requireReviewer(ctx); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	edit, err := lockEdit(ctx, tx, editID)
	if err != nil {
		return nil, err
	}
	if edit.Status.Terminal() {
		return edit, nil
	}

	et, ok := schema.Get(edit.EntityType)
	if !ok {
		return nil, fmt.Errorf("unknown entity type: %s", edit.EntityType)
	}

	entity, applyErr := lockEntity(ctx, tx, edit.EntityType, edit.EntityID)
	var newFields map[string]any
	if applyErr == nil {
		newFields, applyErr = ApplyDeltas(entity.Fields, edit.Deltas)
	}
	if applyErr == nil {
		applyErr = updateEntityFields(ctx, tx, et, edit.EntityID, newFields, false)
	}
	if applyErr != nil {
		// Abort the whole apply; the entity keeps its previous state and the
		// edit stays Pending with the diagnostic attached.
		tx.Rollback(ctx)
		reason := applyErr.Error()
		if err := recordApplyFailure(ctx, s.pool, editID, reason); err != nil {
			slog.Error("recording apply failure", "edit_id", editID, "error", err)
		}
		return nil, &ApplyFailure{EditID: editID.String(), Reason: reason, Err: applyErr}
	}

	now := time.Now()
	if err := finalizeEdit(ctx, tx, editID, EditApproved, ActorFromContext(ctx), now, notes); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, tx, AuditEntry{
		Action:       ActionEditApprove,
		EntityType:   edit.EntityType,
		TargetID:     edit.EntityID.String(),
		RowsAffected: len(edit.Deltas),
		Reason:       notes,
		Meta:         map[string]any{"edit_id": editID.String()},
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	edit.Status = EditApproved
	edit.ReviewedBy = ActorFromContext(ctx)
	edit.ReviewedAt = &now
	edit.AdminNotes = notes

	slog.Info("edit approved",
		"edit_id", editID,
		"entity_type", edit.EntityType,
		"entity_id", edit.EntityID,
		"reviewed_by", edit.ReviewedBy,
	)
	return edit, nil
}

// Reject marks a pending edit rejected without touching the canonical entity.
// A reason is mandatory when the edit removes data; terminal edits are
// returned unchanged.
func (s *Service) Reject(ctx context.Context, editID uuid.UUID, reason string) (*PendingEdit, error) {
	if err := s.requireReviewer(ctx); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	edit, err := lockEdit(ctx, tx, editID)
	if err != nil {
		return nil, err
	}
	if edit.Status.Terminal() {
		return edit, nil
	}
	if reason == "" && ReasonRequired(edit.Deltas) {
		return nil, ErrReasonRequired
	}

	now := time.Now()
	if err := finalizeEdit(ctx, tx, editID, EditRejected, ActorFromContext(ctx), now, reason); err != nil {
		return nil, err
	}
	if err := setPendingFlag(ctx, tx, edit.EntityType, edit.EntityID, false); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, tx, AuditEntry{
		Action:     ActionEditReject,
		EntityType: edit.EntityType,
		TargetID:   edit.EntityID.String(),
		Reason:     reason,
		Meta:       map[string]any{"edit_id": editID.String()},
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	edit.Status = EditRejected
	edit.ReviewedBy = ActorFromContext(ctx)
	edit.ReviewedAt = &now
	edit.AdminNotes = reason

	slog.Info("edit rejected",
		"edit_id", editID,
		"entity_type", edit.EntityType,
		"entity_id", edit.EntityID,
		"reviewed_by", edit.ReviewedBy,
	)
	return edit, nil
}

// GetEdit loads one pending edit by ID.
func (s *Service) GetEdit(ctx context.Context, editID uuid.UUID) (*PendingEdit, error) {
	return scanEditRow(s.pool.QueryRow(ctx, editSelect+` WHERE id = $1`, editID))
}

// ListPending returns every entity flagged with pending changes, paired with
// its pending edit for side-by-side diff rendering. entityType filters the
// list when non-empty.
func (s *Service) ListPending(ctx context.Context, entityType string) ([]PendingEntity, error) {
	query := `
		SELECT e.id, e.entity_type, e.fields, e.has_pending_changes, e.created_at, e.updated_at,
			p.id, p.entity_type, p.entity_id, p.proposed, p.deltas, p.status,
			p.requested_by, p.requested_at,
			COALESCE(p.reviewed_by, ''), p.reviewed_at,
			COALESCE(p.admin_notes, ''), COALESCE(p.failure_reason, '')
		FROM entities e
		JOIN pending_edits p ON p.entity_type = e.entity_type AND p.entity_id = e.id
		WHERE e.has_pending_changes AND p.status = 'pending'`
	args := []any{}
	if entityType != "" {
		query += ` AND e.entity_type = $1`
		args = append(args, entityType)
	}
	query += ` ORDER BY p.requested_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PendingEntity, 0)
	for rows.Next() {
		var pe PendingEntity
		var entityFields, proposedJSON, deltasJSON []byte
		err := rows.Scan(
			&pe.Entity.ID, &pe.Entity.Type, &entityFields, &pe.Entity.HasPendingChanges,
			&pe.Entity.CreatedAt, &pe.Entity.UpdatedAt,
			&pe.Edit.ID, &pe.Edit.EntityType, &pe.Edit.EntityID, &proposedJSON, &deltasJSON,
			&pe.Edit.Status, &pe.Edit.RequestedBy, &pe.Edit.RequestedAt,
			&pe.Edit.ReviewedBy, &pe.Edit.ReviewedAt, &pe.Edit.AdminNotes, &pe.Edit.FailureReason,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(entityFields, &pe.Entity.Fields); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(proposedJSON, &pe.Edit.Proposed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(deltasJSON, &pe.Edit.Deltas); err != nil {
			return nil, err
		}
		out = append(out, pe)
	}
	return out, rows.Err()
}

// ReasonRequired reports whether rejecting an edit mandates a reason.
// Policy: edits that remove data (any delta clearing a value) must carry one.
func ReasonRequired(deltas []FieldDelta) bool {
	for _, d := range deltas {
		if d.New == nil && d.Old != nil {
			return true
		}
	}
	return false
}

// validateProposedValues type-checks a proposed payload against the schema.
// Payloads arrive as decoded JSON; each field must carry the shape its spec
// declares.
func validateProposedValues(et schema.EntityType, proposed map[string]any) error {
	for name, v := range proposed {
		spec, _ := et.Field(name)
		if v == nil {
			if spec.Required {
				return fmt.Errorf("%s: required field cannot be cleared", name)
			}
			continue
		}

		switch spec.Kind {
		case schema.NestedMap, schema.FeatureMap:
			m, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%s: expected an object", name)
			}
			if spec.Kind == schema.FeatureMap {
				for k, fv := range m {
					if _, ok := fv.(bool); !ok {
						return fmt.Errorf("%s.%s: expected a boolean toggle", name, k)
					}
				}
			}
			continue
		case schema.ImageSet:
			list, ok := v.([]any)
			if !ok {
				return fmt.Errorf("%s: expected an array of image URLs", name)
			}
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("%s: expected an array of image URLs", name)
				}
			}
			continue
		}

		switch spec.Type {
		case schema.FieldNumeric:
			if _, ok := toFloat(v); !ok {
				return fmt.Errorf("%s: expected a number", name)
			}
		case schema.FieldBool:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("%s: expected a boolean", name)
			}
		case schema.FieldDate:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("%s: expected a date string", name)
			}
			if _, ok := schema.ParseDate(s); !ok {
				return fmt.Errorf("%s: invalid date format", name)
			}
		case schema.FieldEnum:
			s, ok := v.(string)
			if !ok || !enumContains(spec.EnumValues, s) {
				return fmt.Errorf("%s: value must be one of %v", name, spec.EnumValues)
			}
		default:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%s: expected a string", name)
			}
		}
	}
	return nil
}

func enumContains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

const editSelect = `
	SELECT id, entity_type, entity_id, proposed, deltas, status,
		requested_by, requested_at,
		COALESCE(reviewed_by, ''), reviewed_at,
		COALESCE(admin_notes, ''), COALESCE(failure_reason, '')
	FROM pending_edits`

func insertEdit(ctx context.Context, tx DBTX, e *PendingEdit) error {
	proposedJSON, err := json.Marshal(e.Proposed)
	if err != nil {
		return err
	}
	deltasJSON, err := json.Marshal(e.Deltas)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO pending_edits (id, entity_type, entity_id, proposed, deltas, status, requested_by, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.EntityType, e.EntityID, proposedJSON, deltasJSON, string(e.Status), e.RequestedBy, e.RequestedAt)
	return err
}

func lockEdit(ctx context.Context, tx DBTX, id uuid.UUID) (*PendingEdit, error) {
	return scanEditRow(tx.QueryRow(ctx, editSelect+` WHERE id = $1 FOR UPDATE`, id))
}

func scanEditRow(row pgx.Row) (*PendingEdit, error) {
	var e PendingEdit
	var proposedJSON, deltasJSON []byte
	err := row.Scan(&e.ID, &e.EntityType, &e.EntityID, &proposedJSON, &deltasJSON,
		&e.Status, &e.RequestedBy, &e.RequestedAt,
		&e.ReviewedBy, &e.ReviewedAt, &e.AdminNotes, &e.FailureReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(proposedJSON, &e.Proposed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(deltasJSON, &e.Deltas); err != nil {
		return nil, err
	}
	return &e, nil
}

func finalizeEdit(ctx context.Context, tx DBTX, id uuid.UUID, status EditStatus, reviewer string, at time.Time, notes string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE pending_edits
		SET status = $1, reviewed_by = $2, reviewed_at = $3, admin_notes = NULLIF($4, '')
		WHERE id = $5 AND status = 'pending'`,
		string(status), reviewer, at, notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func recordApplyFailure(ctx context.Context, db DBTX, id uuid.UUID, reason string) error {
	_, err := db.Exec(ctx, `
		UPDATE pending_edits SET failure_reason = $1
		WHERE id = $2 AND status = 'pending'`, reason, id)
	return err
}
