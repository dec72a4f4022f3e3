package core

// entity.go is the pipeline's view of the canonical store. The pipeline reads
// entities for diffing and duplicate checks, and writes them only through the
// commit paths: create for imports, merge-patch for approved edits.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adboard/marketplace/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetEntity loads a canonical entity by type and ID.
func (s *Service) GetEntity(ctx context.Context, entityType string, id uuid.UUID) (*Entity, error) {
	return getEntity(ctx, s.pool, entityType, id)
}

func getEntity(ctx context.Context, db DBTX, entityType string, id uuid.UUID) (*Entity, error) {
	row := db.QueryRow(ctx, `
		SELECT id, entity_type, fields, has_pending_changes, created_at, updated_at
		FROM entities
		WHERE entity_type = $1 AND id = $2`, entityType, id)
	return scanEntity(row)
}

// lockEntity loads an entity inside a transaction with a row lock, so the
// apply step sees a stable row until commit.
func lockEntity(ctx context.Context, tx DBTX, entityType string, id uuid.UUID) (*Entity, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, entity_type, fields, has_pending_changes, created_at, updated_at
		FROM entities
		WHERE entity_type = $1 AND id = $2
		FOR UPDATE`, entityType, id)
	return scanEntity(row)
}

func scanEntity(row pgx.Row) (*Entity, error) {
	var e Entity
	var fieldsJSON []byte
	err := row.Scan(&e.ID, &e.Type, &fieldsJSON, &e.HasPendingChanges, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
		return nil, fmt.Errorf("entity fields: %w", err)
	}
	return &e, nil
}

// existingDedupeKeys returns which of the given keys already exist in the
// canonical store for the entity type. Used by preview and by commit-time
// re-validation.
func existingDedupeKeys(ctx context.Context, db DBTX, entityType string, keys []string) (map[string]bool, error) {
	out := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := db.Query(ctx, `
		SELECT dedupe_key FROM entities
		WHERE entity_type = $1 AND dedupe_key = ANY($2)`, entityType, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out[k] = true
	}
	return out, rows.Err()
}

// insertEntity creates one canonical entity from a normalized row.
func insertEntity(ctx context.Context, tx DBTX, entityType string, fields map[string]any, dedupeKey string) (uuid.UUID, error) {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal fields: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO entities (entity_type, fields, dedupe_key)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id`, entityType, fieldsJSON, dedupeKey).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// updateEntityFields replaces an entity's field document and refreshes its
// dedupe key and pending flag. Runs inside the approval transaction.
func updateEntityFields(ctx context.Context, tx DBTX, et schema.EntityType, id uuid.UUID, fields map[string]any, hasPending bool) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE entities
		SET fields = $1, dedupe_key = NULLIF($2, ''), has_pending_changes = $3, updated_at = now()
		WHERE entity_type = $4 AND id = $5`,
		fieldsJSON, et.DedupeKey(fields), hasPending, et.Key, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// setPendingFlag flips the hasPendingChanges marker outside an apply.
func setPendingFlag(ctx context.Context, db DBTX, entityType string, id uuid.UUID, pending bool) error {
	_, err := db.Exec(ctx, `
		UPDATE entities SET has_pending_changes = $1, updated_at = now()
		WHERE entity_type = $2 AND id = $3`, pending, entityType, id)
	return err
}

// wipeEntities deletes every canonical entity of a type. Only reachable from
// a confirmed DeleteExisting commit.
func wipeEntities(ctx context.Context, tx DBTX, entityType string) (int64, error) {
	tag, err := tx.Exec(ctx, `DELETE FROM entities WHERE entity_type = $1`, entityType)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListImportLogs returns the durable commit summaries for an entity type,
// newest first.
func (s *Service) ListImportLogs(ctx context.Context, entityType string, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, entity_type, file_name, total_rows, success_rows, failed_rows, created_by, created_at
		FROM import_logs
		WHERE entity_type = $1
		ORDER BY created_at DESC
		LIMIT $2`, entityType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]ImportLog, 0)
	for rows.Next() {
		var l ImportLog
		if err := rows.Scan(&l.ID, &l.EntityType, &l.FileName, &l.TotalRows,
			&l.SuccessRows, &l.FailedRows, &l.CreatedBy, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
