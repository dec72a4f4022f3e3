package core

// audit.go is the append-only audit recorder. Every mutating pipeline
// operation writes exactly one entry before reporting success; the write
// joins the operation's transaction, so a mutation without its audit entry
// cannot exist.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the kind of mutating operation.
type AuditAction string

const (
	ActionImportCommit AuditAction = "import.commit"
	ActionEntityWipe   AuditAction = "entity.wipe"
	ActionEditSubmit   AuditAction = "edit.submit"
	ActionEditApprove  AuditAction = "edit.approve"
	ActionEditReject   AuditAction = "edit.reject"
)

// AuditSeverity grades how consequential an action is.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry is one row of the append-only audit log.
type AuditEntry struct {
	ID           uuid.UUID      `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	Actor        string         `json:"actor"`
	EntityType   string         `json:"entityType"`
	TargetID     string         `json:"targetId,omitempty"`
	RowsAffected int            `json:"rowsAffected"`
	Reason       string         `json:"reason,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// AuditRecorder writes and queries the audit log.
type AuditRecorder struct {
	db DBTX
}

// NewAuditRecorder creates a recorder over the given pool.
func NewAuditRecorder(db DBTX) *AuditRecorder {
	return &AuditRecorder{db: db}
}

// Record appends one entry. When tx is non-nil the insert joins that
// transaction; otherwise it runs on the recorder's pool. An insert failure
// fails the calling operation: audit writes are never best-effort.
func (a *AuditRecorder) Record(ctx context.Context, tx DBTX, entry AuditEntry) error {
	db := a.db
	if tx != nil {
		db = tx
	}

	if entry.Severity == "" {
		entry.Severity = severityFor(entry.Action)
	}
	if entry.Actor == "" {
		entry.Actor = ActorFromContext(ctx)
	}
	if entry.IPAddress == "" {
		entry.IPAddress = IPFromContext(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = UserAgentFromContext(ctx)
	}

	var metaJSON []byte
	if entry.Meta != nil {
		var err error
		if metaJSON, err = json.Marshal(entry.Meta); err != nil {
			return fmt.Errorf("audit meta: %w", err)
		}
	}

	_, err := db.Exec(ctx, `
		INSERT INTO audit_log (action, severity, actor, entity_type, target_id,
			rows_affected, reason, meta, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''))`,
		string(entry.Action), string(entry.Severity), entry.Actor, entry.EntityType,
		entry.TargetID, entry.RowsAffected, entry.Reason, metaJSON,
		entry.IPAddress, entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("audit insert: %w", err)
	}
	return nil
}

// AuditQuery filters an audit log listing.
type AuditQuery struct {
	EntityType string
	Action     AuditAction
	Actor      string
	Limit      int
	Offset     int
}

// DefaultAuditLimit bounds unpaged audit listings.
const DefaultAuditLimit = 100

// List returns audit entries, newest first.
func (a *AuditRecorder) List(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultAuditLimit
	}

	where := []string{"TRUE"}
	args := []any{}
	if q.EntityType != "" {
		args = append(args, q.EntityType)
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if q.Action != "" {
		args = append(args, string(q.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if q.Actor != "" {
		args = append(args, q.Actor)
		where = append(where, fmt.Sprintf("actor = $%d", len(args)))
	}
	args = append(args, q.Limit, q.Offset)

	query := fmt.Sprintf(`
		SELECT id, action, severity, actor, entity_type,
			COALESCE(target_id, ''), rows_affected, COALESCE(reason, ''),
			meta, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_log
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0)
	for rows.Next() {
		var e AuditEntry
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.Severity, &e.Actor, &e.EntityType,
			&e.TargetID, &e.RowsAffected, &e.Reason, &metaJSON,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExportCSV renders audit entries as CSV for offline review.
func (a *AuditRecorder) ExportCSV(ctx context.Context, q AuditQuery) (string, error) {
	entries, err := a.List(ctx, q)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("ID,Timestamp,Action,Severity,Actor,Entity Type,Target,Rows,Reason\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%d,%s\n",
			e.ID,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			csvEscapeField(string(e.Action)),
			csvEscapeField(string(e.Severity)),
			csvEscapeField(e.Actor),
			csvEscapeField(e.EntityType),
			csvEscapeField(e.TargetID),
			e.RowsAffected,
			csvEscapeField(e.Reason),
		))
	}
	return sb.String(), nil
}

// csvEscapeField escapes a string for CSV output.
func csvEscapeField(s string) string {
	if strings.ContainsAny(s, ",\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// severityFor returns the default severity for an action.
func severityFor(action AuditAction) AuditSeverity {
	switch action {
	case ActionEntityWipe:
		return SeverityCritical
	case ActionImportCommit, ActionEditApprove:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
