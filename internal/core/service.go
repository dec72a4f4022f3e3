package core

// service.go wires the pipeline together: the staging store, the import
// limiter, the audit recorder, and the authorization store, all over one
// pgx pool.

import (
	"fmt"

	"github.com/adboard/marketplace/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is the entry point for all pipeline operations.
type Service struct {
	pool    *pgxpool.Pool
	batches *BatchStore
	limiter *ImportLimiter
	audit   *AuditRecorder
	roles   *RoleStore

	rowCap        int
	previewSample int
}

// NewService creates the pipeline service from configuration.
func NewService(pool *pgxpool.Pool, cfg *config.Config) (*Service, error) {
	if pool == nil {
		return nil, fmt.Errorf("nil database pool")
	}

	return &Service{
		pool:          pool,
		batches:       NewBatchStore(cfg.Import.BatchTTL),
		limiter:       NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		audit:         NewAuditRecorder(pool),
		roles:         NewRoleStore(pool),
		rowCap:        cfg.Import.MaxRows,
		previewSample: cfg.Import.PreviewSample,
	}, nil
}

// Audit exposes the audit recorder for the read-side handlers.
func (s *Service) Audit() *AuditRecorder {
	return s.audit
}

// Close releases service-held resources. The pool is owned by the caller.
func (s *Service) Close() {
	s.batches.Close()
}
