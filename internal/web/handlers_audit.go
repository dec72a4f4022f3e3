package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/adboard/marketplace/internal/core"
)

// handleAuditLog returns audit entries, newest first, filtered by the
// entityType, action, and actor query parameters.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := auditQueryFromRequest(r)

	entries, err := s.service.Audit().List(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entries)
}

// handleAuditLogExport downloads the filtered audit log as CSV.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	q := auditQueryFromRequest(r)

	csvData, err := s.service.Audit().ExportCSV(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write([]byte(csvData))
}

func auditQueryFromRequest(r *http.Request) core.AuditQuery {
	q := core.AuditQuery{
		EntityType: r.URL.Query().Get("entityType"),
		Action:     core.AuditAction(r.URL.Query().Get("action")),
		Actor:      r.URL.Query().Get("actor"),
		Limit:      parseIntParam(r, "limit", core.DefaultAuditLimit),
	}
	if off := parseIntParam(r, "offset", 0); off > 0 {
		q.Offset = off
	}
	return q
}
