package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adboard/marketplace/internal/core"
	"github.com/adboard/marketplace/internal/schema"
)

// entityTypeResponse describes an importable entity type for clients building
// upload forms.
type entityTypeResponse struct {
	Key    string          `json:"key"`
	Label  string          `json:"label"`
	Fields []fieldResponse `json:"fields"`
}

type fieldResponse struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	Identity   bool     `json:"identity"`
	EnumValues []string `json:"enumValues,omitempty"`
}

// handleListEntityTypes returns the catalog of importable entity types with
// their field schemas.
func (s *Server) handleListEntityTypes(w http.ResponseWriter, r *http.Request) {
	types := schema.All()
	out := make([]entityTypeResponse, 0, len(types))
	for _, et := range types {
		resp := entityTypeResponse{Key: et.Key, Label: et.Label}
		for _, f := range et.Fields {
			resp.Fields = append(resp.Fields, fieldResponse{
				Name:       f.Name,
				Type:       fieldTypeName(f.Type),
				Required:   f.Required,
				Identity:   f.Identity,
				EnumValues: f.EnumValues,
			})
		}
		out = append(out, resp)
	}
	writeJSON(w, out)
}

// handlePreview parses an uploaded spreadsheet, classifies every row, and
// stages the batch for a later commit. Nothing touches the canonical store.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	if entityType == "" {
		s.respondError(w, r, fmt.Errorf("missing entity type"))
		return
	}

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	result, err := s.service.PreviewImport(r.Context(), entityType, header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, result)
}

// handleGetBatch returns a staged batch with its full row classification.
func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	batch, err := s.service.GetBatch(batchID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, batch)
}

// handleCommit materializes the valid rows of a staged batch into the
// canonical store.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	var opts core.CommitOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid commit options: %w", err))
			return
		}
	}

	result, err := s.service.CommitBatch(r.Context(), batchID, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, result)
}

// handleDiscardBatch drops a staged batch without committing it.
func (s *Server) handleDiscardBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	s.service.DiscardBatch(batchID)
	writeJSON(w, map[string]string{"status": "discarded"})
}

// handleImportHistory returns committed import summaries, newest first.
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entityType")
	limit := parseIntParam(r, "limit", 50)

	logs, err := s.service.ListImportLogs(r.Context(), entityType, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, logs)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// fieldTypeName converts a FieldType to its JSON name.
func fieldTypeName(ft schema.FieldType) string {
	switch ft {
	case schema.FieldNumeric:
		return "numeric"
	case schema.FieldDate:
		return "date"
	case schema.FieldBool:
		return "bool"
	case schema.FieldEnum:
		return "enum"
	default:
		return "text"
	}
}
