package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adboard/marketplace/internal/core"
)

// handleGetEntity returns one canonical entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID, err := parseUUIDParam(r, "entityID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	entity, err := s.service.GetEntity(r.Context(), entityType, entityID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, entity)
}

// handleSubmitEdit stages a proposed change to a live entity. The JSON body is
// the proposed field map; the entity stays publicly unchanged until a
// moderator approves.
func (s *Server) handleSubmitEdit(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID, err := parseUUIDParam(r, "entityID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var proposed map[string]any
	if err := json.NewDecoder(r.Body).Decode(&proposed); err != nil {
		s.respondError(w, r, fmt.Errorf("invalid edit payload: %w", err))
		return
	}

	edit, err := s.service.SubmitEdit(r.Context(), entityType, entityID, proposed)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(edit)
}

// handleListPending returns the moderation queue: entities awaiting review
// paired with their pending edit, oldest first.
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entityType")

	pending, err := s.service.ListPending(r.Context(), entityType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, pending)
}

// handleGetEdit returns one pending edit with its computed deltas.
func (s *Server) handleGetEdit(w http.ResponseWriter, r *http.Request) {
	editID, err := parseUUIDParam(r, "editID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	edit, err := s.service.GetEdit(r.Context(), editID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, edit)
}

type decisionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// handleApprove applies a pending edit to its canonical entity.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	editID, err := parseUUIDParam(r, "editID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req decisionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid decision payload: %w", err))
			return
		}
	}

	edit, err := s.service.Approve(r.Context(), editID, req.Notes)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, edit)
}

// handleReject declines a pending edit, leaving the entity untouched.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	editID, err := parseUUIDParam(r, "editID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req decisionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid decision payload: %w", err))
			return
		}
	}

	edit, err := s.service.Reject(r.Context(), editID, req.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, edit)
}

// parseUUIDParam parses a UUID URL parameter. Malformed identifiers surface
// as not-found rather than leaking parser details.
func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad identifier %q", core.ErrNotFound, raw)
	}
	return id, nil
}
