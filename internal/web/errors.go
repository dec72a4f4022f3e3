package web

// errors.go provides unified error response handling for the API.
//
// The error flow:
//  1. Handler encounters an error and calls respondError(w, r, err)
//  2. The HTTP status is derived from the error class
//  3. core.MapError translates the error into a user-facing message
//  4. The technical error is logged with the request ID for correlation
//  5. The user message is returned as JSON

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adboard/marketplace/internal/core"
	"github.com/adboard/marketplace/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
// Code is machine-readable; Message and Action are for humans.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error server-side and returns a sanitized
// JSON body with a support code.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForError maps pipeline error classes to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrBatchCommitted):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrReasonRequired), errors.Is(err, core.ErrNotConfirmed):
		return http.StatusUnprocessableEntity
	}

	var capErr *core.RowCapError
	if errors.As(err, &capErr) {
		return http.StatusRequestEntityTooLarge
	}

	var applyErr *core.ApplyFailure
	if errors.As(err, &applyErr) {
		return http.StatusUnprocessableEntity
	}

	return http.StatusBadRequest
}
