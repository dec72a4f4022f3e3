package web

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/adboard/marketplace/internal/core"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: core.ErrNotFound, want: http.StatusNotFound},
		{name: "conflict", err: core.ErrConflict, want: http.StatusConflict},
		{name: "batch committed", err: core.ErrBatchCommitted, want: http.StatusConflict},
		{name: "unauthorized", err: core.ErrUnauthorized, want: http.StatusForbidden},
		{name: "too many imports", err: core.ErrTooManyImports, want: http.StatusTooManyRequests},
		{name: "reason required", err: core.ErrReasonRequired, want: http.StatusUnprocessableEntity},
		{name: "not confirmed", err: core.ErrNotConfirmed, want: http.StatusUnprocessableEntity},
		{name: "row cap", err: &core.RowCapError{Rows: 9000, Cap: 5000}, want: http.StatusRequestEntityTooLarge},
		{name: "apply failure", err: &core.ApplyFailure{EditID: "e", Reason: "r", Err: errors.New("x")}, want: http.StatusUnprocessableEntity},
		{name: "wrapped sentinel", err: fmt.Errorf("op: %w", core.ErrNotFound), want: http.StatusNotFound},
		{name: "anything else", err: errors.New("bad input"), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
