package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapErrorSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "conflict", err: ErrConflict, wantCode: "MOD001"},
		{name: "not found", err: ErrNotFound, wantCode: "MOD002"},
		{name: "unauthorized", err: ErrUnauthorized, wantCode: "MOD003"},
		{name: "batch committed", err: ErrBatchCommitted, wantCode: "MOD005"},
		{name: "reason required", err: ErrReasonRequired, wantCode: "MOD006"},
		{name: "too many imports", err: ErrTooManyImports, wantCode: "IMP002"},
		{name: "not confirmed", err: ErrNotConfirmed, wantCode: "IMP005"},
		{name: "wrapped sentinel", err: fmt.Errorf("commit: %w", ErrConflict), wantCode: "MOD001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MapError(tt.err)
			if msg.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %s, want %s", tt.err, msg.Code, tt.wantCode)
			}
			if msg.Message == "" || msg.Action == "" {
				t.Errorf("MapError(%v) missing message or action: %+v", tt.err, msg)
			}
		})
	}
}

func TestMapErrorTypedErrors(t *testing.T) {
	capErr := &RowCapError{Rows: 9000, Cap: 5000}
	msg := MapError(fmt.Errorf("preview: %w", capErr))
	if msg.Code != "IMP001" {
		t.Errorf("RowCapError code = %s, want IMP001", msg.Code)
	}

	applyErr := &ApplyFailure{EditID: "e1", Reason: "path collision", Err: errors.New("boom")}
	msg = MapError(applyErr)
	if msg.Code != "MOD004" {
		t.Errorf("ApplyFailure code = %s, want MOD004", msg.Code)
	}
}

func TestMapErrorPatterns(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "unknown entity type", err: errors.New(`unknown entity type "carpet"`), wantCode: "IMP003"},
		{name: "empty file", err: errors.New("empty file: no header row found"), wantCode: "IMP004"},
		{name: "parse failure", err: errors.New("parse listings.xlsx: zip: not a valid zip file"), wantCode: "IMP004"},
		{name: "duplicate key", err: errors.New(`duplicate key value violates unique constraint`), wantCode: "DB001"},
		{name: "connection", err: errors.New("failed to connect to database"), wantCode: "DB001"},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connection refused"), wantCode: "DB001"},
		{name: "unmatched", err: errors.New("something odd"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := MapError(tt.err); msg.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %s, want %s", tt.err, msg.Code, tt.wantCode)
			}
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	if msg := MapError(nil); msg.Code != "" || msg.Message != "" {
		t.Errorf("MapError(nil) = %+v, want zero value", msg)
	}
}

func TestApplyFailureUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &ApplyFailure{EditID: "e1", Reason: "r", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("ApplyFailure does not unwrap to its cause")
	}
}
