package core

// errors.go defines the pipeline error taxonomy and its mapping to
// user-facing messages.
//
// Row-level validation problems are never returned as errors: they are folded
// into the per-row status so a batch always partially succeeds. The errors
// below abort only the single requested operation and are returned verbatim
// to the caller.
//
// Error codes are quoted by users to support staff for faster diagnosis:
//
//	MOD001 - Conflict: a pending edit already exists for this entity
//	MOD002 - Not found: batch, entity, or pending edit does not exist
//	MOD003 - Unauthorized: caller lacks the reviewer role
//	MOD004 - Apply failure: approval could not be applied; entity unchanged
//	MOD005 - Batch already committed
//	MOD006 - Reason required for this decision
//	IMP001 - Too many rows in one import file
//	IMP002 - Too many concurrent imports
//	IMP003 - Unknown entity type
//	IMP004 - Unreadable or empty import file
//	IMP005 - Destructive commit not confirmed
//	DB001  - Database constraint or connectivity problem

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the operation-aborting failure classes.
var (
	// ErrConflict signals a duplicate pending edit for the same entity.
	ErrConflict = errors.New("a pending edit already exists for this entity")

	// ErrNotFound signals a missing batch, entity, or pending edit.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized signals the caller lacks the required role.
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// ErrBatchCommitted signals an attempt to re-commit a committed batch.
	ErrBatchCommitted = errors.New("batch has already been committed")

	// ErrReasonRequired signals a reject without the mandated reason.
	ErrReasonRequired = errors.New("a reason is required for this decision")

	// ErrTooManyImports is returned when all import slots are occupied and
	// the wait timeout expires. Clients should retry after a short delay.
	ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

	// ErrNotConfirmed signals a destructive commit without the explicit
	// confirmation token.
	ErrNotConfirmed = errors.New("destructive commit requires explicit confirmation")
)

// RowCapError is returned when an import file exceeds the per-batch row cap.
// The file is rejected outright, never silently truncated.
type RowCapError struct {
	Rows int
	Cap  int
}

func (e *RowCapError) Error() string {
	return fmt.Sprintf("file has %d rows, exceeding the limit of %d", e.Rows, e.Cap)
}

// ApplyFailure is returned when the atomic apply step of an approval fails.
// The canonical entity is unchanged and the pending edit stays Pending with
// the diagnostic recorded on it.
type ApplyFailure struct {
	EditID string
	Reason string
	Err    error
}

func (e *ApplyFailure) Error() string {
	return fmt.Sprintf("apply failed for edit %s: %s", e.EditID, e.Reason)
}

func (e *ApplyFailure) Unwrap() error { return e.Err }

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessages maps sentinel errors to their user messages.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrConflict, UserMessage{
		Message: "A pending edit already exists for this entity",
		Action:  "Wait for the current edit to be reviewed, then resubmit",
		Code:    "MOD001",
	}},
	{ErrNotFound, UserMessage{
		Message: "The requested record was not found",
		Action:  "Check the identifier; previews expire if not committed",
		Code:    "MOD002",
	}},
	{ErrUnauthorized, UserMessage{
		Message: "You are not authorized to perform this action",
		Action:  "Ask an administrator for the reviewer role",
		Code:    "MOD003",
	}},
	{ErrBatchCommitted, UserMessage{
		Message: "This batch has already been committed",
		Action:  "Upload the file again to start a new import",
		Code:    "MOD005",
	}},
	{ErrReasonRequired, UserMessage{
		Message: "This decision requires a reason",
		Action:  "Provide a short reason and try again",
		Code:    "MOD006",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP002",
	}},
	{ErrNotConfirmed, UserMessage{
		Message: "Replacing existing data requires confirmation",
		Action:  "Type the entity type name to confirm the destructive commit",
		Code:    "IMP005",
	}},
}

// errorPatterns maps technical error substrings (case-insensitive) to user
// messages. The first matching pattern wins, so specific patterns come first.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"exceeding the limit", UserMessage{
		Message: "The import file has too many rows",
		Action:  "Split the file into smaller chunks and retry",
		Code:    "IMP001",
	}},
	{"unknown entity type", UserMessage{
		Message: "This entity type is not importable",
		Action:  "Check the entity type against the published list",
		Code:    "IMP003",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row and data rows",
		Code:    "IMP004",
	}},
	{"parse", UserMessage{
		Message: "The file could not be read",
		Action:  "Ensure the file is a valid CSV or XLSX export",
		Code:    "IMP004",
	}},
	{"foreign key", UserMessage{
		Message: "A referenced record no longer exists",
		Action:  "Create the referenced record first, then retry",
		Code:    "DB001",
	}},
	{"duplicate key", UserMessage{
		Message: "A record with the same identity already exists",
		Action:  "Enable merge mode or remove the duplicate rows",
		Code:    "DB001",
	}},
	{"connect", UserMessage{
		Message: "The database is temporarily unavailable",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"timeout", UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB001",
	}},
}

// MapError translates any error into a user-friendly message with a support
// code. Unmatched errors get the generic ERR000 message; the technical detail
// stays in the server log.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	var capErr *RowCapError
	if errors.As(err, &capErr) {
		return UserMessage{
			Message: fmt.Sprintf("The file has %d rows, above the limit of %d", capErr.Rows, capErr.Cap),
			Action:  "Split the file into smaller chunks and retry",
			Code:    "IMP001",
		}
	}

	var applyErr *ApplyFailure
	if errors.As(err, &applyErr) {
		return UserMessage{
			Message: "The approval could not be applied; the listing is unchanged",
			Action:  "Review the recorded failure reason and retry or reject",
			Code:    "MOD004",
		}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again; quote code ERR000 to support if it persists",
		Code:    "ERR000",
	}
}
