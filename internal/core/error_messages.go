// Error codes reference.
//
// Every per-record failure in a run summary carries a code so operators can
// tell bad source data from store trouble at a glance.
//
// # Import Errors (IMP001-IMP099)
//
// Assigned from the error chain (errors.Is), not from message text:
//
//	IMP001 - Format: a required field is missing, not text, or a count is not a non-negative number
//	         Action: Fix the record in the MINERD extract
//
//	IMP002 - Range: enrollment below minimum, zero score, or unknown school type
//	         Action: None; the school is excluded by directory policy
//
//	IMP003 - Repeated code: the MINERD code was already imported earlier in this run
//	         Action: Remove the repeated row from the extract
//
//	IMP004 - Province: the province name did not match exactly one province
//	         Action: Add the province or correct its spelling
//
//	IMP005 - Busy: an import was requested while another was running
//	IMP006 - No history: the import log has no entries yet
//
// # Database Errors (DB001-DB099)
//
// Classified by SQLSTATE when the chain holds a *pgconn.PgError, by pgconn's
// connect and timeout errors next, and by message text last (the in-memory
// store and wrapped network errors carry no SQLSTATE):
//
//	DB001 - Duplicate key        23505, or "duplicate key"
//	DB002 - Other constraint     23xxx, or "unique constraint", "violates unique"
//	DB003 - Foreign key          23503, or "foreign key"
//	DB004 - Connection refused   class 08, *pgconn.ConnectError, or "connection refused"
//	DB005 - Connection reset     "connection reset", "broken pipe"
//	DB006 - Timeout              57014, context.DeadlineExceeded, or "timeout"
//	DB007 - Deadlock             40P01, 40001, or "deadlock"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the original error when
// a summary shows ERR000.

package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// sentinelMessages maps import sentinels, matched through the error chain.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{ErrFormat, UserMessage{
		Message: "Record has missing or malformed fields",
		Action:  "Fix the record in the MINERD extract",
		Code:    "IMP001",
	}},
	{ErrRange, UserMessage{
		Message: "Record is outside the directory's inclusion policy",
		Action:  "None; the school is excluded by policy",
		Code:    "IMP002",
	}},
	{ErrDuplicateCode, UserMessage{
		Message: "MINERD code already imported in this run",
		Action:  "Remove the repeated row from the extract",
		Code:    "IMP003",
	}},
	{ErrProvinceNotFound, UserMessage{
		Message: "Province could not be resolved",
		Action:  "Add the province or correct its spelling",
		Code:    "IMP004",
	}},
	{ErrImportRunning, UserMessage{
		Message: "An import is already running",
		Action:  "Wait for it to finish and retry",
		Code:    "IMP005",
	}},
	{ErrNoImports, UserMessage{
		Message: "No import has been recorded yet",
		Action:  "Run an import first",
		Code:    "IMP006",
	}},
}

var (
	msgDuplicateKey = UserMessage{
		Message: "A school with this key already exists",
		Action:  "Check the extract for repeated codes or slugs",
		Code:    "DB001",
	}
	msgConstraint = UserMessage{
		Message: "The record violates a table constraint",
		Action:  "Check required columns and unique values",
		Code:    "DB002",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Check that the province exists",
		Code:    "DB003",
	}
	msgConnRefused = UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}
	msgConnReset = UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Re-run the import; finished records are upserted again safely",
		Code:    "DB005",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Raise IMPORT_TIMEOUT or retry when the database is less busy",
		Code:    "DB006",
	}
	msgDeadlock = UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Retry; do not run jobs while an import is writing",
		Code:    "DB007",
	}
)

// sqlstateMessages maps exact PostgreSQL error codes.
var sqlstateMessages = map[string]UserMessage{
	"23505": msgDuplicateKey,
	"23503": msgForeignKey,
	"57014": msgTimeout,
	"40P01": msgDeadlock,
	"40001": msgDeadlock,
}

// textPatterns is searched, lower-cased, when no typed error matched.
// The first match wins.
var textPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"duplicate key", msgDuplicateKey},
	{"foreign key", msgForeignKey},
	{"unique constraint", msgConstraint},
	{"violates unique", msgConstraint},
	{"connection refused", msgConnRefused},
	{"connection reset", msgConnReset},
	{"broken pipe", msgConnReset},
	{"deadlock", msgDeadlock},
	{"timeout", msgTimeout},
	{"deadline exceeded", msgTimeout},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the original error",
	Code:    "ERR000",
}

// MapError converts an error to its operator-facing message. Import
// sentinels win, then driver errors, then message text; ERR000 otherwise.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}
	if msg, ok := driverMessage(err); ok {
		return msg
	}

	text := strings.ToLower(err.Error())
	for _, tp := range textPatterns {
		if strings.Contains(text, tp.pattern) {
			return tp.msg
		}
	}
	return defaultMessage
}

func driverMessage(err error) (UserMessage, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlstateMessages[pgErr.Code]; ok {
			return msg, true
		}
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return msgConstraint, true
		case strings.HasPrefix(pgErr.Code, "08"):
			return msgConnRefused, true
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return msgConnRefused, true
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return msgTimeout, true
	}
	return UserMessage{}, false
}

// newRecordError builds the summary entry for a failed record.
func newRecordError(identifier string, err error) RecordError {
	return RecordError{
		Record:  identifier,
		Kind:    KindOf(err),
		Code:    MapError(err).Code,
		Message: err.Error(),
	}
}
