package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the import pipeline. Per-record failures wrap one of
// these so callers classify them with errors.Is.
var (
	ErrFormat           = errors.New("invalid record format")
	ErrRange            = errors.New("record outside accepted range")
	ErrDuplicateCode    = errors.New("minerd code repeated in this run")
	ErrProvinceNotFound = errors.New("province not found")
	ErrWrite            = errors.New("write failed")
	ErrWriteConflict    = fmt.Errorf("%w: constraint violation", ErrWrite)

	// ErrFetchExisting is the only fatal error of an import run.
	ErrFetchExisting = errors.New("fetch existing schools")

	// ErrImportRunning is returned when a second run is requested while one is active.
	ErrImportRunning = errors.New("an import is already running")
)

// ErrorKind classifies a per-record error for summaries and logs.
type ErrorKind string

const (
	KindFormat    ErrorKind = "format"
	KindRange     ErrorKind = "range"
	KindRepeated  ErrorKind = "repeated_code"
	KindProvince  ErrorKind = "province"
	KindWrite     ErrorKind = "write"
	KindUnknown   ErrorKind = "unknown"
	KindRatings   ErrorKind = "rating"
	KindTopPublic ErrorKind = "top_public"
)

// KindOf returns the ErrorKind for err.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrFormat):
		return KindFormat
	case errors.Is(err, ErrRange):
		return KindRange
	case errors.Is(err, ErrDuplicateCode):
		return KindRepeated
	case errors.Is(err, ErrProvinceNotFound):
		return KindProvince
	case errors.Is(err, ErrWrite):
		return KindWrite
	default:
		return KindUnknown
	}
}
