package source

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/colegiosrd/internal/core"
	"github.com/JonMunkholm/colegiosrd/internal/logging"
)

// Fallback prefers the local file and falls back to one API call. Any
// failure is logged and yields an empty batch; FetchRecords never errors.
type Fallback struct {
	File *File
	API  *API
}

// NewFallback combines a file and an API source. Either may be nil.
func NewFallback(file *File, api *API) *Fallback {
	return &Fallback{File: file, API: api}
}

func (f *Fallback) FetchRecords(ctx context.Context) ([]core.RawRecord, error) {
	logger := logging.FromContext(ctx)

	if f.File != nil && f.File.Exists() {
		logger.Info("reading local file", "path", f.File.Path)
		records, err := f.File.FetchRecords(ctx)
		if err != nil {
			return f.empty(logger, "local file unreadable", err)
		}
		return records, nil
	}

	if f.API == nil {
		logger.Warn("no local file and no API configured, using empty dataset")
		return []core.RawRecord{}, nil
	}

	logger.Info("fetching from MINERD API", "url", f.API.URL)
	records, err := f.API.FetchRecords(ctx)
	if err != nil {
		return f.empty(logger, "failed to fetch from MINERD API", err)
	}
	return records, nil
}

func (f *Fallback) empty(logger *slog.Logger, msg string, err error) ([]core.RawRecord, error) {
	logger.Warn(msg+", falling back to empty dataset", "error", err)
	return []core.RawRecord{}, nil
}
