package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/store"
)

// ErrNoImports is returned by LastImport when the log is empty.
var ErrNoImports = errors.New("no imports recorded")

// ImportLog is one row of the data_imports audit table.
type ImportLog struct {
	ID             string    `json:"id"`
	Source         string    `json:"source"`
	ImportedCount  int       `json:"importedCount"`
	SkippedCount   int       `json:"skippedCount"`
	DuplicateCount int       `json:"duplicateCount"`
	ImportDate     time.Time `json:"importDate"`
	Notes          string    `json:"notes"`
}

func importLogRow(s *RunSummary, at time.Time) store.Row {
	return store.Row{
		"source":          s.Source,
		"imported_count":  s.Imported,
		"skipped_count":   s.Skipped,
		"duplicate_count": s.Duplicates,
		"import_date":     at.UTC(),
		"notes":           s.Notes(),
	}
}

// logImport writes the run's audit row.
func (s *Service) logImport(ctx context.Context, summary *RunSummary) error {
	if _, err := s.store.Insert(ctx, store.TableDataImports, importLogRow(summary, s.now())); err != nil {
		return fmt.Errorf("log import: %w", err)
	}
	return nil
}

// LastImport returns the most recent audit row.
func (s *Service) LastImport(ctx context.Context) (*ImportLog, error) {
	rows, err := s.store.Select(ctx, store.Query{
		Table:   store.TableDataImports,
		OrderBy: []store.Order{{Column: "import_date", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("query import log: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoImports
	}
	return importLogFromRow(rows[0]), nil
}

func importLogFromRow(r store.Row) *ImportLog {
	log := &ImportLog{
		ID:             rowString(r["id"]),
		Source:         rowString(r["source"]),
		ImportedCount:  int(rowFloat(r["imported_count"])),
		SkippedCount:   int(rowFloat(r["skipped_count"])),
		DuplicateCount: int(rowFloat(r["duplicate_count"])),
		Notes:          rowString(r["notes"]),
	}
	if t, ok := r["import_date"].(time.Time); ok {
		log.ImportDate = t
	}
	return log
}
