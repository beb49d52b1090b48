package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/logging"
	"github.com/JonMunkholm/colegiosrd/internal/store"
)

var existingSchoolFields = []string{"id", "name", "minerd_code"}

// RunImport performs one import run: snapshot existing schools, fetch the
// candidate batch, then validate, dedup-check, resolve and write each
// candidate in order. Per-record failures are counted and itemised in the
// summary; only a failed snapshot (ErrFetchExisting) or cancellation ends
// the run with an error. Runs are serialised per Service.
func (s *Service) RunImport(ctx context.Context) (*RunSummary, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.runImport(ctx)
}

// TryRunImport is RunImport that fails with ErrImportRunning instead of
// waiting when another run is in progress.
func (s *Service) TryRunImport(ctx context.Context) (*RunSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrImportRunning
	}
	defer s.running.Unlock()
	return s.runImport(ctx)
}

func (s *Service) runImport(ctx context.Context) (*RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := s.now()
	summary := newRunSummary(s.opts.SourceName, s.opts.DryRun, start)

	ctx = logging.ContextWithRun(ctx, summary.RunID)
	logger := logging.WithFields(ctx,
		"source", summary.Source,
		"trigger", TriggerFromContext(ctx),
	)
	if ip := GetIPAddressFromContext(ctx); ip != "" {
		logger = logger.With("ip", ip)
	}
	logger.Info("import started", "dry_run", s.opts.DryRun)

	existing, err := s.fetchExisting(ctx)
	if err != nil {
		logger.Error("import aborted", "error", err)
		return nil, err
	}

	var candidates []RawRecord
	if s.source != nil {
		candidates, err = s.source.FetchRecords(ctx)
		if err != nil {
			logger.Warn("fetch candidates failed, continuing with empty batch", "error", err)
			candidates = nil
		}
	}
	summary.Fetched = len(candidates)
	logger.Info("records fetched", "candidates", len(candidates), "existing", len(existing))

	run := &importRun{
		svc:       s,
		summary:   summary,
		logger:    logger,
		validator: NewValidator(s.opts.Policy),
		detector:  NewDetector(existing, s.opts.DuplicateThreshold),
		provinces: make(map[string]provinceLookup),
	}

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			summary.Duration = s.now().Sub(start)
			logger.Warn("import cancelled", "processed", summary.Processed(), "error", err)
			return summary, fmt.Errorf("import cancelled: %w", err)
		}
		run.process(ctx, rec)
	}

	summary.Duration = s.now().Sub(start)

	if !s.opts.DryRun {
		if err := s.logImport(ctx, summary); err != nil {
			logger.Error("failed to write import log", "error", err)
		}
	}
	s.setLastRun(summary)

	logger.Info("import completed",
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"duplicates", summary.Duplicates,
		"errors", len(summary.Errors),
		"duration", summary.Duration,
	)
	return summary, nil
}

func (s *Service) fetchExisting(ctx context.Context) ([]ExistingSchool, error) {
	rows, err := s.store.SelectAll(ctx, store.TableSchools, existingSchoolFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchExisting, err)
	}
	existing := make([]ExistingSchool, 0, len(rows))
	for _, r := range rows {
		existing = append(existing, ExistingSchool{
			ID:         rowString(r["id"]),
			Name:       rowString(r["name"]),
			MinerdCode: rowString(r["minerd_code"]),
		})
	}
	return existing, nil
}

// provinceLookup caches one province resolution for the run.
type provinceLookup struct {
	id  any
	err error
}

// importRun holds the per-run state. It is used by a single goroutine.
type importRun struct {
	svc       *Service
	summary   *RunSummary
	logger    *slog.Logger
	validator *Validator
	detector  *Detector
	provinces map[string]provinceLookup
}

func (r *importRun) process(ctx context.Context, rec RawRecord) Outcome {
	id := rec.Identifier()

	v, err := r.validator.Validate(rec)
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			r.logger.Warn("minerd code repeated in batch", "record", id, "minerd_code", rec[FieldMinerdCode])
		} else {
			r.logger.Debug("record rejected", "record", id, "error", err)
		}
		return r.skip(id, err)
	}

	if matches := r.detector.Find(v); len(matches) > 0 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		r.logger.Info("potential duplicate", "record", v.Name(), "matches", strings.Join(names, ", "))
		r.summary.Duplicates++
		r.summary.DuplicateMatches = append(r.summary.DuplicateMatches, DuplicateMatch{
			Record:  v.Name(),
			Matches: names,
		})
		return OutcomeDuplicate
	}

	provinceID, err := r.resolveProvince(ctx, v.Province())
	if err != nil {
		r.logger.Warn("province not resolved", "record", id, "province", v.Province(), "error", err)
		return r.skip(id, err)
	}

	if !r.svc.opts.DryRun {
		if err := r.svc.writeSchool(ctx, v, provinceID); err != nil {
			r.logger.Warn("write failed", "record", id, "error", err)
			return r.skip(id, err)
		}
	}

	r.validator.Accept(v)
	r.summary.Imported++
	return OutcomeImported
}

func (r *importRun) skip(id string, err error) Outcome {
	r.summary.Skipped++
	r.summary.Errors = append(r.summary.Errors, newRecordError(id, err))
	return OutcomeSkipped
}

// resolveProvince maps a province name to its id, case-insensitively.
// Successful and not-found lookups are cached; transient errors are not.
func (r *importRun) resolveProvince(ctx context.Context, name string) (any, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if cached, ok := r.provinces[key]; ok {
		return cached.id, cached.err
	}

	row, err := r.svc.store.LookupOne(ctx, store.TableProvinces, store.EqualFold("name", name))
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrMultipleRows):
		err = fmt.Errorf("%w: %q", ErrProvinceNotFound, name)
		r.provinces[key] = provinceLookup{err: err}
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("lookup province %q: %w", name, err)
	}

	id, ok := row["id"]
	if !ok || id == nil {
		err = fmt.Errorf("%w: %q has no id", ErrProvinceNotFound, name)
		r.provinces[key] = provinceLookup{err: err}
		return nil, err
	}
	r.provinces[key] = provinceLookup{id: id}
	return id, nil
}

// schoolRow builds the upsert payload for a validated record.
func schoolRow(v ValidatedRecord, provinceID any, updatedAt time.Time) store.Row {
	return store.Row{
		"minerd_code":     v.MinerdCode(),
		"name":            v.Name(),
		"slug":            Slug(v.Name()),
		"type":            string(v.Type()),
		"address":         v.Address(),
		"province_id":     provinceID,
		"students_count":  v.StudentsCount(),
		"prueba_nacional": v.PruebaNacional(),
		"updated_at":      updatedAt,
	}
}

func (s *Service) writeSchool(ctx context.Context, v ValidatedRecord, provinceID any) error {
	row := schoolRow(v, provinceID, s.now().UTC())
	if _, err := s.store.Upsert(ctx, store.TableSchools, row, "minerd_code"); err != nil {
		if store.IsConstraintViolation(err) {
			return fmt.Errorf("%w: %w", ErrWriteConflict, err)
		}
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
