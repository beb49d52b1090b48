package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/colegiosrd/internal/logging"
	"github.com/JonMunkholm/colegiosrd/internal/store"
)

// RatingFunction is the stored function that recomputes one school's rating.
const RatingFunction = "calculate_rating"

// RecalculateRatings calls the rating function for every school, in id
// order. A failing school is recorded and the job moves on; only failing to
// list the schools is returned as an error.
func (s *Service) RecalculateRatings(ctx context.Context) (*JobSummary, error) {
	ctx, job := s.startJob(ctx, JobRatings)
	start := job.StartedAt
	logger := logging.WithFields(ctx, "job", JobRatings)

	rows, err := s.store.Select(ctx, store.Query{
		Table:   store.TableSchools,
		Fields:  []string{"id", "name"},
		OrderBy: []store.Order{{Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	logger.Info("recalculating ratings", "schools", len(rows))

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			job.Duration = s.now().Sub(start)
			return job, fmt.Errorf("ratings cancelled: %w", err)
		}

		job.Processed++
		name := rowString(r["name"])
		if _, err := s.store.Call(ctx, RatingFunction, map[string]any{"school_id": r["id"]}); err != nil {
			logger.Warn("rating failed", "school", name, "error", err)
			job.fail(KindRatings, name, "calculate rating", err)
			continue
		}
		job.Updated++
	}

	job.Duration = s.now().Sub(start)
	logger.Info("ratings recalculated", "updated", job.Updated, "failed", job.Failed, "duration", job.Duration)
	return job, nil
}
