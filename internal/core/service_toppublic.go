package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/JonMunkholm/colegiosrd/internal/logging"
	"github.com/JonMunkholm/colegiosrd/internal/store"
)

type publicSchool struct {
	id     any
	name   string
	prueba float64
	isTop  bool
}

// UpdateTopPublic flags the N best public schools of each province by
// Prueba Nacional score (missing scores count as 0) and clears the flag on
// the rest. Only rows whose flag changes are written. Individual update
// failures are recorded without stopping the job.
func (s *Service) UpdateTopPublic(ctx context.Context) (*JobSummary, error) {
	ctx, job := s.startJob(ctx, JobTopPublic)
	start := job.StartedAt
	logger := logging.WithFields(ctx, "job", JobTopPublic, "top_n", s.opts.TopN)

	rows, err := s.store.Select(ctx, store.Query{
		Table:   store.TableSchools,
		Fields:  []string{"id", "name", "province_id", "prueba_nacional", "is_top_public"},
		Filters: []store.Filter{store.Eq("type", string(SchoolPublic))},
		OrderBy: []store.Order{{Column: "prueba_nacional", Desc: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("list public schools: %w", err)
	}

	groups, order := groupByProvince(rows)
	job.Groups = len(order)
	logger.Info("ranking public schools", "schools", len(rows), "provinces", len(order))

	for _, province := range order {
		schools := groups[province]
		sort.SliceStable(schools, func(i, j int) bool {
			return schools[i].prueba > schools[j].prueba
		})

		for i, school := range schools {
			if err := ctx.Err(); err != nil {
				job.Duration = s.now().Sub(start)
				return job, fmt.Errorf("top-public cancelled: %w", err)
			}

			job.Processed++
			want := i < s.opts.TopN
			if school.isTop == want {
				continue
			}

			action := "mark as top"
			if !want {
				action = "mark as non-top"
			}
			if _, err := s.store.Update(ctx, store.TableSchools,
				store.Row{"is_top_public": want}, store.Eq("id", school.id)); err != nil {
				logger.Warn("update failed", "school", school.name, "action", action, "error", err)
				job.fail(KindTopPublic, school.name, action, err)
				continue
			}
			logger.Debug("flag updated", "school", school.name, "province", province, "action", action)
			job.Updated++
		}
	}

	job.Duration = s.now().Sub(start)
	logger.Info("top public schools updated", "updated", job.Updated, "failed", job.Failed, "duration", job.Duration)
	return job, nil
}

// groupByProvince buckets rows by province, keeping first-seen province order.
func groupByProvince(rows []store.Row) (map[string][]publicSchool, []string) {
	groups := make(map[string][]publicSchool)
	var order []string
	for _, r := range rows {
		province := rowString(r["province_id"])
		if _, ok := groups[province]; !ok {
			order = append(order, province)
		}
		groups[province] = append(groups[province], publicSchool{
			id:     r["id"],
			name:   rowString(r["name"]),
			prueba: rowFloat(r["prueba_nacional"]),
			isTop:  rowBool(r["is_top_public"]),
		})
	}
	return groups, order
}
