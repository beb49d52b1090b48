package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/logging"
	"github.com/google/uuid"
)

// Maintenance job names.
const (
	JobRatings   = "ratings"
	JobTopPublic = "top-public"
)

// JobError is one failed action of a maintenance job.
type JobError struct {
	School  string    `json:"school"`
	Action  string    `json:"action"`
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// JobSummary aggregates one maintenance job run.
type JobSummary struct {
	Job       string        `json:"job"`
	RunID     string        `json:"runId"`
	Processed int           `json:"processed"`
	Groups    int           `json:"groups,omitempty"`
	Updated   int           `json:"updated"`
	Failed    int           `json:"failed"`
	Errors    []JobError    `json:"errors,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// startJob opens the summary of a job run and tags ctx with its run ID.
func (s *Service) startJob(ctx context.Context, name string) (context.Context, *JobSummary) {
	job := &JobSummary{Job: name, RunID: uuid.NewString(), StartedAt: s.now()}
	return logging.ContextWithRun(ctx, job.RunID), job
}

func (j *JobSummary) fail(kind ErrorKind, school, action string, err error) {
	j.Failed++
	j.Errors = append(j.Errors, JobError{
		School:  school,
		Action:  action,
		Kind:    kind,
		Code:    MapError(err).Code,
		Message: err.Error(),
	})
}

// WriteReport prints the human-readable job report.
func (j *JobSummary) WriteReport(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n=== %s Summary ===\n", jobTitle(j.Job))
	if j.RunID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", j.RunID)
	}
	fmt.Fprintf(&b, "Schools processed: %d\n", j.Processed)
	if j.Groups > 0 {
		fmt.Fprintf(&b, "Provinces: %d\n", j.Groups)
	}
	fmt.Fprintf(&b, "Total records updated: %d\n", j.Updated)
	fmt.Fprintf(&b, "Failed: %d\n", j.Failed)
	fmt.Fprintf(&b, "Duration: %.2fs\n", j.Duration.Seconds())

	if len(j.Errors) > 0 {
		b.WriteString("\n=== Errors ===\n")
		for _, e := range j.Errors {
			fmt.Fprintf(&b, "[%s] %s (%s): %s\n", e.Code, e.School, e.Action, e.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func jobTitle(job string) string {
	switch job {
	case JobRatings:
		return "Rating"
	case JobTopPublic:
		return "Top Public Update"
	default:
		return job
	}
}
