package core

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field names of a MINERD record, shared by the file and API sources.
const (
	FieldMinerdCode     = "minerd_code"
	FieldName           = "name"
	FieldProvince       = "province"
	FieldType           = "type"
	FieldStudentsCount  = "students_count"
	FieldPruebaNacional = "prueba_nacional"
	FieldAddress        = "address"
)

// NumericFields lists the fields sources should normalise to numbers.
var NumericFields = []string{FieldStudentsCount, FieldPruebaNacional}

// RawRecord is an untrusted input row as delivered by a source.
// Values are strings or numbers; nothing about them is guaranteed.
type RawRecord map[string]any

// Identifier returns a human-readable label for summaries and logs:
// the school name, falling back to the MINERD code.
func (r RawRecord) Identifier() string {
	if s, ok := r[FieldName].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := r[FieldMinerdCode].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return "(unnamed record)"
}

// SchoolType is the administrative type of a school.
type SchoolType string

const (
	SchoolPublic  SchoolType = "public"
	SchoolPrivate SchoolType = "private"
)

// ValidatedRecord is a record that passed every validation layer.
// It can only be produced by a Validator, so the write path cannot be
// reached with unchecked data.
type ValidatedRecord struct {
	minerdCode     string
	name           string
	province       string
	schoolType     SchoolType
	studentsCount  int
	pruebaNacional float64
	address        string
}

func (v ValidatedRecord) MinerdCode() string      { return v.minerdCode }
func (v ValidatedRecord) Name() string            { return v.name }
func (v ValidatedRecord) Province() string        { return v.province }
func (v ValidatedRecord) Type() SchoolType        { return v.schoolType }
func (v ValidatedRecord) StudentsCount() int      { return v.studentsCount }
func (v ValidatedRecord) PruebaNacional() float64 { return v.pruebaNacional }
func (v ValidatedRecord) Address() string         { return v.address }

// ExistingSchool is the slice of a persisted school used for duplicate detection.
type ExistingSchool struct {
	ID         string
	Name       string
	MinerdCode string
}

// Outcome is the terminal classification of one candidate record.
type Outcome string

const (
	OutcomeImported  Outcome = "imported"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
)

// RecordError is one itemised per-record failure in a run summary.
type RecordError struct {
	Record  string    `json:"record"`
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// DuplicateMatch records a candidate held back for manual review and the
// existing schools it resembles.
type DuplicateMatch struct {
	Record  string   `json:"record"`
	Matches []string `json:"matches"`
}

// RunSummary aggregates the result of one import run.
type RunSummary struct {
	RunID            string           `json:"runId"`
	Source           string           `json:"source"`
	DryRun           bool             `json:"dryRun,omitempty"`
	Fetched          int              `json:"fetched"`
	Imported         int              `json:"imported"`
	Skipped          int              `json:"skipped"`
	Duplicates       int              `json:"duplicates"`
	Errors           []RecordError    `json:"errors,omitempty"`
	DuplicateMatches []DuplicateMatch `json:"duplicateMatches,omitempty"`
	StartedAt        time.Time        `json:"startedAt"`
	Duration         time.Duration    `json:"duration"`
}

func newRunSummary(source string, dryRun bool, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.New().String(),
		Source:    source,
		DryRun:    dryRun,
		StartedAt: startedAt,
	}
}

// Notes returns the one-line description stored in the import log.
func (s *RunSummary) Notes() string {
	return fmt.Sprintf("Imported %d schools, skipped %d, found %d potential duplicates",
		s.Imported, s.Skipped, s.Duplicates)
}

// Processed returns the number of candidates that reached a terminal outcome.
func (s *RunSummary) Processed() int {
	return s.Imported + s.Skipped + s.Duplicates
}

// WriteReport prints the human-readable end-of-run report.
func (s *RunSummary) WriteReport(w io.Writer) error {
	var b strings.Builder

	b.WriteString("\n=== Import Summary ===\n")
	if s.DryRun {
		b.WriteString("Mode: dry run (no writes)\n")
	}
	fmt.Fprintf(&b, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(&b, "Source: %s\n", s.Source)
	fmt.Fprintf(&b, "Records fetched: %d\n", s.Fetched)
	fmt.Fprintf(&b, "Total imported: %d\n", s.Imported)
	fmt.Fprintf(&b, "Total skipped: %d\n", s.Skipped)
	fmt.Fprintf(&b, "Duplicates found: %d\n", s.Duplicates)
	fmt.Fprintf(&b, "Duration: %.2fs\n", s.Duration.Seconds())

	if len(s.DuplicateMatches) > 0 {
		b.WriteString("\n=== Potential Duplicates (review manually) ===\n")
		for _, d := range s.DuplicateMatches {
			fmt.Fprintf(&b, "%s: %s\n", d.Record, strings.Join(d.Matches, ", "))
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("\n=== Errors ===\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "[%s] %s: %s\n", e.Code, e.Record, e.Message)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
