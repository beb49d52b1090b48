package core

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/colegiosrd/internal/store"
)

// DefaultTopN is how many public schools per province are flagged as top.
const DefaultTopN = 10

// ImportTimeout is the default upper bound on one import run.
var ImportTimeout = 10 * time.Minute

// Source delivers the candidate batch for one run.
type Source interface {
	FetchRecords(ctx context.Context) ([]RawRecord, error)
}

// Options tunes a Service. Zero values fall back to the defaults.
type Options struct {
	SourceName         string
	DuplicateThreshold float64
	Policy             ValidationPolicy
	TopN               int
	Timeout            time.Duration
	DryRun             bool
}

func (o Options) withDefaults() Options {
	if o.SourceName == "" {
		o.SourceName = "minerd"
	}
	if o.DuplicateThreshold <= 0 {
		o.DuplicateThreshold = DefaultDuplicateThreshold
	}
	if o.Policy.MinStudents <= 0 {
		o.Policy = DefaultValidationPolicy()
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Timeout <= 0 {
		o.Timeout = ImportTimeout
	}
	return o
}

// Service runs the import pipeline and the directory maintenance jobs
// against a row store.
type Service struct {
	store  store.Store
	source Source
	opts   Options
	now    func() time.Time

	// running serialises imports: one writer per directory.
	running sync.Mutex

	mu   sync.RWMutex
	last *RunSummary
}

// NewService creates a new Service instance. src may be nil for services
// that only run maintenance jobs.
func NewService(st store.Store, src Source, opts Options) *Service {
	return &Service{
		store:  st,
		source: src,
		opts:   opts.withDefaults(),
		now:    time.Now,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// LastRun returns the summary of the most recent run in this process, or nil.
func (s *Service) LastRun() *RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) setLastRun(summary *RunSummary) {
	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()
}
