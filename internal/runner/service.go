// Package runner implements the suite-level testing service and the per-case
// evaluation pipeline. One Service executes one full pass over the test-case
// suite; the CLI driver constructs one Service per run.
package runner

import (
	"context"
	"sort"
	"sync"

	"github.com/harrison/gauntlet/internal/logger"
	"github.com/harrison/gauntlet/internal/models"
	"github.com/harrison/gauntlet/internal/progress"
)

// Harness is the collaborator contract the pipeline drives. The four type
// parameters bind the plugin's Input, Output, column-set, and Row families.
// Implementations come from the plugin registry; tests supply mocks.
type Harness[I any, O any, C models.ColumnSet, R models.Row] interface {
	// RunFeature executes the feature under test. It may block on I/O and
	// must honor ctx cancellation. No retry is attempted at this layer.
	RunFeature(ctx context.Context, tc *models.TestCase[I], resourcesDir string) (O, error)

	// RunStaticTests performs the deterministic evaluation of the output.
	// It may be computationally blocking; the pipeline runs it off the
	// calling goroutine so a deadline can still preempt it.
	RunStaticTests(tc *models.TestCase[I], output O) (C, error)

	// LLMEvaluate performs the LLM-as-a-judge evaluation of the output.
	LLMEvaluate(ctx context.Context, tc *models.TestCase[I], output O) (C, error)

	// ResourcesDir returns the directory holding suite resources. Cheap,
	// non-blocking accessor.
	ResourcesDir() string

	// NewRow merges the feature output and both column sets into one report
	// row. Called exactly once per successfully completed case.
	NewRow(tc *models.TestCase[I], output O, llmCols, staticCols C) (R, error)

	// PublishResults hands one run's rows to the configured publishers.
	PublishResults(ctx context.Context, rows []R, runIndex int) error
}

// Service runs an entire ordered collection of test cases concurrently as one
// logical unit. Rows, failures, and durations accumulate under a mutex since
// many pipeline goroutines append to them; publication re-sorts rows by
// identifier because completion order carries no guarantee.
type Service[I any, O any, C models.ColumnSet, R models.Row] struct {
	cases    []*models.TestCase[I]
	harness  Harness[I, O, C, R]
	progress progress.Reporter
	log      logger.Logger
	verbose  bool

	mu        sync.Mutex
	rows      []R
	failures  []models.CaseFailure
	strict    []models.CaseFailure
	durations map[int]models.StageDurations
}

// NewService constructs a Service for one run over the given cases.
// reporter and log may be nil; no-op implementations are substituted.
func NewService[I any, O any, C models.ColumnSet, R models.Row](
	cases []*models.TestCase[I],
	harness Harness[I, O, C, R],
	reporter progress.Reporter,
	log logger.Logger,
	verbose bool,
) *Service[I, O, C, R] {
	if reporter == nil {
		reporter = progress.NewNoopReporter()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service[I, O, C, R]{
		cases:     cases,
		harness:   harness,
		progress:  reporter,
		log:       log,
		verbose:   verbose,
		durations: make(map[int]models.StageDurations),
	}
}

// RunTests launches one pipeline goroutine per test case and joins them all.
// Non-strict failures are isolated: they land in the failure list without
// aborting siblings. If any strict-mode case failed, RunTests returns a
// *models.StrictFailureError bundling every strict failure from this run.
func (s *Service[I, O, C, R]) RunTests(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, tc := range s.cases {
		wg.Add(1)
		go func(tc *models.TestCase[I]) {
			defer wg.Done()
			defer func() {
				// A panic in one pipeline must not take down the run.
				if r := recover(); r != nil {
					s.log.LogErrorf("unexpected panic in test task for case %d: %v", tc.ID, r)
				}
			}()
			s.runCase(ctx, tc)
		}(tc)
	}
	wg.Wait()

	s.mu.Lock()
	strict := append([]models.CaseFailure(nil), s.strict...)
	s.mu.Unlock()

	if len(strict) > 0 {
		return &models.StrictFailureError{Failures: strict}
	}
	return nil
}

// PublishResults orders the run's rows by identifier ascending and hands them
// to the harness publishers exactly once. Callers invoke it even when
// RunTests returned an error; suite execution and result publication are
// independent steps.
func (s *Service[I, O, C, R]) PublishResults(ctx context.Context, runIndex int) error {
	s.mu.Lock()
	rows := append([]R(nil), s.rows...)
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Identifier() < rows[j].Identifier()
	})

	s.log.LogDebugf("publishing %d rows for run %d", len(rows), runIndex)
	return s.harness.PublishResults(ctx, rows, runIndex)
}

// Rows returns the run's collected rows, unordered.
func (s *Service[I, O, C, R]) Rows() []models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]models.Row, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	return rows
}

// Failures returns every failure recorded during the run, strict or not.
func (s *Service[I, O, C, R]) Failures() []models.CaseFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CaseFailure(nil), s.failures...)
}

// Durations returns the per-case stage durations recorded on the success
// path, keyed by test case ID.
func (s *Service[I, O, C, R]) Durations() map[int]models.StageDurations {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]models.StageDurations, len(s.durations))
	for id, d := range s.durations {
		out[id] = d
	}
	return out
}

func (s *Service[I, O, C, R]) rowFor(id int) (R, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rows {
		if r.Identifier() == id {
			return r, true
		}
	}
	var zero R
	return zero, false
}
