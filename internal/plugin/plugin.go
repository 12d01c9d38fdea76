// Package plugin defines the hook set a feature plugin provides and the
// registry that resolves registered hook sets into the collaborator service
// the runner drives.
//
// Two dispatch policies exist, fixed at suite-construction time:
//
//   - PolicyFirstResult: single-valued hooks (test cases, feature runner,
//     evaluators, row factory, resources dir) resolve to the first registered
//     non-nil implementation.
//   - PolicyBroadcast: PublishResults calls every registered non-nil
//     implementation and joins their errors.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/gauntlet/internal/models"
)

// DispatchPolicy names how a hook's registered implementations are combined.
type DispatchPolicy string

// The closed set of dispatch policies.
const (
	PolicyFirstResult DispatchPolicy = "first-result"
	PolicyBroadcast   DispatchPolicy = "broadcast"
)

// Hooks is one plugin's contribution. Every field is optional; nil fields
// fall through to the next registered hook set. The four type parameters bind
// the plugin's Input, Output, column-set, and Row families.
type Hooks[I any, O any, C models.ColumnSet, R models.Row] struct {
	// Name identifies the hook set in logs and errors.
	Name string

	// GetTestCases returns the suite's test cases, typically loaded from a
	// YAML file. First-result.
	GetTestCases func() ([]*models.TestCase[I], error)

	// RunFeature executes the feature under test. First-result.
	RunFeature func(ctx context.Context, tc *models.TestCase[I], resourcesDir string) (O, error)

	// RunStaticTests performs the deterministic evaluation. First-result.
	RunStaticTests func(tc *models.TestCase[I], output O) (C, error)

	// LLMEvaluate performs the LLM-as-a-judge evaluation. First-result.
	LLMEvaluate func(ctx context.Context, tc *models.TestCase[I], output O) (C, error)

	// ResourcesDir returns the suite resources directory. First-result.
	ResourcesDir func() string

	// NewRow merges a case's outputs into one report row. First-result.
	NewRow func(tc *models.TestCase[I], output O, llmCols, staticCols C) (R, error)

	// PublishResults receives one run's sorted rows. Broadcast.
	PublishResults func(ctx context.Context, rows []R, runIndex int) error
}

// Registry accumulates hook sets in registration order and resolves them into
// a Resolved service.
type Registry[I any, O any, C models.ColumnSet, R models.Row] struct {
	hooks []Hooks[I, O, C, R]
}

// NewRegistry creates an empty Registry.
func NewRegistry[I any, O any, C models.ColumnSet, R models.Row]() *Registry[I, O, C, R] {
	return &Registry[I, O, C, R]{}
}

// Register appends a hook set. Earlier registrations win for first-result
// hooks.
func (r *Registry[I, O, C, R]) Register(h Hooks[I, O, C, R]) {
	r.hooks = append(r.hooks, h)
}

// Names lists the registered hook set names in order.
func (r *Registry[I, O, C, R]) Names() []string {
	names := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		names = append(names, h.Name)
	}
	return names
}

// Resolve applies the dispatch policies and returns the resolved service.
// It fails fast when any required single-valued hook has no implementation.
func (r *Registry[I, O, C, R]) Resolve() (*Resolved[I, O, C, R], error) {
	res := &Resolved[I, O, C, R]{}
	var missing []string

	for _, h := range r.hooks {
		if res.getTestCases == nil && h.GetTestCases != nil {
			res.getTestCases = h.GetTestCases
		}
		if res.runFeature == nil && h.RunFeature != nil {
			res.runFeature = h.RunFeature
		}
		if res.runStaticTests == nil && h.RunStaticTests != nil {
			res.runStaticTests = h.RunStaticTests
		}
		if res.llmEvaluate == nil && h.LLMEvaluate != nil {
			res.llmEvaluate = h.LLMEvaluate
		}
		if res.resourcesDir == nil && h.ResourcesDir != nil {
			res.resourcesDir = h.ResourcesDir
		}
		if res.newRow == nil && h.NewRow != nil {
			res.newRow = h.NewRow
		}
		if h.PublishResults != nil {
			res.publishers = append(res.publishers, h.PublishResults)
		}
	}

	if res.getTestCases == nil {
		missing = append(missing, "GetTestCases")
	}
	if res.runFeature == nil {
		missing = append(missing, "RunFeature")
	}
	if res.runStaticTests == nil {
		missing = append(missing, "RunStaticTests")
	}
	if res.llmEvaluate == nil {
		missing = append(missing, "LLMEvaluate")
	}
	if res.resourcesDir == nil {
		missing = append(missing, "ResourcesDir")
	}
	if res.newRow == nil {
		missing = append(missing, "NewRow")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no implementation registered for required hooks: %s", strings.Join(missing, ", "))
	}

	return res, nil
}

// Resolved is the dispatch-policy-applied service. It implements the runner's
// Harness interface.
type Resolved[I any, O any, C models.ColumnSet, R models.Row] struct {
	getTestCases   func() ([]*models.TestCase[I], error)
	runFeature     func(ctx context.Context, tc *models.TestCase[I], resourcesDir string) (O, error)
	runStaticTests func(tc *models.TestCase[I], output O) (C, error)
	llmEvaluate    func(ctx context.Context, tc *models.TestCase[I], output O) (C, error)
	resourcesDir   func() string
	newRow         func(tc *models.TestCase[I], output O, llmCols, staticCols C) (R, error)
	publishers     []func(ctx context.Context, rows []R, runIndex int) error
}

// GetTestCases returns the suite's test cases.
func (s *Resolved[I, O, C, R]) GetTestCases() ([]*models.TestCase[I], error) {
	return s.getTestCases()
}

// RunFeature executes the feature under test.
func (s *Resolved[I, O, C, R]) RunFeature(ctx context.Context, tc *models.TestCase[I], resourcesDir string) (O, error) {
	return s.runFeature(ctx, tc, resourcesDir)
}

// RunStaticTests performs the deterministic evaluation.
func (s *Resolved[I, O, C, R]) RunStaticTests(tc *models.TestCase[I], output O) (C, error) {
	return s.runStaticTests(tc, output)
}

// LLMEvaluate performs the LLM-as-a-judge evaluation.
func (s *Resolved[I, O, C, R]) LLMEvaluate(ctx context.Context, tc *models.TestCase[I], output O) (C, error) {
	return s.llmEvaluate(ctx, tc, output)
}

// ResourcesDir returns the suite resources directory.
func (s *Resolved[I, O, C, R]) ResourcesDir() string {
	return s.resourcesDir()
}

// NewRow merges a case's outputs into one report row.
func (s *Resolved[I, O, C, R]) NewRow(tc *models.TestCase[I], output O, llmCols, staticCols C) (R, error) {
	return s.newRow(tc, output, llmCols, staticCols)
}

// PublishResults broadcasts the rows to every registered publisher, joining
// their errors. Publishers are independent: one failing does not stop the
// rest.
func (s *Resolved[I, O, C, R]) PublishResults(ctx context.Context, rows []R, runIndex int) error {
	var errs []error
	for _, publish := range s.publishers {
		if err := publish(ctx, rows, runIndex); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
