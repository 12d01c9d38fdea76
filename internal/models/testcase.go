// Package models defines the data contracts shared by the evaluation
// pipeline, the report aggregator, and plugins: test cases, score ranges,
// result rows, and failure records.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DefaultCaseTimeout is the wall-clock budget applied to a test case when its
// configuration does not specify one. It covers every stage of the pipeline
// for that case: feature execution, both evaluations, and row finalization.
const DefaultCaseTimeout = 10 * time.Minute

// CaseConfig holds the per-case runtime knobs. The suite loader fills it from
// the suite file; the runtime may adjust fields before execution starts, after
// which it is read-only.
type CaseConfig struct {
	// Timeout is the wall-clock budget for all stages of the case combined.
	Timeout time.Duration `yaml:"-"`

	// StrictMode escalates a failure of this case from a local failure entry
	// to a run-fatal aggregate error.
	StrictMode bool `yaml:"strict_mode"`
}

// TestCase is one unit of evaluation input. The Input payload is opaque to the
// engine; plugins define its concrete type. Test cases are owned by the suite
// loader and read-only to the pipeline.
type TestCase[I any] struct {
	ID          int        `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Input       I          `yaml:"input"`
	Config      CaseConfig `yaml:"config"`

	// Expected optionally references the output the feature should produce.
	// Nil when the suite file does not provide one.
	Expected *string `yaml:"expected_output"`

	Tags []string `yaml:"tags"`
}

// HasTag reports whether the test case carries the given tag.
func (tc *TestCase[I]) HasTag(tag string) bool {
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// CaseFailure pairs a failed test case with the error that terminated it.
// Failures accumulate per run and are never removed; the aggregator and the
// CLI render them in a dedicated table.
type CaseFailure struct {
	CaseID int
	Name   string
	Err    error
}

// ErrCaseTimeout marks a case failure caused by the per-case deadline
// elapsing before all stages completed.
var ErrCaseTimeout = errors.New("test case timed out")

// NewTimeoutFailure builds the failure error recorded when a case exceeds its
// deadline.
func NewTimeoutFailure(caseID int, budget time.Duration) error {
	return fmt.Errorf("test case %d exceeded its %s budget: %w", caseID, budget, ErrCaseTimeout)
}

// IsTimeout reports whether err represents a per-case deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrCaseTimeout)
}

// StrictFailureError is the run-level aggregate raised once per run when any
// strict-mode case failed. It bundles every strict failure from that run;
// non-strict failures stay in the failure list only.
type StrictFailureError struct {
	Failures []CaseFailure
}

// Error implements the error interface.
func (e *StrictFailureError) Error() string {
	return fmt.Sprintf("strict mode test failures: %d test case(s) failed", len(e.Failures))
}

// Unwrap exposes the bundled case errors for errors.Is/As matching.
func (e *StrictFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
