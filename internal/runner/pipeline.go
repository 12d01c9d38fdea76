package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/gauntlet/internal/models"
	"github.com/harrison/gauntlet/internal/progress"
)

// Pipeline stage completion percentages fed to the progress display.
const (
	completedSetup    = 5
	completedFeature  = 15
	completedStatic   = 40
	completedLLM      = 60
	completedEvalDone = 90
	completedFinalize = 95
	completedDone     = 100
)

// runCase drives one test case from start to a terminal outcome: a success
// row, a timeout, or an error. All effects are side effects on the Service's
// collections. A failure here never aborts sibling cases; strict-mode
// escalation happens through the strict failure list alone.
func (s *Service[I, O, C, R]) runCase(parent context.Context, tc *models.TestCase[I]) {
	token := s.progress.AddTask(fmt.Sprintf("Test %d", tc.ID))
	defer func() {
		s.progress.RemoveTask(token)
		s.progress.AdvanceOverall()
	}()

	budget := tc.Config.Timeout
	if budget <= 0 {
		budget = models.DefaultCaseTimeout
	}

	// One deadline covers every remaining stage of this case.
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, budget)
	defer cancel()

	var d models.StageDurations

	setupStart := time.Now()
	s.progress.UpdateTask(token,
		progress.WithDescription(fmt.Sprintf("Test %d: Setup...", tc.ID)),
		progress.WithCompleted(completedSetup))
	d.Setup = time.Since(setupStart)

	out, err := s.featureStage(ctx, tc, token, &d)
	if err == nil {
		var staticCols, llmCols C
		staticCols, llmCols, err = s.testingStage(ctx, tc, out, token, &d)
		if err == nil {
			err = s.finalizeStage(ctx, tc, out, staticCols, llmCols, token)
		}
	}

	if err != nil {
		s.handleFailure(tc, token, budget, err)
		return
	}

	d.Total = time.Since(start)
	s.mu.Lock()
	s.durations[tc.ID] = d
	s.mu.Unlock()

	s.updateTaskWithDuration(tc, token, d)
}

// featureStage invokes the external feature-runner and times it. Retries, if
// any, belong to the feature-runner itself.
func (s *Service[I, O, C, R]) featureStage(ctx context.Context, tc *models.TestCase[I], token int, d *models.StageDurations) (O, error) {
	s.progress.UpdateTask(token,
		progress.WithDescription(fmt.Sprintf("Test %d: Running feature...", tc.ID)),
		progress.WithCompleted(completedFeature))

	resourcesDir := s.harness.ResourcesDir()
	s.log.LogDebugf("test case %d: using resources dir %s", tc.ID, resourcesDir)

	featureStart := time.Now()
	out, err := s.harness.RunFeature(ctx, tc, resourcesDir)
	d.Feature = time.Since(featureStart)
	if err != nil {
		var zero O
		return zero, fmt.Errorf("feature stage: %w", err)
	}
	return out, nil
}

// testingStage runs the static checker and the LLM judge concurrently over
// the same output. Both are timed individually plus as a combined stage, and
// both must finish (or one fail) before the row is finalized.
func (s *Service[I, O, C, R]) testingStage(ctx context.Context, tc *models.TestCase[I], out O, token int, d *models.StageDurations) (C, C, error) {
	s.progress.UpdateTask(token,
		progress.WithDescription(fmt.Sprintf("Test %d: Static Eval...", tc.ID)),
		progress.WithCompleted(completedStatic))

	var staticCols, llmCols C
	testingStart := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		staticStart := time.Now()
		cols, err := s.runStaticDetached(gctx, tc, out)
		d.StaticEval = time.Since(staticStart)
		if err != nil {
			return fmt.Errorf("static evaluation: %w", err)
		}
		staticCols = cols
		s.progress.UpdateTask(token,
			progress.WithDescription(fmt.Sprintf("Test %d: LLM Eval...", tc.ID)),
			progress.WithCompleted(completedLLM))
		return nil
	})
	g.Go(func() error {
		llmStart := time.Now()
		cols, err := s.harness.LLMEvaluate(gctx, tc, out)
		d.LLMEval = time.Since(llmStart)
		if err != nil {
			return fmt.Errorf("llm evaluation: %w", err)
		}
		llmCols = cols
		return nil
	})
	if err := g.Wait(); err != nil {
		var zero C
		return zero, zero, err
	}
	d.TestingStage = time.Since(testingStart)

	s.progress.UpdateTask(token,
		progress.WithDescription(fmt.Sprintf("Test %d: Evaluation complete", tc.ID)),
		progress.WithCompleted(completedEvalDone))
	return staticCols, llmCols, nil
}

type staticResult[C any] struct {
	cols C
	err  error
}

// runStaticDetached executes the static checker on its own goroutine so a
// blocking implementation cannot outlive the case deadline. When the deadline
// wins, the checker goroutine finishes in the background and its buffered
// result is dropped.
func (s *Service[I, O, C, R]) runStaticDetached(ctx context.Context, tc *models.TestCase[I], out O) (C, error) {
	ch := make(chan staticResult[C], 1)
	go func() {
		cols, err := s.harness.RunStaticTests(tc, out)
		ch <- staticResult[C]{cols: cols, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero C
		return zero, ctx.Err()
	case res := <-ch:
		return res.cols, res.err
	}
}

// finalizeStage builds the report row and appends it to the run's row list.
// A deadline that fires before the append discards the row so a timed-out
// case contributes nothing.
func (s *Service[I, O, C, R]) finalizeStage(ctx context.Context, tc *models.TestCase[I], out O, staticCols, llmCols C, token int) error {
	s.progress.UpdateTask(token,
		progress.WithDescription(fmt.Sprintf("Test %d: Finalizing...", tc.ID)),
		progress.WithCompleted(completedFinalize))

	row, err := s.harness.NewRow(tc, out, llmCols, staticCols)
	if err != nil {
		return fmt.Errorf("finalize stage: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.rows = append(s.rows, row)
	s.mu.Unlock()
	s.log.LogDebugf("test case %d: row created with score %.2f", tc.ID, row.FinalScore())

	scoreColor := models.ColorFor(row.FinalScore(), row.ScoreRange())
	s.progress.UpdateTask(token,
		progress.WithDescription(fmt.Sprintf("Test %d: %s", tc.ID,
			scoreColor.Paint(fmt.Sprintf("Score %.2f", row.FinalScore())))),
		progress.WithCompleted(completedDone))
	return nil
}

// updateTaskWithDuration sets the case's final progress line: colored score
// plus total time, with the per-stage breakdown in verbose mode.
func (s *Service[I, O, C, R]) updateTaskWithDuration(tc *models.TestCase[I], token int, d models.StageDurations) {
	description := fmt.Sprintf("Test %d", tc.ID)
	if row, ok := s.rowFor(tc.ID); ok {
		scoreColor := models.ColorFor(row.FinalScore(), row.ScoreRange())
		description = fmt.Sprintf("Test %d: %s", tc.ID,
			scoreColor.Paint(fmt.Sprintf("Score %.2f", row.FinalScore())))
	}

	var timeInfo string
	if s.verbose {
		timeInfo = fmt.Sprintf(" (setup: %.2fs, feature: %.2fs, static: %.2fs, llm: %.2fs, total: %.2fs)",
			d.Setup.Seconds(), d.Feature.Seconds(), d.StaticEval.Seconds(), d.LLMEval.Seconds(), d.Total.Seconds())
	} else {
		timeInfo = fmt.Sprintf(" (%.2fs)", d.Total.Seconds())
	}

	s.progress.UpdateTask(token, progress.WithDescription(description+timeInfo))
}

// handleFailure converts a stage error into a failure record, distinguishing
// deadline expiry from collaborator errors. Strict-mode cases additionally
// feed the run-fatal strict failure set.
func (s *Service[I, O, C, R]) handleFailure(tc *models.TestCase[I], token int, budget time.Duration, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = models.NewTimeoutFailure(tc.ID, budget)
		s.progress.UpdateTask(token,
			progress.WithDescription(fmt.Sprintf("Test %d: %s", tc.ID, models.ColorRed.Paint("Timeout"))),
			progress.WithCompleted(completedDone))
		s.log.LogErrorf("test case %d reached timeout", tc.ID)
	} else {
		s.progress.UpdateTask(token,
			progress.WithDescription(fmt.Sprintf("Test %d: %s", tc.ID, models.ColorRed.Paint("Error"))),
			progress.WithCompleted(completedDone))
		s.log.LogErrorf("error processing test case %d: %v", tc.ID, err)
	}

	failure := models.CaseFailure{CaseID: tc.ID, Name: tc.Name, Err: err}

	s.mu.Lock()
	s.failures = append(s.failures, failure)
	if tc.Config.StrictMode {
		s.strict = append(s.strict, failure)
	}
	s.mu.Unlock()
}
