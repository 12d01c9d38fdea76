// Package progress implements the progress-reporting sink the evaluation
// pipeline updates as test cases move through their stages. The sink must
// tolerate concurrent task registration, update, and removal from many
// pipeline goroutines at once.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Reporter is the capability set the pipeline needs to report per-case
// progress. AddTask returns an opaque token the pipeline passes back on every
// later call; tokens are released with RemoveTask on every exit path.
type Reporter interface {
	AddTask(label string) int
	UpdateTask(token int, opts ...UpdateOption)
	RemoveTask(token int)
	AdvanceOverall()
}

// UpdateOption mutates a single task update.
type UpdateOption func(*taskUpdate)

type taskUpdate struct {
	description *string
	completed   *int
}

// WithDescription replaces the task's display description.
func WithDescription(desc string) UpdateOption {
	return func(u *taskUpdate) {
		u.description = &desc
	}
}

// WithCompleted sets the task's completion percentage (0-100).
func WithCompleted(completed int) UpdateOption {
	return func(u *taskUpdate) {
		u.completed = &completed
	}
}

type taskState struct {
	label       string
	description string
	completed   int
}

// ConsoleReporter renders task progress as timestamped console lines plus an
// overall completion bar. It is safe for concurrent use.
type ConsoleReporter struct {
	mu        sync.Mutex
	writer    io.Writer
	overall   *Bar
	tasks     map[int]*taskState
	nextToken int
	verbose   bool
}

// NewConsoleReporter creates a reporter writing to w. totalUnits is the
// overall number of case executions across all runs (runs * cases). When
// verbose is true every description change is printed, otherwise only the
// overall bar advances are shown.
func NewConsoleReporter(w io.Writer, totalUnits int, enableColor, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{
		writer:  w,
		overall: NewBar(totalUnits, defaultBarWidth, enableColor),
		tasks:   make(map[int]*taskState),
		verbose: verbose,
	}
}

// AddTask registers a task and returns its token.
func (r *ConsoleReporter) AddTask(label string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextToken++
	token := r.nextToken
	r.tasks[token] = &taskState{label: label, description: label}
	return token
}

// UpdateTask applies the given options to the task. Unknown tokens are
// ignored so late updates from a finished pipeline cannot panic.
func (r *ConsoleReporter) UpdateTask(token int, opts ...UpdateOption) {
	var update taskUpdate
	for _, opt := range opts {
		opt(&update)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[token]
	if !ok {
		return
	}

	if update.completed != nil {
		task.completed = *update.completed
	}
	if update.description != nil && *update.description != task.description {
		task.description = *update.description
		if r.verbose && r.writer != nil {
			fmt.Fprintf(r.writer, "[%s] %s\n", time.Now().Format("15:04:05"), task.description)
		}
	}
}

// RemoveTask prints the task's final description and drops it.
func (r *ConsoleReporter) RemoveTask(token int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[token]
	if !ok {
		return
	}
	delete(r.tasks, token)

	if !r.verbose && r.writer != nil {
		fmt.Fprintf(r.writer, "[%s] %s\n", time.Now().Format("15:04:05"), task.description)
	}
}

// AdvanceOverall advances the overall bar by one finished case execution.
func (r *ConsoleReporter) AdvanceOverall() {
	r.overall.Advance()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writer != nil {
		fmt.Fprintf(r.writer, "[%s] Total Progress %s\n", time.Now().Format("15:04:05"), r.overall.Render())
	}
}

// Completed returns the number of case executions the overall bar has seen.
func (r *ConsoleReporter) Completed() int {
	return r.overall.Current()
}

// NoopReporter discards all progress events. Used with --quiet and in tests.
type NoopReporter struct {
	overall int64
	mu      sync.Mutex
}

// NewNoopReporter creates a NoopReporter.
func NewNoopReporter() *NoopReporter {
	return &NoopReporter{}
}

// AddTask returns a throwaway token.
func (r *NoopReporter) AddTask(label string) int { return 0 }

// UpdateTask is a no-op.
func (r *NoopReporter) UpdateTask(token int, opts ...UpdateOption) {}

// RemoveTask is a no-op.
func (r *NoopReporter) RemoveTask(token int) {}

// AdvanceOverall counts completions so callers can still observe totals.
func (r *NoopReporter) AdvanceOverall() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overall++
}

// Completed returns the number of completed case executions.
func (r *NoopReporter) Completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.overall)
}
