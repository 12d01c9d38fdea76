// Package report aggregates the results of one or more full-suite runs into
// a human-facing summary: a failures table, per-test-case score statistics,
// and an overall average.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/harrison/gauntlet/internal/models"
)

// maxErrorMessageLen caps the error column in the failures table.
const maxErrorMessageLen = 200

// RunData bundles one run's output: its row list and the stage durations
// recorded for its successful cases.
type RunData struct {
	Rows      []models.Row
	Durations map[int]models.StageDurations
}

// Summary combines the frozen results of all runs. It is purely derived
// state: building and displaying it has no side effects beyond writing to
// the given writer, and repeated Display calls produce identical output.
type Summary struct {
	runs     []RunData
	failures []models.CaseFailure
	verbose  bool
}

// NewSummary builds a Summary over all completed runs, the combined failure
// list, and the per-run duration maps. verbose adds per-stage timing columns.
func NewSummary(runs []RunData, failures []models.CaseFailure, verbose bool) *Summary {
	return &Summary{runs: runs, failures: failures, verbose: verbose}
}

// Display renders the failures table (if any), the per-test summary table,
// and the overall average score. It is a no-op when there are zero rows
// across all runs and zero failures.
func (s *Summary) Display(w io.Writer) {
	totalRows := 0
	for _, run := range s.runs {
		totalRows += len(run.Rows)
	}
	if totalRows == 0 && len(s.failures) == 0 {
		return
	}

	if len(s.failures) > 0 {
		s.displayFailures(w)
	}

	scores, ranges := s.collectScores()
	for _, line := range s.buildSummaryTable(scores, ranges) {
		fmt.Fprintln(w, line)
	}

	if overall, ok := s.overallScore(scores, ranges); ok {
		fmt.Fprintf(w, "\n%s\n", overall)
	}
}

// collectScores gathers per-test-id score lists across runs and the declared
// range for each id. The range from the first run that produced a row for an
// id wins; later runs' ranges for the same id are ignored.
func (s *Summary) collectScores() (map[int][]float64, map[int]models.ScoreRange) {
	scores := make(map[int][]float64)
	ranges := make(map[int]models.ScoreRange)

	for _, run := range s.runs {
		for _, row := range run.Rows {
			id := row.Identifier()
			scores[id] = append(scores[id], row.FinalScore())
			if _, seen := ranges[id]; !seen {
				ranges[id] = row.ScoreRange()
			}
		}
	}
	return scores, ranges
}

// durationsFor returns every duration record collected for a test id, one
// per run that completed it successfully.
func (s *Summary) durationsFor(id int) []models.StageDurations {
	var out []models.StageDurations
	for _, run := range s.runs {
		if d, ok := run.Durations[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (s *Summary) buildSummaryTable(scores map[int][]float64, ranges map[int]models.ScoreRange) []string {
	multiRun := len(s.runs) > 1

	header := []string{"Test ID", "Avg Score"}
	if s.verbose {
		header = append(header, "Setup", "Feature", "Static", "LLM")
	}
	header = append(header, "Total Time")
	if multiRun {
		header = append(header, "Min Score", "Max Score", "Runs")
	}

	ids := make([]int, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	rows := make([][]string, 0, len(ids))
	rowColors := make([]models.ScoreColor, 0, len(ids))
	for _, id := range ids {
		caseScores := scores[id]
		avg := mean(caseScores)

		scoreColor := models.ColorWhite
		if r, ok := ranges[id]; ok {
			scoreColor = models.ColorFor(avg, r)
		}

		row := []string{fmt.Sprintf("%d", id), fmt.Sprintf("%.2f", avg)}
		row = append(row, s.timingCells(id)...)
		if multiRun {
			row = append(row,
				fmt.Sprintf("%.2f", minOf(caseScores)),
				fmt.Sprintf("%.2f", maxOf(caseScores)),
				fmt.Sprintf("%d", len(caseScores)))
		}

		rows = append(rows, row)
		rowColors = append(rowColors, scoreColor)
	}

	lines := []string{"Test Summary"}
	lines = append(lines, formatAligned(header, rows, rowColors)...)
	return lines
}

// timingCells renders the duration columns for one test id: per-stage
// averages in verbose mode plus the total. Missing duration data renders as
// "N/A" rather than zero.
func (s *Summary) timingCells(id int) []string {
	durations := s.durationsFor(id)
	if len(durations) == 0 {
		if s.verbose {
			return []string{"N/A", "N/A", "N/A", "N/A", "N/A"}
		}
		return []string{"N/A"}
	}

	var setup, feature, static, llm, total float64
	for _, d := range durations {
		setup += d.Setup.Seconds()
		feature += d.Feature.Seconds()
		static += d.StaticEval.Seconds()
		llm += d.LLMEval.Seconds()
		total += d.Total.Seconds()
	}
	n := float64(len(durations))

	var cells []string
	if s.verbose {
		cells = append(cells,
			fmt.Sprintf("%.2fs", setup/n),
			fmt.Sprintf("%.2fs", feature/n),
			fmt.Sprintf("%.2fs", static/n),
			fmt.Sprintf("%.2fs", llm/n))
	}
	return append(cells, fmt.Sprintf("%.2fs", total/n))
}

// displayFailures renders the failed-tests table. Error messages longer than
// maxErrorMessageLen are truncated with a "..." suffix.
func (s *Summary) displayFailures(w io.Writer) {
	header := []string{"Test ID", "Error"}

	rows := make([][]string, 0, len(s.failures))
	rowColors := make([]models.ScoreColor, 0, len(s.failures))
	for _, f := range s.failures {
		msg := f.Err.Error()
		if len(msg) > maxErrorMessageLen {
			msg = msg[:maxErrorMessageLen-3] + "..."
		}
		rows = append(rows, []string{fmt.Sprintf("%d", f.CaseID), msg})
		rowColors = append(rowColors, models.ColorRed)
	}

	fmt.Fprintln(w, "Failed Tests")
	for _, line := range formatAligned(header, rows, rowColors) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}

// overallScore computes one average across every score from every run and
// colors it against the first available test's range as a representative
// scale. Returns false when no scores exist.
func (s *Summary) overallScore(scores map[int][]float64, ranges map[int]models.ScoreRange) (string, bool) {
	ids := make([]int, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var all []float64
	for _, id := range ids {
		all = append(all, scores[id]...)
	}
	if len(all) == 0 {
		return "", false
	}

	avg := mean(all)
	scoreColor := models.ColorGreen
	if len(ids) > 0 {
		if r, ok := ranges[ids[0]]; ok {
			scoreColor = models.ColorFor(avg, r)
		}
	}

	return scoreColor.Paint(fmt.Sprintf("Overall Average Score: %.2f", avg)), true
}

// formatAligned renders a header plus rows with space-padded columns, a dashed
// separator, and an optional per-row color applied after alignment so ANSI
// codes do not skew the widths.
func formatAligned(header []string, rows [][]string, rowColors []models.ScoreColor) []string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	formatRow := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	headerLine := formatRow(header)
	lines := []string{
		color.New(color.Bold).Sprint(headerLine),
		strings.Repeat("-", len(headerLine)),
	}

	for i, row := range rows {
		line := formatRow(row)
		if i < len(rowColors) {
			line = rowColors[i].Paint(line)
		}
		lines = append(lines, line)
	}
	return lines
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
