package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/gauntlet/internal/models"
)

type summaryRow struct {
	id    int
	score float64
	r     models.ScoreRange
}

func (r *summaryRow) Identifier() int               { return r.id }
func (r *summaryRow) FinalScore() float64           { return r.score }
func (r *summaryRow) ScoreRange() models.ScoreRange { return r.r }
func (r *summaryRow) Columns() map[string]string    { return map[string]string{} }

func row(id int, score float64) models.Row {
	return &summaryRow{id: id, score: score, r: models.ScoreRange{Min: 1, Max: 5}}
}

func disableColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestDisplayEmptyIsNoOp(t *testing.T) {
	disableColor(t)

	var buf bytes.Buffer
	NewSummary(nil, nil, false).Display(&buf)
	assert.Empty(t, buf.String())

	buf.Reset()
	NewSummary([]RunData{{}}, nil, false).Display(&buf)
	assert.Empty(t, buf.String())
}

func TestDisplaySingleRun(t *testing.T) {
	disableColor(t)

	runs := []RunData{{
		Rows: []models.Row{row(2, 4.0), row(1, 3.0)},
		Durations: map[int]models.StageDurations{
			1: {Total: 1500 * time.Millisecond},
			2: {Total: 2 * time.Second},
		},
	}}

	var buf bytes.Buffer
	NewSummary(runs, nil, false).Display(&buf)
	out := buf.String()

	assert.Contains(t, out, "Test Summary")
	assert.Contains(t, out, "Test ID")
	assert.Contains(t, out, "Avg Score")
	assert.Contains(t, out, "Total Time")
	// Aggregate columns only appear with multiple runs.
	assert.NotContains(t, out, "Min Score")
	assert.NotContains(t, out, "Runs")

	assert.Contains(t, out, "3.00")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, "1.50s")
	assert.Contains(t, out, "2.00s")

	// Mean of 3.0 and 4.0.
	assert.Contains(t, out, "Overall Average Score: 3.50")

	// Rows are listed by ascending test id.
	id1 := strings.Index(out, "\n1 ")
	id2 := strings.Index(out, "\n2 ")
	require.Positive(t, id1)
	require.Positive(t, id2)
	assert.Less(t, id1, id2)
}

func TestDisplayMultiRunAggregates(t *testing.T) {
	disableColor(t)

	runs := []RunData{
		{Rows: []models.Row{row(1, 2.0)}},
		{Rows: []models.Row{row(1, 4.0)}},
	}

	var buf bytes.Buffer
	NewSummary(runs, nil, false).Display(&buf)
	out := buf.String()

	assert.Contains(t, out, "Min Score")
	assert.Contains(t, out, "Max Score")
	assert.Contains(t, out, "Runs")

	// avg 3.00, min 2.00, max 4.00, 2 runs.
	assert.Contains(t, out, "3.00")
	assert.Contains(t, out, "2.00")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, "Overall Average Score: 3.00")
}

func TestDisplayMissingDurations(t *testing.T) {
	disableColor(t)

	runs := []RunData{{Rows: []models.Row{row(1, 3.0)}}}

	var buf bytes.Buffer
	NewSummary(runs, nil, false).Display(&buf)
	assert.Contains(t, buf.String(), "N/A")

	// Verbose mode renders N/A for every timing column.
	buf.Reset()
	NewSummary(runs, nil, true).Display(&buf)
	out := buf.String()
	assert.Contains(t, out, "Setup")
	assert.Contains(t, out, "Feature")
	assert.Contains(t, out, "Static")
	assert.Contains(t, out, "LLM")
	assert.GreaterOrEqual(t, strings.Count(out, "N/A"), 5)
}

func TestDisplayFailuresTable(t *testing.T) {
	disableColor(t)

	failures := []models.CaseFailure{
		{CaseID: 4, Name: "broken", Err: errors.New("feature stage: connection refused")},
	}

	var buf bytes.Buffer
	NewSummary(nil, failures, false).Display(&buf)
	out := buf.String()

	assert.Contains(t, out, "Failed Tests")
	assert.Contains(t, out, "connection refused")
}

func TestDisplayTruncatesLongErrors(t *testing.T) {
	disableColor(t)

	long := strings.Repeat("x", 250)
	failures := []models.CaseFailure{{CaseID: 1, Err: errors.New(long)}}

	var buf bytes.Buffer
	NewSummary(nil, failures, false).Display(&buf)
	out := buf.String()

	assert.Contains(t, out, strings.Repeat("x", 197)+"...")
	assert.NotContains(t, out, strings.Repeat("x", 198))
}

func TestDisplayFirstSeenRangeWins(t *testing.T) {
	disableColor(t)

	runs := []RunData{
		{Rows: []models.Row{&summaryRow{id: 1, score: 4.5, r: models.ScoreRange{Min: 1, Max: 5}}}},
		{Rows: []models.Row{&summaryRow{id: 1, score: 4.5, r: models.ScoreRange{Min: 0, Max: 100}}}},
	}

	scores, ranges := NewSummary(runs, nil, false).collectScores()
	assert.Equal(t, models.ScoreRange{Min: 1, Max: 5}, ranges[1])
	assert.Len(t, scores[1], 2)
}

func TestDisplayIsIdempotent(t *testing.T) {
	disableColor(t)

	runs := []RunData{{
		Rows:      []models.Row{row(1, 3.0)},
		Durations: map[int]models.StageDurations{1: {Total: time.Second}},
	}}
	failures := []models.CaseFailure{{CaseID: 2, Err: errors.New("boom")}}
	summary := NewSummary(runs, failures, true)

	var first, second bytes.Buffer
	summary.Display(&first)
	summary.Display(&second)
	assert.Equal(t, first.String(), second.String())
}
