package exampleplugin

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/gauntlet/internal/models"
	"github.com/harrison/gauntlet/internal/plugin"
	"github.com/harrison/gauntlet/internal/publish"
	"github.com/harrison/gauntlet/internal/report"
	"github.com/harrison/gauntlet/internal/runner"
)

const exampleSuite = `- id: 1
  name: count users
  input:
    user_query: how many users signed up
  expected_output: SELECT COUNT(*) FROM users
  tags: [smoke]
- id: 2
  name: recent orders
  input:
    user_query: show the most recent orders
- id: 3
  name: destructive request
  input:
    user_query: delete all sessions
`

func writeSuite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(exampleSuite), 0644))
	return path
}

func TestGenerateQuery(t *testing.T) {
	tests := []struct {
		name      string
		userQuery string
		wantQuery string
	}{
		{
			name:      "count request",
			userQuery: "how many users signed up",
			wantQuery: "SELECT COUNT(*) FROM users",
		},
		{
			name:      "recency request",
			userQuery: "show the most recent orders",
			wantQuery: "SELECT * FROM orders ORDER BY created_at DESC LIMIT 10",
		},
		{
			name:      "plain listing",
			userQuery: "show me the products",
			wantQuery: "SELECT * FROM products",
		},
		{
			name:      "unknown table falls back",
			userQuery: "show everything",
			wantQuery: "SELECT * FROM records",
		},
		{
			name:      "destructive request refused",
			userQuery: "delete all sessions",
			wantQuery: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := generateQuery(tt.userQuery)
			assert.Equal(t, tt.wantQuery, out.Query)
			assert.NotEmpty(t, out.Explanation)
		})
	}
}

func TestStaticEvaluate(t *testing.T) {
	t.Run("clean output scores full marks", func(t *testing.T) {
		eval := staticEvaluate(Output{
			Query:       "SELECT COUNT(*) FROM users",
			Explanation: "Counts all rows.",
		})
		assert.Equal(t, 5.0, eval.Score)
		assert.Equal(t, "all static checks passed", eval.Reasoning)
	})

	t.Run("each failed check costs a point", func(t *testing.T) {
		eval := staticEvaluate(Output{
			Query:       "DROP TABLE users",
			Explanation: "",
		})
		assert.Equal(t, 2.0, eval.Score)
		assert.Contains(t, eval.Reasoning, "not a SELECT statement")
		assert.Contains(t, eval.Reasoning, "explanation is missing")
	})

	t.Run("empty output bottoms out", func(t *testing.T) {
		eval := staticEvaluate(Output{})
		assert.Equal(t, 3.0, eval.Score)
		assert.Contains(t, eval.Reasoning, "query is empty")
	})
}

func TestHeuristicEvaluate(t *testing.T) {
	t.Run("echoed terms and explanation raise the score", func(t *testing.T) {
		eval := heuristicEvaluate("how many users signed up", Output{
			Query:       "SELECT COUNT(*) FROM users",
			Explanation: "Counts all rows in the users table.",
		})
		assert.Equal(t, 5.0, eval.Score)
	})

	t.Run("empty query scores minimum", func(t *testing.T) {
		eval := heuristicEvaluate("anything", Output{})
		assert.Equal(t, 1.0, eval.Score)
	})
}

func TestRowScoring(t *testing.T) {
	row := &Row{ID: 1, LLMScore: 5, StaticScore: 1}

	assert.Equal(t, 1, row.Identifier())
	assert.Equal(t, 3.0, row.FinalScore())
	assert.Equal(t, models.ScoreRange{Min: 1, Max: 5}, row.ScoreRange())

	cols := row.Columns()
	assert.Equal(t, "5.0", cols["llm_score"])
	assert.Equal(t, "1.0", cols["static_score"])
}

func TestEndToEndOfflineRun(t *testing.T) {
	suitePath := writeSuite(t)
	reportDir := t.TempDir()

	registry := plugin.NewRegistry[Input, Output, Evaluation, *Row]()
	registry.Register(New(Options{
		CasesPath:    suitePath,
		ResourcesDir: filepath.Dir(suitePath),
	}))

	writer := publish.NewCSVWriter(reportDir, "report")
	registry.Register(plugin.Hooks[Input, Output, Evaluation, *Row]{
		Name: "csv-report",
		PublishResults: func(ctx context.Context, rows []*Row, runIndex int) error {
			out := make([]models.Row, 0, len(rows))
			for _, r := range rows {
				out = append(out, r)
			}
			return writer.Publish(ctx, out, runIndex)
		},
	})

	resolved, err := registry.Resolve()
	require.NoError(t, err)

	cases, err := resolved.GetTestCases()
	require.NoError(t, err)
	require.Len(t, cases, 3)

	svc := runner.NewService(cases, resolved, nil, nil, false)
	require.NoError(t, svc.RunTests(context.Background()))
	require.NoError(t, svc.PublishResults(context.Background(), 0))

	rows := svc.Rows()
	require.Len(t, rows, 3)
	assert.Empty(t, svc.Failures())

	byID := make(map[int]models.Row, len(rows))
	for _, r := range rows {
		byID[r.Identifier()] = r
	}

	// The count case passes every static check and echoes the request,
	// so both evaluators give it full marks.
	assert.Equal(t, 5.0, byID[1].FinalScore())

	// The refused destructive request keeps its explanation, so static
	// scores 4 while the heuristic bottoms out at 1.
	assert.Equal(t, 2.5, byID[3].FinalScore())

	_, err = os.Stat(filepath.Join(reportDir, "report_run_0.csv"))
	assert.NoError(t, err)
}

func TestSplitVerdictAggregation(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	// Static 1 and LLM 5 on the 1 to 5 scale average to 3.0; two identical
	// runs keep avg, min, and max pinned at 3.0 with a run count of 2.
	makeRun := func() report.RunData {
		return report.RunData{
			Rows: []models.Row{&Row{ID: 1, LLMScore: 5, StaticScore: 1}},
		}
	}

	var buf bytes.Buffer
	report.NewSummary([]report.RunData{makeRun(), makeRun()}, nil, false).Display(&buf)
	out := buf.String()

	assert.Contains(t, out, "3.00")
	assert.Contains(t, out, "Min Score")
	assert.Contains(t, out, "Max Score")
	assert.Contains(t, out, "Overall Average Score: 3.00")

	fields := strings.Fields(out[strings.Index(out, "\n1 ")+1:])
	// Test ID, Avg Score, Total Time, Min, Max, Runs.
	require.GreaterOrEqual(t, len(fields), 6)
	assert.Equal(t, []string{"1", "3.00", "N/A", "3.00", "3.00", "2"}, fields[:6])
}

func TestEndToEndMultipleRunsAreDeterministic(t *testing.T) {
	suitePath := writeSuite(t)

	registry := plugin.NewRegistry[Input, Output, Evaluation, *Row]()
	registry.Register(New(Options{
		CasesPath:    suitePath,
		ResourcesDir: filepath.Dir(suitePath),
	}))
	resolved, err := registry.Resolve()
	require.NoError(t, err)

	cases, err := resolved.GetTestCases()
	require.NoError(t, err)

	var scores [2]map[int]float64
	for run := 0; run < 2; run++ {
		svc := runner.NewService(cases, resolved, nil, nil, false)
		require.NoError(t, svc.RunTests(context.Background()))

		scores[run] = make(map[int]float64)
		for _, r := range svc.Rows() {
			scores[run][r.Identifier()] = r.FinalScore()
		}
	}
	assert.Equal(t, scores[0], scores[1])
}
