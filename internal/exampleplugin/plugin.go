// Package exampleplugin is a complete reference plugin: a small SQL query
// assistant evaluated by deterministic static checks and an LLM judge. It
// doubles as the end-to-end fixture for the harness itself.
package exampleplugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/gauntlet/internal/judge"
	"github.com/harrison/gauntlet/internal/models"
	"github.com/harrison/gauntlet/internal/plugin"
	"github.com/harrison/gauntlet/internal/suite"
)

// Input is one test case's payload: a natural-language request for a query.
type Input struct {
	UserQuery string `yaml:"user_query"`
}

// Output is the assistant's answer for one case.
type Output struct {
	Query       string
	Explanation string
}

// Evaluation is the column set both evaluators produce. The judge returns it
// as JSON; the static checker fills it from its check results.
type Evaluation struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Columns renders the evaluation for report output.
func (e Evaluation) Columns() map[string]string {
	return map[string]string{
		"score":     fmt.Sprintf("%.1f", e.Score),
		"reasoning": e.Reasoning,
	}
}

// Row is one case's finalized report row. Scores live on a 1 to 5 scale.
type Row struct {
	ID           int
	UserQuery    string
	Query        string
	LLMScore     float64
	LLMReasoning string
	StaticScore  float64
}

// Identifier returns the test case ID.
func (r *Row) Identifier() int { return r.ID }

// FinalScore is the mean of the judge score and the static score.
func (r *Row) FinalScore() float64 {
	return (r.LLMScore + r.StaticScore) / 2
}

// ScoreRange reports the 1 to 5 scale the evaluators score on.
func (r *Row) ScoreRange() models.ScoreRange {
	return models.ScoreRange{Min: 1, Max: 5}
}

// Columns renders the row for publishers.
func (r *Row) Columns() map[string]string {
	return map[string]string{
		"user_query":    r.UserQuery,
		"query":         r.Query,
		"llm_score":     fmt.Sprintf("%.1f", r.LLMScore),
		"llm_reasoning": r.LLMReasoning,
		"static_score":  fmt.Sprintf("%.1f", r.StaticScore),
	}
}

// Options configures the plugin's hook set.
type Options struct {
	// CasesPath is the YAML test suite file.
	CasesPath string

	// ResourcesDir is handed to RunFeature through the pipeline.
	ResourcesDir string

	// Judge evaluates outputs when set. Nil falls back to the offline
	// heuristic evaluator so the suite runs without an API key.
	Judge *judge.Judge
}

// New builds the plugin's hook set.
func New(opts Options) plugin.Hooks[Input, Output, Evaluation, *Row] {
	return plugin.Hooks[Input, Output, Evaluation, *Row]{
		Name: "sql-assistant",

		GetTestCases: func() ([]*models.TestCase[Input], error) {
			return suite.LoadFile[Input](opts.CasesPath)
		},

		RunFeature: func(ctx context.Context, tc *models.TestCase[Input], resourcesDir string) (Output, error) {
			if err := ctx.Err(); err != nil {
				return Output{}, err
			}
			return generateQuery(tc.Input.UserQuery), nil
		},

		RunStaticTests: func(tc *models.TestCase[Input], output Output) (Evaluation, error) {
			return staticEvaluate(output), nil
		},

		LLMEvaluate: func(ctx context.Context, tc *models.TestCase[Input], output Output) (Evaluation, error) {
			if opts.Judge == nil {
				return heuristicEvaluate(tc.Input.UserQuery, output), nil
			}
			prompt := judge.TaskPrompt(tc.Input.UserQuery, formatOutput(output), tc.Expected)
			content, err := opts.Judge.Evaluate(ctx, prompt)
			if err != nil {
				return Evaluation{}, fmt.Errorf("judge evaluation: %w", err)
			}
			return judge.DecodeColumns[Evaluation](content)
		},

		ResourcesDir: func() string {
			return opts.ResourcesDir
		},

		NewRow: func(tc *models.TestCase[Input], output Output, llmCols, staticCols Evaluation) (*Row, error) {
			return &Row{
				ID:           tc.ID,
				UserQuery:    tc.Input.UserQuery,
				Query:        output.Query,
				LLMScore:     llmCols.Score,
				LLMReasoning: llmCols.Reasoning,
				StaticScore:  staticCols.Score,
			}, nil
		},
	}
}

// generateQuery is a deterministic stand-in for a real model call. It maps a
// few request shapes to canned SQL so the suite is reproducible offline.
func generateQuery(userQuery string) Output {
	q := strings.ToLower(userQuery)

	table := "records"
	for _, candidate := range []string{"users", "orders", "products", "sessions", "events"} {
		if strings.Contains(q, candidate) {
			table = candidate
			break
		}
	}

	switch {
	case strings.Contains(q, "count") || strings.Contains(q, "how many"):
		return Output{
			Query:       fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
			Explanation: fmt.Sprintf("Counts all rows in the %s table.", table),
		}
	case strings.Contains(q, "recent") || strings.Contains(q, "latest"):
		return Output{
			Query:       fmt.Sprintf("SELECT * FROM %s ORDER BY created_at DESC LIMIT 10", table),
			Explanation: fmt.Sprintf("Returns the ten most recently created rows from %s.", table),
		}
	case strings.Contains(q, "delete") || strings.Contains(q, "drop"):
		// Destructive requests are refused rather than translated.
		return Output{
			Query:       "",
			Explanation: "Refusing to generate a destructive statement.",
		}
	default:
		return Output{
			Query:       fmt.Sprintf("SELECT * FROM %s", table),
			Explanation: fmt.Sprintf("Returns every row from the %s table.", table),
		}
	}
}

// staticEvaluate scores an output on the 1 to 5 scale from deterministic
// checks. Each failed check costs one point.
func staticEvaluate(output Output) Evaluation {
	var failed []string

	if output.Query == "" {
		failed = append(failed, "query is empty")
	}
	if output.Query != "" && !strings.HasPrefix(strings.ToUpper(output.Query), "SELECT") {
		failed = append(failed, "query is not a SELECT statement")
	}
	if output.Query != "" && !strings.Contains(strings.ToUpper(output.Query), "FROM") {
		failed = append(failed, "query has no FROM clause")
	}
	if output.Explanation == "" {
		failed = append(failed, "explanation is missing")
	}

	score := float64(5 - len(failed))
	if score < 1 {
		score = 1
	}

	reasoning := "all static checks passed"
	if len(failed) > 0 {
		reasoning = "failed checks: " + strings.Join(failed, "; ")
	}
	return Evaluation{Score: score, Reasoning: reasoning}
}

// heuristicEvaluate approximates the judge when no client is configured. It
// rewards query terms that echo the request so scores still vary per case.
func heuristicEvaluate(userQuery string, output Output) Evaluation {
	if output.Query == "" {
		return Evaluation{Score: 1, Reasoning: "no query was produced"}
	}

	score := 3.0
	q := strings.ToLower(output.Query)
	words := strings.Fields(strings.ToLower(userQuery))
	matched := 0
	for _, w := range words {
		if len(w) >= 4 && strings.Contains(q, w) {
			matched++
		}
	}
	if matched > 0 {
		score++
	}
	if output.Explanation != "" {
		score++
	}
	if score > 5 {
		score = 5
	}
	return Evaluation{
		Score:     score,
		Reasoning: fmt.Sprintf("heuristic evaluation, %d request terms matched", matched),
	}
}

func formatOutput(output Output) string {
	if output.Query == "" {
		return output.Explanation
	}
	return fmt.Sprintf("%s\n\n%s", output.Query, output.Explanation)
}
