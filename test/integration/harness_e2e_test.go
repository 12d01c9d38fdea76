package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/gauntlet/internal/exampleplugin"
	"github.com/harrison/gauntlet/internal/models"
	"github.com/harrison/gauntlet/internal/plugin"
	"github.com/harrison/gauntlet/internal/publish"
	"github.com/harrison/gauntlet/internal/runner"
)

const e2eSuite = `- id: 1
  name: count users
  input:
    user_query: how many users signed up
- id: 2
  name: recent orders
  input:
    user_query: show the most recent orders
`

// TestE2E_CrossRunPersistence verifies scores accumulate in the results store
// across separate harness invocations sharing one database.
func TestE2E_CrossRunPersistence(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "results.db")
	suitePath := filepath.Join(tmpDir, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(e2eSuite), 0644))

	runSuite := func(runIndex int) {
		store, err := publish.NewStore(dbPath)
		require.NoError(t, err)
		defer store.Close()

		registry := plugin.NewRegistry[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]()
		registry.Register(exampleplugin.New(exampleplugin.Options{
			CasesPath:    suitePath,
			ResourcesDir: tmpDir,
		}))
		registry.Register(plugin.Hooks[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]{
			Name: "results-store",
			PublishResults: func(ctx context.Context, rows []*exampleplugin.Row, runIndex int) error {
				out := make([]models.Row, 0, len(rows))
				for _, r := range rows {
					out = append(out, r)
				}
				return store.Publish(ctx, out, runIndex)
			},
		})

		resolved, err := registry.Resolve()
		require.NoError(t, err)
		cases, err := resolved.GetTestCases()
		require.NoError(t, err)

		svc := runner.NewService(cases, resolved, nil, nil, false)
		require.NoError(t, svc.RunTests(context.Background()))
		require.NoError(t, svc.PublishResults(context.Background(), runIndex))
	}

	// Two invocations, each with its own store handle.
	runSuite(0)
	runSuite(1)

	store, err := publish.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	count, err := store.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, caseID := range []int{1, 2} {
		scores, err := store.ScoresForCase(ctx, caseID)
		require.NoError(t, err)
		require.Len(t, scores, 2, "case %d should have one score per run", caseID)
		// The offline evaluators are deterministic across runs.
		assert.Equal(t, scores[0], scores[1])
	}
}

// TestE2E_CSVAndStoreBroadcast verifies both default publishers receive the
// same run through the broadcast hook.
func TestE2E_CSVAndStoreBroadcast(t *testing.T) {
	tmpDir := t.TempDir()
	suitePath := filepath.Join(tmpDir, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(e2eSuite), 0644))

	store, err := publish.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	writer := publish.NewCSVWriter(tmpDir, "report")

	asRows := func(rows []*exampleplugin.Row) []models.Row {
		out := make([]models.Row, 0, len(rows))
		for _, r := range rows {
			out = append(out, r)
		}
		return out
	}

	registry := plugin.NewRegistry[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]()
	registry.Register(exampleplugin.New(exampleplugin.Options{
		CasesPath:    suitePath,
		ResourcesDir: tmpDir,
	}))
	registry.Register(plugin.Hooks[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]{
		Name: "csv-report",
		PublishResults: func(ctx context.Context, rows []*exampleplugin.Row, runIndex int) error {
			return writer.Publish(ctx, asRows(rows), runIndex)
		},
	})
	registry.Register(plugin.Hooks[exampleplugin.Input, exampleplugin.Output, exampleplugin.Evaluation, *exampleplugin.Row]{
		Name: "results-store",
		PublishResults: func(ctx context.Context, rows []*exampleplugin.Row, runIndex int) error {
			return store.Publish(ctx, asRows(rows), runIndex)
		},
	})

	resolved, err := registry.Resolve()
	require.NoError(t, err)
	cases, err := resolved.GetTestCases()
	require.NoError(t, err)

	svc := runner.NewService(cases, resolved, nil, nil, false)
	require.NoError(t, svc.RunTests(context.Background()))
	require.NoError(t, svc.PublishResults(context.Background(), 0))

	_, statErr := os.Stat(filepath.Join(tmpDir, "report_run_0.csv"))
	assert.NoError(t, statErr)

	count, err := store.RunCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
