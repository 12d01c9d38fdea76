package publish

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/gauntlet/internal/models"
)

func TestNewStore(t *testing.T) {
	tests := []struct {
		name   string
		dbPath func(t *testing.T) string
	}{
		{
			name:   "creates database file",
			dbPath: func(t *testing.T) string { return filepath.Join(t.TempDir(), "results.db") },
		},
		{
			name:   "in-memory database",
			dbPath: func(t *testing.T) string { return ":memory:" },
		},
		{
			name: "creates parent directories",
			dbPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nested", "dir", "results.db")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath(t))
			require.NoError(t, err)
			require.NotNil(t, store)
			defer store.Close()

			count, err := store.RunCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	}
}

func TestStoreSaveRun(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	rows := []models.Row{
		&publishRow{id: 1, score: 4.5, cols: map[string]string{"query": "SELECT 1"}},
		&publishRow{id: 2, score: 2.0, cols: map[string]string{"query": "SELECT 2"}},
	}

	runID, err := store.SaveRun(ctx, 0, rows)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	// A second run gets its own ID.
	secondID, err := store.SaveRun(ctx, 1, rows)
	require.NoError(t, err)
	assert.NotEqual(t, runID, secondID)

	count, err := store.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	scores, err := store.ScoresForCase(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{4.5, 4.5}, scores)

	scores, err = store.ScoresForCase(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestStorePublishSkipsEmptyRuns(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Publish(ctx, nil, 0))

	count, err := store.RunCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
