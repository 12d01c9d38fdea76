package publish

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/gauntlet/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store persists run results in a SQLite database so scores can be compared
// across harness invocations, not just across the runs of one invocation.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the results database and initializes its
// schema. Use ":memory:" for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one run's rows under a fresh run ID and returns that ID.
// Row column sets are stored as JSON blobs.
func (s *Store) SaveRun(ctx context.Context, runIndex int, rows []models.Row) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, run_index) VALUES (?, ?)", runID, runIndex); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, row := range rows {
		columns, err := json.Marshal(row.Columns())
		if err != nil {
			return "", fmt.Errorf("marshal columns for case %d: %w", row.Identifier(), err)
		}

		r := row.ScoreRange()
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO results (run_id, case_id, final_score, score_min, score_max, columns) VALUES (?, ?, ?, ?, ?, ?)",
			runID, row.Identifier(), row.FinalScore(), r.Min, r.Max, string(columns)); err != nil {
			return "", fmt.Errorf("insert result for case %d: %w", row.Identifier(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// Publish implements the broadcast publisher hook shape.
func (s *Store) Publish(ctx context.Context, rows []models.Row, runIndex int) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.SaveRun(ctx, runIndex, rows)
	return err
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}

// ScoresForCase returns every recorded final score for a test case, oldest
// run first.
func (s *Store) ScoresForCase(ctx context.Context, caseID int) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT r.final_score FROM results r JOIN runs ON runs.id = r.run_id WHERE r.case_id = ? ORDER BY runs.created_at, runs.run_index",
		caseID)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}
