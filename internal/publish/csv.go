// Package publish provides the default results publishers: a per-run CSV
// report writer and a SQLite results store. Both implement the broadcast
// PublishResults hook shape and can run side by side.
package publish

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/harrison/gauntlet/internal/filelock"
	"github.com/harrison/gauntlet/internal/models"
)

// CSVWriter writes one report file per run into a destination directory.
// Concurrent runs share the directory, so writes are serialized with a
// directory-level lock and land atomically.
type CSVWriter struct {
	dir        string
	reportName string
	lock       *filelock.FileLock
}

// NewCSVWriter creates a writer producing <reportName>_run_<idx>.csv files
// under dir.
func NewCSVWriter(dir, reportName string) *CSVWriter {
	return &CSVWriter{
		dir:        dir,
		reportName: reportName,
		lock:       filelock.NewFileLock(filepath.Join(dir, "."+reportName+".lock")),
	}
}

// Publish renders the rows as CSV and writes the run's report file. Rows
// arrive already sorted by identifier. A run without rows produces no file.
func (w *CSVWriter) Publish(ctx context.Context, rows []models.Row, runIndex int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	data, err := renderCSV(rows)
	if err != nil {
		return err
	}

	// The lock file lives inside the destination directory, so the
	// directory must exist before the lock can be acquired.
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report dir %s: %w", w.dir, err)
	}

	if err := w.lock.Lock(); err != nil {
		return err
	}
	defer w.lock.Unlock()

	path := filepath.Join(w.dir, fmt.Sprintf("%s_run_%d.csv", w.reportName, runIndex))
	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// renderCSV builds the report: identifier and final_score first, then the
// union of row column keys in sorted order. Rows missing a key render an
// empty cell.
func renderCSV(rows []models.Row) ([]byte, error) {
	keySet := make(map[string]bool)
	for _, row := range rows {
		for k := range row.Columns() {
			keySet[k] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	header := append([]string{"identifier", "final_score"}, keys...)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			fmt.Sprintf("%d", row.Identifier()),
			fmt.Sprintf("%.2f", row.FinalScore()),
		}
		cols := row.Columns()
		for _, k := range keys {
			record = append(record, cols[k])
		}
		if err := cw.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
