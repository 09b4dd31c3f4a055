package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    dir        TEXT NOT NULL,
    model      TEXT NOT NULL,
    task       TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    metrics    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// Run is one row of the run index.
type Run struct {
	ID        string             `json:"id"`
	Dir       string             `json:"dir"`
	Model     string             `json:"model"`
	Task      string             `json:"task"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Index is a SQLite catalog of past training runs, used by the API to list
// them without walking the artifact tree. The artifacts themselves stay on
// the filesystem; the index only holds pointers and summary metrics.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the run index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open index %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("artifact: apply index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Record inserts one completed run.
func (ix *Index) Record(ctx context.Context, run Run) error {
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("artifact: marshal metrics: %w", err)
	}
	_, err = ix.db.ExecContext(ctx,
		`INSERT INTO runs (id, dir, model, task, created_at, metrics) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dir, run.Model, run.Task, run.CreatedAt.UTC(), string(metrics),
	)
	if err != nil {
		return fmt.Errorf("artifact: record run %s: %w", run.ID, err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (ix *Index) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, dir, model, task, created_at, metrics FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("artifact: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var metrics string
		if err := rows.Scan(&r.ID, &r.Dir, &r.Model, &r.Task, &r.CreatedAt, &metrics); err != nil {
			return nil, fmt.Errorf("artifact: scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
			r.Metrics = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}
