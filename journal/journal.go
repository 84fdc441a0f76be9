// Package journal records every acquisition attempt of a run in SQLite.
// A nil *Journal is valid and records nothing.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Attempt struct {
	Source   string
	Key      string
	URL      string
	State    string
	Duration time.Duration
}

type Journal struct {
	db    *sql.DB
	runID string
}

// Open creates or opens the database at path. An empty path disables the
// journal and returns nil.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}
	return &Journal{db: db, runID: uuid.NewString()}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS attempts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		source      TEXT NOT NULL,
		event_key   TEXT NOT NULL,
		state       TEXT NOT NULL,
		url         TEXT,
		duration_ms INTEGER NOT NULL,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS attempts_run ON attempts(run_id)`)
	return err
}

func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

func (j *Journal) Record(ctx context.Context, a Attempt) error {
	if j == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO attempts (run_id, source, event_key, state, url, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.runID, a.Source, a.Key, a.State, nullable(a.URL), a.Duration.Milliseconds(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: record %q: %w", a.Key, err)
	}
	return nil
}

// Summary counts this run's attempts by state.
func (j *Journal) Summary(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	if j == nil {
		return out, nil
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM attempts WHERE run_id = ? GROUP BY state`, j.runID)
	if err != nil {
		return nil, fmt.Errorf("journal: summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out[state] = n
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
