// Package ledger records batch runs in a local SQLite file so repeated
// processing of the same invoice folder stays auditable.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	phase       TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	invoices    INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
`

// Run is one recorded pipeline phase execution.
type Run struct {
	RunID      string
	Phase      string
	StartedAt  time.Time
	FinishedAt time.Time
	Invoices   int
	Succeeded  int
	Failed     int
}

// Ledger wraps the runs database.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger at path and ensures the schema.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, logger: logger}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one run row.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, phase, started_at, finished_at, invoices, succeeded, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.Phase,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Invoices,
		run.Succeeded,
		run.Failed,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	l.logger.Info("ledger.run.recorded",
		"run_id", run.RunID,
		"phase", run.Phase,
		"invoices", run.Invoices,
		"succeeded", run.Succeeded,
		"failed", run.Failed,
	)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT run_id, phase, started_at, finished_at, invoices, succeeded, failed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Phase, &started, &finished, &r.Invoices, &r.Succeeded, &r.Failed); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			r.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339, finished); err == nil {
			r.FinishedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
