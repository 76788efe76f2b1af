// Package reportstore persists analysis results and their follow-up tasks in
// SQLite. Reports are stored as opaque JSON blobs keyed by source file and
// analysis kind; the store never interprets the result shape.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/expovision/marketpulse/internal/analyze"
)

var ErrNotFound = errors.New("report not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	source_file_id TEXT NOT NULL,
	kind           TEXT NOT NULL,
	marketplace    TEXT NOT NULL DEFAULT '',
	result         TEXT NOT NULL,
	run_mode       TEXT NOT NULL DEFAULT 'complete',
	created_at     TEXT NOT NULL,
	PRIMARY KEY (source_file_id, kind)
);

CREATE TABLE IF NOT EXISTS tasks (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	source_file_id TEXT NOT NULL,
	kind           TEXT NOT NULL,
	title          TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS tasks_by_report ON tasks (source_file_id, kind);
`

type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Report is one stored analysis run.
type Report struct {
	SourceFileID string    `db:"source_file_id"`
	Kind         string    `db:"kind"`
	Marketplace  string    `db:"marketplace"`
	Result       string    `db:"result"`
	RunMode      string    `db:"run_mode"`
	CreatedAt    time.Time `db:"-"`
	CreatedRaw   string    `db:"created_at"`
}

type Task struct {
	ID           int64  `db:"id"`
	SourceFileID string `db:"source_file_id"`
	Kind         string `db:"kind"`
	Title        string `db:"title"`
	Status       string `db:"status"`
	CreatedRaw   string `db:"created_at"`
}

const (
	TaskStatusCompleted = "completed"
	TaskStatusPending   = "pending"
)

// Save upserts the report for (sourceFileID, kind) and replaces its task
// rows with the result's completed/pending task lists.
func (s *Store) Save(ctx context.Context, sourceFileID, marketplace string, kind analyze.Kind, result analyze.AnalysisResult, meta analyze.RunMetadata) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports (source_file_id, kind, marketplace, result, run_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_file_id, kind) DO UPDATE SET
			marketplace = excluded.marketplace,
			result      = excluded.result,
			run_mode    = excluded.run_mode,
			created_at  = excluded.created_at`,
		sourceFileID, string(kind), marketplace, string(blob), string(meta.Mode), now)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE source_file_id = ? AND kind = ?`, sourceFileID, string(kind)); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for _, title := range result.CompletedTasks {
		if err := insertTask(ctx, tx, sourceFileID, kind, title, TaskStatusCompleted, now); err != nil {
			return err
		}
	}
	for _, title := range result.PendingTasks {
		if err := insertTask(ctx, tx, sourceFileID, kind, title, TaskStatusPending, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTask(ctx context.Context, tx *sqlx.Tx, sourceFileID string, kind analyze.Kind, title, status, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (source_file_id, kind, title, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sourceFileID, string(kind), title, status, now)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// Get loads the stored result for (sourceFileID, kind).
func (s *Store) Get(ctx context.Context, sourceFileID string, kind analyze.Kind) (analyze.AnalysisResult, error) {
	var row Report
	err := s.db.GetContext(ctx, &row, `
		SELECT source_file_id, kind, marketplace, result, run_mode, created_at
		FROM reports WHERE source_file_id = ? AND kind = ?`,
		sourceFileID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return analyze.AnalysisResult{}, ErrNotFound
	}
	if err != nil {
		return analyze.AnalysisResult{}, fmt.Errorf("load report: %w", err)
	}
	var result analyze.AnalysisResult
	if err := json.Unmarshal([]byte(row.Result), &result); err != nil {
		return analyze.AnalysisResult{}, fmt.Errorf("decode report: %w", err)
	}
	return result, nil
}

// GetReport loads the raw stored row, run mode and timestamp included.
func (s *Store) GetReport(ctx context.Context, sourceFileID string, kind analyze.Kind) (Report, error) {
	var row Report
	err := s.db.GetContext(ctx, &row, `
		SELECT source_file_id, kind, marketplace, result, run_mode, created_at
		FROM reports WHERE source_file_id = ? AND kind = ?`,
		sourceFileID, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("load report: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339, row.CreatedRaw); err == nil {
		row.CreatedAt = ts
	}
	return row, nil
}

// List returns all stored reports for a source file, newest first.
func (s *Store) List(ctx context.Context, sourceFileID string) ([]Report, error) {
	var rows []Report
	err := s.db.SelectContext(ctx, &rows, `
		SELECT source_file_id, kind, marketplace, result, run_mode, created_at
		FROM reports WHERE source_file_id = ? ORDER BY created_at DESC, kind`,
		sourceFileID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	for i := range rows {
		if ts, err := time.Parse(time.RFC3339, rows[i].CreatedRaw); err == nil {
			rows[i].CreatedAt = ts
		}
	}
	return rows, nil
}

// Tasks returns the task rows attached to a report.
func (s *Store) Tasks(ctx context.Context, sourceFileID string, kind analyze.Kind) ([]Task, error) {
	var rows []Task
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, source_file_id, kind, title, status, created_at
		FROM tasks WHERE source_file_id = ? AND kind = ? ORDER BY id`,
		sourceFileID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return rows, nil
}
