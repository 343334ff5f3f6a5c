package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/record"
)

// RunRecord is one persisted sync run. Report holds the run's full JSON
// report; this layer treats it as opaque.
type RunRecord struct {
	ID         string
	Entity     string
	Mode       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Report     []byte
}

// SaveRun persists a finished run's report for later inspection.
func (s *Store) SaveRun(ctx context.Context, run RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, entity, mode, dry_run, started_at, finished_at, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Entity, run.Mode, run.DryRun,
		record.FormatTime(run.StartedAt), record.FormatTime(run.FinishedAt),
		string(run.Report))
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// LatestRun returns the most recent run for an entity, or for any entity
// when entity is empty.
func (s *Store) LatestRun(ctx context.Context, entity string) (*RunRecord, error) {
	query := `
		SELECT id, entity, mode, dry_run, started_at, finished_at, report
		FROM sync_runs`
	var args []any
	if entity != "" {
		query += " WHERE entity = ?"
		args = append(args, entity)
	}
	query += " ORDER BY started_at DESC LIMIT 1"

	var run RunRecord
	var started, finished, report string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&run.ID, &run.Entity, &run.Mode, &run.DryRun, &started, &finished, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}

	if run.StartedAt, err = record.ParseTime(started); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.FinishedAt, err = record.ParseTime(finished); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.Report = []byte(report)
	return &run, nil
}

// ListRuns returns recent runs newest first, up to limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity, mode, dry_run, started_at, finished_at, report
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var started, finished, report string
		if err := rows.Scan(&run.ID, &run.Entity, &run.Mode, &run.DryRun, &started, &finished, &report); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = record.ParseTime(started); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		if run.FinishedAt, err = record.ParseTime(finished); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		run.Report = []byte(report)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
