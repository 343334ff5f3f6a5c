// Package cursor tracks per-(entity, direction) sync watermarks: the
// timestamp of the last fully successful run component. Cursors advance
// monotonically and only after a run finishes with zero unresolved
// failures, so a crashed or partial run leaves the previous watermark in
// place and the next run safely re-covers the same window.
package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/record"
)

// Direction distinguishes the two watermark streams per entity.
type Direction string

const (
	DirectionPull Direction = "pull"
	DirectionPush Direction = "push"
)

// ErrInvalidDirection is returned for directions other than pull/push.
var ErrInvalidDirection = errors.New("invalid cursor direction")

// Entry is one stored watermark, as listed for operators.
type Entry struct {
	Entity      string    `json:"entity"`
	Direction   Direction `json:"direction"`
	LastSuccess time.Time `json:"last_success"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store is the durable watermark store. Writes are atomic single-key
// upserts; Set never regresses a stored timestamp.
type Store interface {
	// Get returns the watermark for (entity, direction). The boolean is
	// false when no successful run has completed yet.
	Get(ctx context.Context, entity string, dir Direction) (time.Time, bool, error)

	// Set advances the watermark. A timestamp at or before the stored
	// value is a no-op, keeping the cursor monotonic.
	Set(ctx context.Context, entity string, dir Direction, ts time.Time) error

	// Reset deletes the watermark so the next run is a full sync.
	Reset(ctx context.Context, entity string, dir Direction) error

	// List returns all stored watermarks ordered by entity then direction.
	List(ctx context.Context) ([]Entry, error)
}

// SQLiteStore persists cursors in the engine database's sync_cursors
// table (created by the embedded migrations).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already-migrated database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var _ Store = (*SQLiteStore)(nil)

func validDirection(dir Direction) error {
	switch dir {
	case DirectionPull, DirectionPush:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, entity string, dir Direction) (time.Time, bool, error) {
	if err := validDirection(dir); err != nil {
		return time.Time{}, false, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_success FROM sync_cursors WHERE entity = ? AND direction = ?
	`, entity, string(dir)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get cursor %s/%s: %w", entity, dir, err)
	}

	ts, err := record.ParseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cursor %s/%s: %w", entity, dir, err)
	}
	return ts, true, nil
}

// Set implements Store. The WHERE guard on the upsert makes the
// monotonicity check and the write a single atomic statement.
func (s *SQLiteStore) Set(ctx context.Context, entity string, dir Direction, ts time.Time) error {
	if err := validDirection(dir); err != nil {
		return err
	}
	if ts.IsZero() {
		return fmt.Errorf("set cursor %s/%s: zero timestamp", entity, dir)
	}

	// last_success is compared as a string by the upsert guard, so it is
	// stored fixed-width; RFC3339Nano's trimmed fractions do not sort in
	// time order.
	now := record.FormatTimeKey(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (entity, direction, last_success, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity, direction) DO UPDATE SET
			last_success = excluded.last_success,
			updated_at = excluded.updated_at
		WHERE excluded.last_success > sync_cursors.last_success
	`, entity, string(dir), record.FormatTimeKey(ts), now)
	if err != nil {
		return fmt.Errorf("set cursor %s/%s: %w", entity, dir, err)
	}
	return nil
}

// Reset implements Store.
func (s *SQLiteStore) Reset(ctx context.Context, entity string, dir Direction) error {
	if err := validDirection(dir); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_cursors WHERE entity = ? AND direction = ?
	`, entity, string(dir))
	if err != nil {
		return fmt.Errorf("reset cursor %s/%s: %w", entity, dir, err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity, direction, last_success, updated_at
		FROM sync_cursors
		ORDER BY entity, direction
	`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var dir, lastSuccess, updatedAt string
		if err := rows.Scan(&e.Entity, &dir, &lastSuccess, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cursor row: %w", err)
		}
		e.Direction = Direction(dir)
		if e.LastSuccess, err = record.ParseTime(lastSuccess); err != nil {
			return nil, fmt.Errorf("cursor %s/%s: %w", e.Entity, e.Direction, err)
		}
		if e.UpdatedAt, err = record.ParseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("cursor %s/%s: %w", e.Entity, e.Direction, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
