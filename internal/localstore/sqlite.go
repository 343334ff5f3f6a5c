// Package localstore is the SQLite-backed system of record. Entity tables
// are derived from the schema registry, so adding an entity to the
// catalog is enough to get its table, ID-pair listing, incremental query,
// and batch upsert. Engine-owned tables (cursors, run history) come from
// the embedded migrations.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/idmap"
	"github.com/hyperengineering/fieldbridge/internal/record"
	"github.com/hyperengineering/fieldbridge/internal/schema"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the system-of-record database.
type Store struct {
	db   *sql.DB
	path string
	reg  *schema.Registry
}

// Open opens (creating if needed) the database at dbPath, applies
// pragmas, runs migrations, and creates entity tables for every schema in
// the registry.
func Open(dbPath string, reg *schema.Registry) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, path: dbPath, reg: reg}
	if err := s.ensureEntityTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for collaborators sharing the engine database
// (cursor store, run history).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path (snapshot uploads copy it).
func (s *Store) Path() string {
	return s.path
}

// SnapshotTo writes a consistent point-in-time copy of the database to
// dest using VACUUM INTO, safe against concurrent writers under WAL.
func (s *Store) SnapshotTo(ctx context.Context, dest string) error {
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear snapshot destination: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return nil
}

// ensureEntityTables creates one table per registered entity. The
// registry is the single source of truth for entity shapes, so this is
// DDL generation rather than handwritten migrations.
func (s *Store) ensureEntityTables() error {
	for _, name := range s.reg.Names() {
		sch, err := s.reg.Get(name)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", sch.Name)
		b.WriteString("    id TEXT PRIMARY KEY,\n")
		b.WriteString("    external_id TEXT UNIQUE,\n")
		b.WriteString("    external_modified_at TEXT,\n")
		for _, f := range sch.Fields {
			fmt.Fprintf(&b, "    %s %s,\n", f.Local, columnType(f.Kind))
		}
		for _, r := range sch.Relations {
			fmt.Fprintf(&b, "    %s TEXT,\n", r.Local)
		}
		b.WriteString("    created_at TEXT NOT NULL,\n")
		b.WriteString("    updated_at TEXT NOT NULL\n)")

		if _, err := s.db.Exec(b.String()); err != nil {
			return fmt.Errorf("create table %s: %w", sch.Name, err)
		}

		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s(updated_at)", sch.Name, sch.Name)
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index on %s: %w", sch.Name, err)
		}
	}
	return nil
}

func columnType(k schema.Kind) string {
	switch k {
	case schema.KindFloat:
		return "REAL"
	case schema.KindBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// Row is one system-of-record row with its sync bookkeeping columns.
type Row struct {
	ID                 string
	ExternalID         string // empty when unlinked
	ExternalModifiedAt time.Time
	UpdatedAt          time.Time
	Record             record.Record
}

// ListIDPairs implements idmap.PairLister.
func (s *Store) ListIDPairs(ctx context.Context, entity string) ([]idmap.Pair, error) {
	if _, err := s.reg.Get(entity); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, COALESCE(external_id, '') FROM %s", entity))
	if err != nil {
		return nil, fmt.Errorf("list id pairs for %s: %w", entity, err)
	}
	defer rows.Close()

	var pairs []idmap.Pair
	for rows.Next() {
		var p idmap.Pair
		if err := rows.Scan(&p.LocalID, &p.ExternalID); err != nil {
			return nil, fmt.Errorf("scan id pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ListUpdatedAt returns every row's updated_at keyed by local ID, in one
// pass alongside the ID-pair load, so conflict gating never reads rows
// one at a time mid-run.
func (s *Store) ListUpdatedAt(ctx context.Context, entity string) (map[string]time.Time, error) {
	if _, err := s.reg.Get(entity); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, updated_at FROM %s", entity))
	if err != nil {
		return nil, fmt.Errorf("list updated_at for %s: %w", entity, err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan updated_at: %w", err)
		}
		ts, err := record.ParseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("row %s/%s: %w", entity, id, err)
		}
		out[id] = ts
	}
	return out, rows.Err()
}

// QueryUpdatedSince returns rows modified after since, oldest first. A nil
// since means every row (full resync); limit <= 0 means no limit.
func (s *Store) QueryUpdatedSince(ctx context.Context, entity string, since *time.Time, limit int) ([]Row, error) {
	sch, err := s.reg.Get(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectColumns(sch), ", "), entity)
	var args []any
	if since != nil {
		query += " WHERE updated_at > ?"
		args = append(args, record.FormatTimeKey(*since))
	}
	query += " ORDER BY updated_at ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row, err := scanRow(sch, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// Get returns a single row by local ID.
func (s *Store) Get(ctx context.Context, entity, id string) (*Row, error) {
	sch, err := s.reg.Get(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(selectColumns(sch), ", "), entity)
	row, err := scanRow(sch, s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetByExternalID returns a single row by its external identifier.
func (s *Store) GetByExternalID(ctx context.Context, entity, externalID string) (*Row, error) {
	sch, err := s.reg.Get(entity)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE external_id = ?", strings.Join(selectColumns(sch), ", "), entity)
	row, err := scanRow(sch, s.db.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Count returns the number of rows for an entity.
func (s *Store) Count(ctx context.Context, entity string) (int, error) {
	if _, err := s.reg.Get(entity); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", entity)).Scan(&n)
	return n, err
}

// SetExternalID links a locally created row to its platform-assigned ID
// after a successful push create, closing the ID-mapping loop.
func (s *Store) SetExternalID(ctx context.Context, entity, localID, externalID string) error {
	if _, err := s.reg.Get(entity); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET external_id = ? WHERE id = ?", entity),
		externalID, localID)
	if err != nil {
		return fmt.Errorf("link %s %s: %w", entity, localID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link %s %s: %w", entity, localID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Upsert writes one row. Only fields present in the record are written;
// absent fields keep their stored value, present-but-null fields clear.
func (s *Store) Upsert(ctx context.Context, entity string, row Row) error {
	sch, err := s.reg.Get(entity)
	if err != nil {
		return err
	}
	return s.upsertRow(ctx, sch, row)
}

func (s *Store) upsertRow(ctx context.Context, sch schema.Schema, row Row) error {
	if row.ID == "" {
		return fmt.Errorf("upsert %s: missing local id", sch.Name)
	}

	// updated_at is compared as a string by QueryUpdatedSince, so it is
	// stored fixed-width. A caller-supplied time (the source-side
	// modification time on pull) takes precedence over the wall clock so
	// applying a pulled record does not count as a local edit.
	updated := row.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	cols := []string{"id", "created_at", "updated_at"}
	args := []any{row.ID, record.FormatTimeKey(time.Now()), record.FormatTimeKey(updated)}

	if row.ExternalID != "" {
		cols = append(cols, "external_id")
		args = append(args, row.ExternalID)
	}
	if !row.ExternalModifiedAt.IsZero() {
		cols = append(cols, "external_modified_at")
		args = append(args, record.FormatTimeKey(row.ExternalModifiedAt))
	}

	declared := make(map[string]bool)
	for _, c := range sch.LocalColumns() {
		declared[c] = true
	}
	for field, value := range row.Record {
		if !declared[field] {
			return fmt.Errorf("upsert %s %s: undeclared column %q", sch.Name, row.ID, field)
		}
		cols = append(cols, field)
		args = append(args, sqlValue(value))
	}

	placeholders := make([]string, len(cols))
	updates := make([]string, 0, len(cols))
	for i, col := range cols {
		placeholders[i] = "?"
		// created_at is set once; everything else follows the insert.
		if col != "id" && col != "created_at" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		sch.Name,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", sch.Name, row.ID, err)
	}
	return nil
}

func sqlValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return record.FormatTime(val)
	default:
		return v
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func selectColumns(sch schema.Schema) []string {
	cols := []string{"id", "COALESCE(external_id, '')", "external_modified_at", "updated_at"}
	return append(cols, sch.LocalColumns()...)
}

func scanRow(sch schema.Schema, scanner rowScanner) (*Row, error) {
	declared := sch.LocalColumns()
	dest := make([]any, 4+len(declared))

	var extModified, updatedAt sql.NullString
	var row Row
	dest[0] = &row.ID
	dest[1] = &row.ExternalID
	dest[2] = &extModified
	dest[3] = &updatedAt
	values := make([]any, len(declared))
	for i := range values {
		dest[4+i] = &values[i]
	}

	if err := scanner.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan %s row: %w", sch.Name, err)
	}

	var err error
	if extModified.Valid && extModified.String != "" {
		if row.ExternalModifiedAt, err = record.ParseTime(extModified.String); err != nil {
			return nil, fmt.Errorf("%s %s: %w", sch.Name, row.ID, err)
		}
	}
	if updatedAt.Valid {
		if row.UpdatedAt, err = record.ParseTime(updatedAt.String); err != nil {
			return nil, fmt.Errorf("%s %s: %w", sch.Name, row.ID, err)
		}
	}

	row.Record = make(record.Record, len(declared))
	kinds := columnKinds(sch)
	for i, col := range declared {
		if values[i] == nil {
			continue // NULL column: field stays unset on read
		}
		v, err := decodeValue(kinds[col], values[i])
		if err != nil {
			return nil, fmt.Errorf("%s %s column %s: %w", sch.Name, row.ID, col, err)
		}
		row.Record[col] = v
	}
	return &row, nil
}

func columnKinds(sch schema.Schema) map[string]schema.Kind {
	kinds := make(map[string]schema.Kind, len(sch.Fields)+len(sch.Relations))
	for _, f := range sch.Fields {
		kinds[f.Local] = f.Kind
	}
	for _, r := range sch.Relations {
		kinds[r.Local] = schema.KindString
	}
	return kinds
}

func decodeValue(kind schema.Kind, v any) (any, error) {
	switch kind {
	case schema.KindTime:
		s, ok := stringValue(v)
		if !ok {
			return nil, fmt.Errorf("expected stored timestamp, got %T", v)
		}
		return record.ParseTime(s)
	case schema.KindBool:
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		case bool:
			return n, nil
		default:
			return nil, fmt.Errorf("expected stored bool, got %T", v)
		}
	case schema.KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		default:
			return nil, fmt.Errorf("expected stored number, got %T", v)
		}
	default:
		s, ok := stringValue(v)
		if !ok {
			return nil, fmt.Errorf("expected stored string, got %T", v)
		}
		return s, nil
	}
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
