package cursor

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/localstore"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cursors.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := localstore.RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewSQLiteStore(db)
}

func TestGetMissingCursor(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "workorder", DirectionPull)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("unset cursor should report ok=false")
	}
}

func TestSetAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	if err := store.Set(ctx, "workorder", DirectionPull, ts); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := store.Get(ctx, "workorder", DirectionPull)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("cursor should exist after set")
	}
	if !got.Equal(ts) {
		t.Errorf("got %v, want %v (nanosecond precision must survive)", got, ts)
	}
}

func TestSetNeverRegresses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	later := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	if err := store.Set(ctx, "workorder", DirectionPush, later); err != nil {
		t.Fatalf("set later: %v", err)
	}
	// An out-of-order report must not move the watermark backward.
	if err := store.Set(ctx, "workorder", DirectionPush, earlier); err != nil {
		t.Fatalf("set earlier: %v", err)
	}

	got, _, err := store.Get(ctx, "workorder", DirectionPush)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(later) {
		t.Errorf("cursor regressed to %v, want %v", got, later)
	}
}

func TestDirectionsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pullTS := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	pushTS := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	if err := store.Set(ctx, "invoice", DirectionPull, pullTS); err != nil {
		t.Fatalf("set pull: %v", err)
	}
	if err := store.Set(ctx, "invoice", DirectionPush, pushTS); err != nil {
		t.Fatalf("set push: %v", err)
	}

	gotPull, _, _ := store.Get(ctx, "invoice", DirectionPull)
	gotPush, _, _ := store.Get(ctx, "invoice", DirectionPush)
	if !gotPull.Equal(pullTS) || !gotPush.Equal(pushTS) {
		t.Errorf("pull=%v push=%v", gotPull, gotPush)
	}
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := store.Set(ctx, "contact", DirectionPull, ts); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Reset(ctx, "contact", DirectionPull); err != nil {
		t.Fatalf("reset: %v", err)
	}

	_, ok, err := store.Get(ctx, "contact", DirectionPull)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("cursor should be gone after reset")
	}

	// Resetting a missing cursor is not an error.
	if err := store.Reset(ctx, "contact", DirectionPull); err != nil {
		t.Errorf("reset missing: %v", err)
	}
}

func TestInvalidDirection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "workorder", "sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("get: %v", err)
	}
	if err := store.Set(ctx, "workorder", "sideways", time.Now()); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("set: %v", err)
	}
	if err := store.Reset(ctx, "workorder", "sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("reset: %v", err)
	}
}

func TestSetRejectsZeroTimestamp(t *testing.T) {
	store := newTestStore(t)

	if err := store.Set(context.Background(), "workorder", DirectionPull, time.Time{}); err == nil {
		t.Fatal("expected error for zero timestamp")
	}
}

func TestList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := []struct {
		entity string
		dir    Direction
	}{
		{"workorder", DirectionPush},
		{"account", DirectionPull},
		{"workorder", DirectionPull},
	}
	for _, e := range entries {
		if err := store.Set(ctx, e.entity, e.dir, ts); err != nil {
			t.Fatalf("set %s/%s: %v", e.entity, e.dir, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d entries, want 3", len(list))
	}
	// Ordered by entity, then direction.
	if list[0].Entity != "account" || list[1].Direction != DirectionPull || list[2].Direction != DirectionPush {
		t.Errorf("order = %+v", list)
	}
	for _, e := range list {
		if e.UpdatedAt.IsZero() {
			t.Errorf("%s/%s missing updated_at", e.Entity, e.Direction)
		}
	}
}

func TestSetMonotonicAcrossFractionWidths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// RFC3339Nano trims trailing fractional zeros, so these timestamps
	// render at different widths and would misorder under a naive string
	// compare: "12:00:00Z" sorts after "12:00:00.5Z", and ".15Z" sorts
	// before ".1Z".
	half := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	whole := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Set(ctx, "workorder", DirectionPull, half); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "workorder", DirectionPull, whole); err != nil {
		t.Fatalf("set earlier: %v", err)
	}
	got, _, err := store.Get(ctx, "workorder", DirectionPull)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(half) {
		t.Errorf("cursor regressed to %v, want %v", got, half)
	}

	tenth := time.Date(2026, 3, 1, 13, 0, 0, 100_000_000, time.UTC)
	fifteenth := time.Date(2026, 3, 1, 13, 0, 0, 150_000_000, time.UTC)

	if err := store.Set(ctx, "invoice", DirectionPush, tenth); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "invoice", DirectionPush, fifteenth); err != nil {
		t.Fatalf("set later: %v", err)
	}
	got, _, err = store.Get(ctx, "invoice", DirectionPush)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Equal(fifteenth) {
		t.Errorf("cursor failed to advance: got %v, want %v", got, fifteenth)
	}
}
