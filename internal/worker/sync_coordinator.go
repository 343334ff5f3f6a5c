// Package worker hosts the background loops run by the serve command:
// scheduled sync cycles and periodic database snapshot uploads.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/engine"
)

// ErrSyncInFlight is returned when a manual trigger overlaps a run that
// is already executing for the same entity. Cursors assume one writer
// per (entity, direction), so overlapping runs are rejected rather than
// queued.
var ErrSyncInFlight = errors.New("sync already running for entity")

// Runner executes sync runs. *engine.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, entity string, opts engine.Options) (*engine.Report, error)
}

// SyncCoordinator periodically syncs the configured entities and keeps
// the last report per entity for the API.
type SyncCoordinator struct {
	runner   Runner
	entities []string
	interval time.Duration

	mu          sync.Mutex
	inFlight    map[string]bool
	lastReports map[string]*engine.Report
	snapshotter func(ctx context.Context)
}

// NewSyncCoordinator creates a coordinator syncing the given entities in
// order, every interval.
func NewSyncCoordinator(runner Runner, entities []string, interval time.Duration) *SyncCoordinator {
	return &SyncCoordinator{
		runner:      runner,
		entities:    entities,
		interval:    interval,
		inFlight:    make(map[string]bool),
		lastReports: make(map[string]*engine.Report),
	}
}

// SetSnapshotter registers a hook run after a successful forced full
// resync, so a fresh database copy follows every rebuild.
func (c *SyncCoordinator) SetSnapshotter(fn func(ctx context.Context)) {
	c.snapshotter = fn
}

// Run starts the coordinator loop.
func (c *SyncCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "sync-coordinator",
		"action", "worker_started",
		"interval", c.interval,
		"entities", len(c.entities),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Sync immediately on start
	c.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "sync-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.syncAll(ctx)
		}
	}
}

// syncAll runs a bidirectional sync for every configured entity,
// sequentially, in configuration order.
func (c *SyncCoordinator) syncAll(ctx context.Context) {
	var succeeded, failed int
	for _, entity := range c.entities {
		if ctx.Err() != nil {
			return // Graceful shutdown, don't log summary
		}
		if _, err := c.Trigger(ctx, entity, engine.Options{Mode: engine.ModeBidirectional}); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("scheduled sync failed",
				"component", "worker",
				"worker", "sync-coordinator",
				"action", "sync_failed",
				"entity", entity,
				"error", err,
			)
			failed++
			continue
		}
		succeeded++
	}

	if succeeded > 0 || failed > 0 {
		slog.Info("sync cycle completed",
			"component", "worker",
			"worker", "sync-coordinator",
			"action", "cycle_complete",
			"total", len(c.entities),
			"succeeded", succeeded,
			"failed", failed,
		)
	}
}

// Trigger runs one sync for an entity, guarding against overlapping runs
// of the same entity. Used by both the schedule and manual API triggers.
func (c *SyncCoordinator) Trigger(ctx context.Context, entity string, opts engine.Options) (*engine.Report, error) {
	c.mu.Lock()
	if c.inFlight[entity] {
		c.mu.Unlock()
		return nil, ErrSyncInFlight
	}
	c.inFlight[entity] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, entity)
		c.mu.Unlock()
	}()

	report, err := c.runner.Run(ctx, entity, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lastReports[entity] = report
	c.mu.Unlock()

	if opts.Force && !opts.DryRun && c.snapshotter != nil {
		// Detached from the trigger's context so an API caller hanging up
		// does not abort the upload.
		go c.snapshotter(context.WithoutCancel(ctx))
	}
	return report, nil
}

// LastReport returns the most recent report for an entity, if any run has
// completed since startup.
func (c *SyncCoordinator) LastReport(entity string) (*engine.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.lastReports[entity]
	return report, ok
}

// LastReports returns the most recent report per entity.
func (c *SyncCoordinator) LastReports() map[string]*engine.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*engine.Report, len(c.lastReports))
	for entity, report := range c.lastReports {
		out[entity] = report
	}
	return out
}
