package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/snapshot"
)

// SnapshotSource produces a point-in-time database copy.
type SnapshotSource interface {
	SnapshotTo(ctx context.Context, dest string) error
}

// SnapshotCoordinator periodically snapshots the database and uploads
// the copy to S3-compatible storage.
type SnapshotCoordinator struct {
	source   SnapshotSource
	uploader snapshot.Uploader
	interval time.Duration
}

// NewSnapshotCoordinator creates a coordinator. The uploader decides
// whether anything leaves the host (NoopUploader in local-only mode).
func NewSnapshotCoordinator(source SnapshotSource, uploader snapshot.Uploader, interval time.Duration) *SnapshotCoordinator {
	return &SnapshotCoordinator{
		source:   source,
		uploader: uploader,
		interval: interval,
	}
}

// Run starts the coordinator loop.
func (c *SnapshotCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot-coordinator",
		"action", "worker_started",
		"interval", c.interval,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.Snapshot(ctx)
		}
	}
}

// Snapshot generates one snapshot and uploads it. Failures are logged,
// never fatal: the next cycle retries.
func (c *SnapshotCoordinator) Snapshot(ctx context.Context) {
	dir, err := os.MkdirTemp("", "fieldbridge-snapshot-*")
	if err != nil {
		slog.Warn("snapshot staging failed",
			"component", "worker",
			"worker", "snapshot-coordinator",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "current.db")
	if err := c.source.SnapshotTo(ctx, path); err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown, don't log as error
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"worker", "snapshot-coordinator",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}

	if err := c.uploader.Upload(ctx, path); err != nil {
		slog.Warn("snapshot upload to S3 failed",
			"component", "worker",
			"worker", "snapshot-coordinator",
			"action", "snapshot_upload_failed",
			"error", err,
		)
		return
	}

	slog.Info("snapshot uploaded",
		"component", "worker",
		"worker", "snapshot-coordinator",
		"action", "snapshot_uploaded",
	)
}
