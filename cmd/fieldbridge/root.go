package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/fieldbridge/internal/api"
	"github.com/hyperengineering/fieldbridge/internal/config"
	"github.com/hyperengineering/fieldbridge/internal/snapshot"
	"github.com/hyperengineering/fieldbridge/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "fieldbridge",
	Short: "FieldBridge - Field Platform Sync Bridge",
	Long:  "Run the FieldBridge server, or use a subcommand to sync and inspect state without a server.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cursorCmd)
	rootCmd.AddCommand(entitiesCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	setupLogger(cfg.Log)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize store, cursors, platform client, engine
	env, err := buildEnvironment(cfg)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Background workers
	entities := cfg.Worker.Entities
	if len(entities) == 0 {
		entities = env.registry.Names()
	}
	syncCoord := worker.NewSyncCoordinator(env.engine, entities,
		time.Duration(cfg.Worker.SyncInterval))

	uploader, err := snapshot.NewUploader(cfg.Snapshot)
	if err != nil {
		return err
	}
	snapCoord := worker.NewSnapshotCoordinator(env.store, uploader,
		time.Duration(cfg.Worker.SnapshotInterval))
	syncCoord.SetSnapshotter(snapCoord.Snapshot)

	// 6. Initialize HTTP router
	handler := api.NewHandler(env.registry, env.cursors, syncCoord, env.store,
		cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 7. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 8. Start workers
	var wg sync.WaitGroup
	startWorker(ctx, &wg, "sync", syncCoord.Run)
	startWorker(ctx, &wg, "snapshot", snapCoord.Run)

	// 9. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully. Any other error is a real failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 10. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 11. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 11a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 11b. Wait for workers to complete
	wg.Wait()

	// 11c. Close store
	if err := env.store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
