package main

import (
	"encoding/json"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/config"
	"github.com/hyperengineering/fieldbridge/internal/conflict"
	"github.com/hyperengineering/fieldbridge/internal/cursor"
	"github.com/hyperengineering/fieldbridge/internal/engine"
	"github.com/hyperengineering/fieldbridge/internal/localstore"
	"github.com/hyperengineering/fieldbridge/internal/platform"
	"github.com/hyperengineering/fieldbridge/internal/schema"
)

// environment bundles the wired services shared by the server and the
// offline subcommands.
type environment struct {
	registry *schema.Registry
	store    *localstore.Store
	cursors  cursor.Store
	client   *platform.Client
	engine   *engine.Engine
}

func buildEnvironment(cfg *config.Config) (*environment, error) {
	reg := schema.Builtin()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	store, err := localstore.Open(cfg.Database.Path, reg)
	if err != nil {
		return nil, err
	}

	cursors := cursor.NewSQLiteStore(store.DB())

	client := platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.APIKey,
		platform.WithPageSize(cfg.Platform.PageSize))

	policy, err := conflict.ParsePolicy(cfg.Sync.ConflictPolicy)
	if err != nil {
		store.Close()
		return nil, err
	}

	eng := engine.New(engine.Config{
		Store:     store,
		Platform:  client,
		Cursors:   cursors,
		Registry:  reg,
		Resolver:  conflict.NewResolver(policy, time.Duration(cfg.Sync.Tolerance)),
		ChunkSize: cfg.Sync.ChunkSize,
	})

	return &environment{
		registry: reg,
		store:    store,
		cursors:  cursors,
		client:   client,
		engine:   eng,
	}, nil
}

func (e *environment) Close() error {
	return e.store.Close()
}

// openEnvironment loads config and wires services for a one-shot command.
func openEnvironment() (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return buildEnvironment(cfg)
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
