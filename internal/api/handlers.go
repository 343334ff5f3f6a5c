package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/fieldbridge/internal/cursor"
	"github.com/hyperengineering/fieldbridge/internal/engine"
	"github.com/hyperengineering/fieldbridge/internal/localstore"
	"github.com/hyperengineering/fieldbridge/internal/schema"
)

// SyncTrigger starts sync runs on demand. The worker coordinator
// satisfies it and rejects overlaps with in-flight runs.
type SyncTrigger interface {
	Trigger(ctx context.Context, entity string, opts engine.Options) (*engine.Report, error)
}

// RunHistory reads persisted run reports.
type RunHistory interface {
	LatestRun(ctx context.Context, entity string) (*localstore.RunRecord, error)
}

// Handler implements the API handlers
type Handler struct {
	registry *schema.Registry
	cursors  cursor.Store
	trigger  SyncTrigger
	runs     RunHistory
	apiKey   string
	version  string
}

// NewHandler creates a new Handler.
func NewHandler(reg *schema.Registry, cursors cursor.Store, trigger SyncTrigger, runs RunHistory, apiKey, version string) *Handler {
	return &Handler{
		registry: reg,
		cursors:  cursors,
		trigger:  trigger,
		runs:     runs,
		apiKey:   apiKey,
		version:  version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Entities int    `json:"entities"`
	}{
		Status:   "healthy",
		Version:  h.version,
		Entities: len(h.registry.Names()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// entitySummary is the wire shape of one registered entity.
type entitySummary struct {
	Name      string   `json:"name"`
	External  string   `json:"external"`
	Fields    int      `json:"fields"`
	Relations []string `json:"relations,omitempty"`
}

// Entities handles GET /api/v1/entities
func (h *Handler) Entities(w http.ResponseWriter, r *http.Request) {
	var out []entitySummary
	for _, name := range h.registry.Names() {
		sch, err := h.registry.Get(name)
		if err != nil {
			MapError(w, r, err)
			return
		}
		summary := entitySummary{
			Name:     sch.Name,
			External: sch.External,
			Fields:   len(sch.Fields),
		}
		for _, rel := range sch.Relations {
			summary.Relations = append(summary.Relations, rel.Target)
		}
		out = append(out, summary)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Entities []entitySummary `json:"entities"`
	}{Entities: out})
}

// Cursors handles GET /api/v1/cursors
func (h *Handler) Cursors(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cursors.List(r.Context())
	if err != nil {
		slog.Error("list cursors failed", "error", err)
		MapError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Cursors []cursor.Entry `json:"cursors"`
	}{Cursors: entries})
}

// TriggerSync handles POST /api/v1/sync/{entity}
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	opts, err := parseRunOptions(r)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.trigger.Trigger(r.Context(), entity, opts)
	if err != nil {
		slog.Error("manual sync failed", "entity", entity, "error", err)
		MapError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func parseRunOptions(r *http.Request) (engine.Options, error) {
	opts := engine.Options{Mode: engine.ModeBidirectional}

	q := r.URL.Query()
	if v := q.Get("mode"); v != "" {
		switch engine.Mode(v) {
		case engine.ModePull, engine.ModePush, engine.ModeBidirectional:
			opts.Mode = engine.Mode(v)
		default:
			return opts, fmt.Errorf("unknown mode %q", v)
		}
	}
	if v := q.Get("dry_run"); v != "" {
		opts.DryRun = v == "true" || v == "1"
	}
	if v := q.Get("force"); v != "" {
		opts.Force = v == "true" || v == "1"
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = n
	}
	return opts, nil
}

// LatestRun handles GET /api/v1/runs/latest
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.LatestRun(r.Context(), r.URL.Query().Get("entity"))
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			WriteProblem(w, r, http.StatusNotFound, "No sync runs recorded yet")
			return
		}
		slog.Error("load latest run failed", "error", err)
		MapError(w, r, err)
		return
	}

	// The stored report is already JSON; return it as-is.
	w.Header().Set("Content-Type", "application/json")
	w.Write(run.Report)
}
