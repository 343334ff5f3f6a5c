// Package engine drives sync runs: pull (platform to local store), push
// (local store to platform), and bidirectional (pull then push). Each run
// builds fresh ID maps, reads the direction's cursor, transforms and
// applies records through the batch executor, and advances the cursor
// only when the phase finished with zero failures.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/fieldbridge/internal/batch"
	"github.com/hyperengineering/fieldbridge/internal/conflict"
	"github.com/hyperengineering/fieldbridge/internal/cursor"
	"github.com/hyperengineering/fieldbridge/internal/idmap"
	"github.com/hyperengineering/fieldbridge/internal/localstore"
	"github.com/hyperengineering/fieldbridge/internal/platform"
	"github.com/hyperengineering/fieldbridge/internal/record"
	"github.com/hyperengineering/fieldbridge/internal/schema"
	"github.com/hyperengineering/fieldbridge/internal/transform"
)

// failureSampleSize bounds how many failure messages a report carries.
const failureSampleSize = 5

// Platform is the external side of a run. *platform.Client satisfies it;
// tests substitute fakes.
type Platform interface {
	Ping(ctx context.Context) error
	QueryAll(ctx context.Context, entity string, since time.Time, limit int) ([]platform.Record, error)
	NewTarget(externalEntity string) batch.Target
}

// Engine orchestrates sync runs for all registered entities.
type Engine struct {
	store     *localstore.Store
	platform  Platform
	cursors   cursor.Store
	registry  *schema.Registry
	resolver  *conflict.Resolver
	chunkSize int
	logger    *slog.Logger
	now       func() time.Time
}

// Config wires an Engine.
type Config struct {
	Store     *localstore.Store
	Platform  Platform
	Cursors   cursor.Store
	Registry  *schema.Registry
	Resolver  *conflict.Resolver
	ChunkSize int
	Logger    *slog.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = batch.DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = conflict.NewResolver(conflict.MostRecentWins, conflict.DefaultTolerance)
	}
	return &Engine{
		store:     cfg.Store,
		platform:  cfg.Platform,
		cursors:   cfg.Cursors,
		registry:  cfg.Registry,
		resolver:  cfg.Resolver,
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// Run executes one sync run for an entity. Connection-level failures are
// returned as errors before any cursor is read; per-record failures and
// skips are reported in the Report and do not fail the run.
func (e *Engine) Run(ctx context.Context, entity string, opts Options) (*Report, error) {
	sch, err := e.registry.Get(entity)
	if err != nil {
		return nil, err
	}

	switch opts.Mode {
	case ModePull, ModePush, ModeBidirectional:
	case "":
		opts.Mode = ModePull
	default:
		return nil, fmt.Errorf("unknown sync mode %q", opts.Mode)
	}

	// Check connectivity up front so an unreachable platform aborts
	// before any cursor or data reads.
	if err := e.platform.Ping(ctx); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     ulid.Make().String(),
		Entity:    entity,
		Mode:      opts.Mode,
		DryRun:    opts.DryRun,
		StartedAt: e.now(),
	}
	log := e.logger.With("run_id", report.RunID, "entity", entity, "mode", opts.Mode, "dry_run", opts.DryRun)
	log.Info("sync run starting")

	maps, err := e.buildMaps(ctx, sch)
	if err != nil {
		return nil, err
	}

	if opts.Mode == ModePull || opts.Mode == ModeBidirectional {
		phase, err := e.pull(ctx, sch, maps, opts, log)
		if err != nil {
			return nil, err
		}
		report.Pull = phase
	}
	if opts.Mode == ModePush || opts.Mode == ModeBidirectional {
		// Pull may have linked new rows; rebuild maps so push sees them.
		if opts.Mode == ModeBidirectional && !opts.DryRun {
			if maps, err = e.buildMaps(ctx, sch); err != nil {
				return nil, err
			}
		}
		seq := NewSequence(fmt.Sprintf("%s-%s", sch.External, report.RunID[len(report.RunID)-6:]))
		phase, err := e.push(ctx, sch, maps, opts, seq, log)
		if err != nil {
			return nil, err
		}
		report.Push = phase
	}

	report.FinishedAt = e.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	log.Info("sync run finished",
		"duration", report.Duration,
		"failed", report.TotalFailed())

	if err := e.saveReport(ctx, report); err != nil {
		log.Warn("persist run report", "error", err)
	}
	return report, nil
}

// buildMaps loads ID pairs for the entity and every relation target in
// one pass, so transforms never query mid-flight.
func (e *Engine) buildMaps(ctx context.Context, sch schema.Schema) (idmap.Maps, error) {
	entities := []string{sch.Name}
	seen := map[string]bool{sch.Name: true}
	for _, r := range sch.Relations {
		if !seen[r.Target] {
			seen[r.Target] = true
			entities = append(entities, r.Target)
		}
	}
	return idmap.Build(ctx, e.store, entities...)
}

func (e *Engine) pull(ctx context.Context, sch schema.Schema, maps idmap.Maps, opts Options, log *slog.Logger) (*PhaseReport, error) {
	phase := &PhaseReport{Direction: string(cursor.DirectionPull)}

	var since time.Time
	if !opts.Force {
		ts, ok, err := e.cursors.Get(ctx, sch.Name, cursor.DirectionPull)
		if err != nil {
			return nil, err
		}
		if ok {
			since = ts
		}
	}

	externals, err := e.platform.QueryAll(ctx, sch.External, since, opts.Limit)
	if err != nil {
		return nil, err
	}
	phase.Queried = len(externals)

	localTimes, err := e.store.ListUpdatedAt(ctx, sch.Name)
	if err != nil {
		return nil, err
	}

	var (
		counters    transform.Counters
		ops         []batch.Operation
		failures    []string
		maxResolved time.Time
	)
	entityMap := maps.For(sch.Name)

	for _, ext := range externals {
		extID, ok := ext.ID()
		if !ok {
			phase.Failed++
			failures = appendSample(failures, fmt.Sprintf("%s: record without Id", sch.Name))
			continue
		}
		modifiedAt, err := ext.ModifiedAt()
		if err != nil {
			phase.Failed++
			failures = appendSample(failures, fmt.Sprintf("%s %s: %v", sch.Name, extID, err))
			continue
		}

		local, skip, err := transform.Forward(sch, record.Record(ext), maps, &counters)
		if err != nil {
			phase.Failed++
			failures = appendSample(failures, fmt.Sprintf("%s %s: %v", sch.Name, extID, err))
			continue
		}
		if skip != nil {
			phase.SkipSample = appendSample(phase.SkipSample, skip.String())
			continue
		}

		op := batch.Operation{
			Kind:       batch.OpCreate,
			Entity:     sch.Name,
			ExternalID: extID,
			Record:     local,
			ModifiedAt: modifiedAt,
		}
		if localID, linked := entityMap.LocalFor(extID); linked {
			op.Kind = batch.OpUpdate
			op.ID = localID

			res, gated := e.gatePull(localID, extID, localTimes[localID], modifiedAt)
			if res.Conflict {
				phase.Conflicts++
				log.Warn("conflict resolved",
					"direction", "pull",
					"record", localID,
					"policy", res.Policy,
					"winner", res.Winner,
					"local_modified", res.LocalModified,
					"external_modified", res.ExternalModified)
			}
			if gated {
				// Local version wins: the pulled record is resolved, not
				// applied, and must not hold the cursor back.
				if modifiedAt.After(maxResolved) {
					maxResolved = modifiedAt
				}
				continue
			}
		} else {
			op.ID = ulid.Make().String()
		}
		ops = append(ops, op)
	}
	phase.Transformed = len(ops)
	phase.Skipped = counters.Skipped
	phase.EnumDefaults = counters.EnumDefaults

	target := e.store.NewTarget(sch.Name)
	result, err := e.apply(ctx, target, ops, opts.DryRun)
	if err != nil {
		return nil, err
	}
	phase.Succeeded = result.Succeeded
	phase.Failed += len(result.Failed)
	phase.FailureSample = append(failures, result.FailureSample(failureSampleSize-len(failures))...)
	if result.HasFailures() {
		log.Warn("apply finished with failures", "direction", "pull", "failed", len(result.Failed))
	}

	e.advanceCursor(ctx, phase, sch.Name, cursor.DirectionPull, opts,
		laterOf(result.MaxSucceededModified(), maxResolved), log)
	return phase, nil
}

// gatePull decides whether an incoming external record may overwrite the
// matched local row, using the timestamps preloaded before the loop. It
// returns the resolution and whether the write is gated off (local side
// won).
func (e *Engine) gatePull(localID, extID string, localModified, extModified time.Time) (conflict.Resolution, bool) {
	res := e.resolver.Resolve(conflict.SideExternal,
		conflict.Version{ID: localID, ModifiedAt: localModified},
		conflict.Version{ID: extID, ModifiedAt: extModified})
	return res, res.Winner == conflict.SideLocal
}

func (e *Engine) push(ctx context.Context, sch schema.Schema, maps idmap.Maps, opts Options, seq *Sequence, log *slog.Logger) (*PhaseReport, error) {
	phase := &PhaseReport{Direction: string(cursor.DirectionPush)}

	var since *time.Time
	if !opts.Force {
		ts, ok, err := e.cursors.Get(ctx, sch.Name, cursor.DirectionPush)
		if err != nil {
			return nil, err
		}
		if ok {
			since = &ts
		}
	}

	rows, err := e.store.QueryUpdatedSince(ctx, sch.Name, since, opts.Limit)
	if err != nil {
		return nil, err
	}
	phase.Queried = len(rows)

	var (
		counters    transform.Counters
		ops         []batch.Operation
		failures    []string
		maxResolved time.Time
	)

	for _, row := range rows {
		local := row.Record
		if row.ExternalID == "" && sch.NumberField != "" && !local.Has(sch.NumberField) {
			local = local.Clone()
			local[sch.NumberField] = seq.Next()
		}

		ext, skip, err := transform.Reverse(sch, local, maps, &counters)
		if err != nil {
			phase.Failed++
			failures = appendSample(failures, fmt.Sprintf("%s %s: %v", sch.Name, row.ID, err))
			continue
		}
		if skip != nil {
			phase.SkipSample = appendSample(phase.SkipSample, skip.String())
			continue
		}

		op := batch.Operation{
			Kind:       batch.OpCreate,
			Entity:     sch.Name,
			ID:         row.ID,
			Record:     ext,
			ModifiedAt: row.UpdatedAt,
		}
		if row.ExternalID != "" {
			op.Kind = batch.OpUpdate
			op.ExternalID = row.ExternalID

			// The stored external modification time comes from the last
			// pull; a row never pulled has nothing to conflict with.
			if !row.ExternalModifiedAt.IsZero() {
				res := e.resolver.Resolve(conflict.SideLocal,
					conflict.Version{ID: row.ID, ModifiedAt: row.UpdatedAt},
					conflict.Version{ID: row.ExternalID, ModifiedAt: row.ExternalModifiedAt})
				if res.Conflict {
					phase.Conflicts++
					log.Warn("conflict resolved",
						"direction", "push",
						"record", row.ID,
						"policy", res.Policy,
						"winner", res.Winner,
						"local_modified", res.LocalModified,
						"external_modified", res.ExternalModified)
				}
				if res.Winner == conflict.SideExternal {
					if row.UpdatedAt.After(maxResolved) {
						maxResolved = row.UpdatedAt
					}
					continue
				}
				if !res.Conflict {
					// Both sides hold the same edit. Pull stamps applied
					// rows with the external modification time, so this is
					// the just-pulled case: pushing it back would bounce
					// the record between the two systems on every cycle.
					if row.UpdatedAt.After(maxResolved) {
						maxResolved = row.UpdatedAt
					}
					continue
				}
			}
		}
		ops = append(ops, op)
	}
	phase.Transformed = len(ops)
	phase.Skipped = counters.Skipped
	phase.EnumDefaults = counters.EnumDefaults

	target := e.platform.NewTarget(sch.External)
	result, err := e.apply(ctx, target, ops, opts.DryRun)
	if err != nil {
		return nil, err
	}
	phase.Succeeded = result.Succeeded
	phase.Failed += len(result.Failed)
	phase.FailureSample = append(failures, result.FailureSample(failureSampleSize-len(failures))...)
	if result.HasFailures() {
		log.Warn("apply finished with failures", "direction", "push", "failed", len(result.Failed))
	}

	// Close the ID-mapping loop: created records get their
	// platform-assigned ID written back.
	if !opts.DryRun {
		for _, o := range result.Outcomes {
			if o.Err != nil || o.Op.Kind != batch.OpCreate || o.CreatedID == "" {
				continue
			}
			if err := e.store.SetExternalID(ctx, sch.Name, o.Op.ID, o.CreatedID); err != nil {
				phase.Failed++
				phase.FailureSample = appendSample(phase.FailureSample,
					fmt.Sprintf("%s %s: link external id: %v", sch.Name, o.Op.ID, err))
			}
		}
	}

	e.advanceCursor(ctx, phase, sch.Name, cursor.DirectionPush, opts,
		laterOf(result.MaxSucceededModified(), maxResolved), log)
	return phase, nil
}

// apply runs the executor, or a recording no-op target on dry runs so the
// counts come out identical without writes.
func (e *Engine) apply(ctx context.Context, target batch.Target, ops []batch.Operation, dryRun bool) (*batch.Result, error) {
	if dryRun {
		target = dryRunTarget{}
	}
	return batch.NewExecutor(target, e.chunkSize).Apply(ctx, ops)
}

// advanceCursor moves the phase's watermark to the latest applied
// record's modification time, but only when nothing failed. Failed
// records stay inside the next run's window and are retried.
func (e *Engine) advanceCursor(ctx context.Context, phase *PhaseReport, entity string, dir cursor.Direction, opts Options, target time.Time, log *slog.Logger) {
	if opts.DryRun || phase.Failed > 0 || target.IsZero() {
		return
	}
	if err := e.cursors.Set(ctx, entity, dir, target); err != nil {
		phase.Failed++
		phase.FailureSample = appendSample(phase.FailureSample,
			fmt.Sprintf("%s: advance %s cursor: %v", entity, dir, err))
		return
	}
	phase.CursorAdvanced = true
	phase.Cursor = target
	log.Info("cursor advanced", "direction", dir, "cursor", target)
}

func (e *Engine) saveReport(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return e.store.SaveRun(ctx, localstore.RunRecord{
		ID:         report.RunID,
		Entity:     report.Entity,
		Mode:       string(report.Mode),
		DryRun:     report.DryRun,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Report:     data,
	})
}

func appendSample(sample []string, msg string) []string {
	if len(sample) >= failureSampleSize {
		return sample
	}
	return append(sample, msg)
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// dryRunTarget acknowledges every operation without writing anywhere.
type dryRunTarget struct{}

func (dryRunTarget) ApplyChunk(ctx context.Context, ops []batch.Operation) ([]batch.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcomes := make([]batch.Outcome, len(ops))
	for i, op := range ops {
		outcomes[i] = batch.Outcome{Op: op}
	}
	return outcomes, nil
}
