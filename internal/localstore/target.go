package localstore

import (
	"context"

	"github.com/hyperengineering/fieldbridge/internal/batch"
)

// Target adapts the store to batch.Target so pulled records flow through
// the same executor as pushed ones. Failures are per-operation: a bad row
// never poisons the rest of its chunk.
type Target struct {
	store  *Store
	entity string
}

// NewTarget returns a batch target writing to one entity's table.
func (s *Store) NewTarget(entity string) *Target {
	return &Target{store: s, entity: entity}
}

// ApplyChunk upserts each operation's record individually.
func (t *Target) ApplyChunk(ctx context.Context, ops []batch.Operation) ([]batch.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcomes := make([]batch.Outcome, 0, len(ops))
	for _, op := range ops {
		outcome := batch.Outcome{Op: op}
		// Stamping updated_at with the source-side modification time keeps
		// applied pulls out of the next push window: only rows edited
		// after their last pull read as locally changed.
		row := Row{
			ID:                 op.ID,
			ExternalID:         op.ExternalID,
			ExternalModifiedAt: op.ModifiedAt,
			UpdatedAt:          op.ModifiedAt,
			Record:             op.Record,
		}
		if err := t.store.Upsert(ctx, t.entity, row); err != nil {
			outcome.Err = &batch.OpError{Kind: batch.ErrorKindRejected, Message: err.Error()}
		} else if op.Kind == batch.OpCreate {
			outcome.CreatedID = op.ID
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
