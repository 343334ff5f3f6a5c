package platform

import (
	"context"
	"errors"

	"github.com/hyperengineering/fieldbridge/internal/batch"
)

// Target adapts the client to batch.Target for one external entity.
// Operation records must already carry external field names.
type Target struct {
	client *Client
	entity string
}

// NewTarget returns a batch target writing to one external entity.
func (c *Client) NewTarget(externalEntity string) batch.Target {
	return &Target{client: c, entity: externalEntity}
}

// ApplyChunk submits one bulk write and maps the platform's per-record
// results back onto batch outcomes. A chunk-level error (connection
// failure, non-2xx response) is returned as-is so the executor can fail
// the whole chunk.
func (t *Target) ApplyChunk(ctx context.Context, ops []batch.Operation) ([]batch.Outcome, error) {
	writeOps := make([]WriteOp, 0, len(ops))
	for _, op := range ops {
		w := WriteOp{Fields: op.Record}
		switch op.Kind {
		case batch.OpCreate:
			w.Op = "create"
		case batch.OpUpdate:
			w.Op = "update"
			w.ID = op.ExternalID
		}
		writeOps = append(writeOps, w)
	}

	results, err := t.client.Write(ctx, t.entity, writeOps)
	if err != nil {
		return nil, err
	}

	outcomes := make([]batch.Outcome, len(ops))
	for i, res := range results {
		outcomes[i] = batch.Outcome{Op: ops[i]}
		if res.Success {
			if ops[i].Kind == batch.OpCreate {
				outcomes[i].CreatedID = res.ID
			}
			continue
		}

		kind := batch.ErrorKindRejected
		if res.Retryable() {
			kind = batch.ErrorKindTransport
		}
		msg := res.Message
		if res.ErrorCode != "" {
			msg = res.ErrorCode + ": " + msg
		}
		outcomes[i].Err = &batch.OpError{Kind: kind, Message: msg}
	}
	return outcomes, nil
}

// IsConnectionError reports whether err means the platform was never
// reached, as opposed to answering with a failure.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
