// Package batch applies record operations against a target store in
// bounded-size chunks. Every operation yields exactly one outcome: a
// malformed record inside a chunk fails alone, while a chunk-level
// transport failure marks the whole chunk retryable. Retry policy belongs
// to the caller; the executor only classifies.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/record"
)

// DefaultChunkSize is the number of operations submitted per bulk request.
const DefaultChunkSize = 200

// OpKind says whether the target should create or update the record.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
)

// ErrorKind classifies a failed outcome.
type ErrorKind string

const (
	// ErrorKindTransport marks a chunk-level delivery failure. The
	// operation itself may be fine; the caller may retry it.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindRejected marks a per-record application error (validation,
	// constraint violation). Retrying without changing the record will
	// fail again.
	ErrorKindRejected ErrorKind = "rejected"
)

// Operation is one record write headed for a target store.
type Operation struct {
	Kind       OpKind
	Entity     string
	ID         string // local record ID
	ExternalID string // set on updates targeting the external platform
	Record     record.Record
	ModifiedAt time.Time // source-side modification time, drives cursor advancement
}

// OpError describes why an operation failed.
type OpError struct {
	Kind    ErrorKind
	Message string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the failure is transport-level.
func (e *OpError) Retryable() bool {
	return e.Kind == ErrorKindTransport
}

// Outcome is the per-operation result. Err is nil on success. CreatedID
// carries the target-assigned ID for successful creates against the
// external platform.
type Outcome struct {
	Op        Operation
	CreatedID string
	Err       *OpError
}

// Target applies one chunk of operations. Implementations return one
// outcome per operation, positionally aligned with the input. A non-nil
// error means the chunk as a whole could not be delivered.
type Target interface {
	ApplyChunk(ctx context.Context, ops []Operation) ([]Outcome, error)
}

// Result aggregates the outcomes of one Apply call.
type Result struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    []Outcome
}

// HasFailures reports whether any operation failed.
func (r *Result) HasFailures() bool {
	return len(r.Failed) > 0
}

// FailureSample returns up to n failure messages for the run summary.
// Large runs must never dump every failure.
func (r *Result) FailureSample(n int) []string {
	if n < 0 {
		n = 0
	}
	if n > len(r.Failed) {
		n = len(r.Failed)
	}
	sample := make([]string, 0, n)
	for _, o := range r.Failed[:n] {
		sample = append(sample, fmt.Sprintf("%s %s %s: %s", o.Op.Entity, o.Op.Kind, o.Op.ID, o.Err.Message))
	}
	return sample
}

// MaxSucceededModified returns the latest source-side modification time
// among succeeded operations. The zero time means nothing succeeded.
func (r *Result) MaxSucceededModified() time.Time {
	var max time.Time
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Op.ModifiedAt.After(max) {
			max = o.Op.ModifiedAt
		}
	}
	return max
}

// Executor partitions operations into chunks and applies them in input
// order. It never retries internally.
type Executor struct {
	target    Target
	chunkSize int
}

// NewExecutor creates an executor for the target. A chunkSize <= 0 uses
// DefaultChunkSize.
func NewExecutor(target Target, chunkSize int) *Executor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Executor{target: target, chunkSize: chunkSize}
}

// Apply runs all operations and returns the aggregated result. The only
// error returned is context cancellation; delivery failures are reported
// through outcomes so the caller sees every record's fate.
func (e *Executor) Apply(ctx context.Context, ops []Operation) (*Result, error) {
	result := &Result{Outcomes: make([]Outcome, 0, len(ops))}

	for start := 0; start < len(ops); start += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + e.chunkSize
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]

		outcomes, err := e.target.ApplyChunk(ctx, chunk)
		if err != nil {
			// Chunk-level delivery failure: every operation in the chunk
			// failed, and all of them are retryable.
			for _, op := range chunk {
				result.Outcomes = append(result.Outcomes, Outcome{
					Op:  op,
					Err: &OpError{Kind: ErrorKindTransport, Message: err.Error()},
				})
			}
			continue
		}

		// Guard the one-outcome-per-operation invariant against a
		// misbehaving target.
		if len(outcomes) != len(chunk) {
			for i, op := range chunk {
				if i < len(outcomes) {
					result.Outcomes = append(result.Outcomes, outcomes[i])
					continue
				}
				result.Outcomes = append(result.Outcomes, Outcome{
					Op:  op,
					Err: &OpError{Kind: ErrorKindTransport, Message: "target returned no outcome for operation"},
				})
			}
			continue
		}

		result.Outcomes = append(result.Outcomes, outcomes...)
	}

	for _, o := range result.Outcomes {
		if o.Err == nil {
			result.Succeeded++
		} else {
			result.Failed = append(result.Failed, o)
		}
	}
	return result, nil
}
