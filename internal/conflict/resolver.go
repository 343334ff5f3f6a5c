// Package conflict decides the winning version when both systems modified
// the same logical record since the last sync. Timestamps within the
// tolerance window count as the same edit and are never flagged; anything
// wider is resolved by the configured policy and recorded for audit.
package conflict

import (
	"fmt"
	"time"
)

// Policy selects the resolution rule.
type Policy string

const (
	// SourceWins: the side a run is reading from wins unconditionally.
	SourceWins Policy = "source_wins"

	// TargetWins: the system of record wins regardless of timestamps; a
	// push never overwrites it and a pull never clobbers newer local
	// edits.
	TargetWins Policy = "target_wins"

	// MostRecentWins: the later modification timestamp wins.
	MostRecentWins Policy = "most_recent_wins"
)

// ParsePolicy converts a config string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case SourceWins, TargetWins, MostRecentWins:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", s)
	}
}

// DefaultTolerance treats modification timestamps within one second as
// the same edit.
const DefaultTolerance = time.Second

// Side identifies which system holds a version.
type Side string

const (
	SideLocal    Side = "local"
	SideExternal Side = "external"
)

// Version is one side's view of a record for resolution purposes.
type Version struct {
	ID         string
	ModifiedAt time.Time
}

// Resolution records a decision. When Conflict is false the two versions
// were the same edit and Winner is simply the fresher side, unflagged.
type Resolution struct {
	Conflict         bool
	Winner           Side
	Policy           Policy
	LocalModified    time.Time
	ExternalModified time.Time
}

// Resolver applies a policy with a tolerance window.
type Resolver struct {
	policy    Policy
	tolerance time.Duration
}

// NewResolver creates a resolver. A non-positive tolerance uses
// DefaultTolerance.
func NewResolver(policy Policy, tolerance time.Duration) *Resolver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Resolver{policy: policy, tolerance: tolerance}
}

// Policy returns the configured policy.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve decides between a matched local/external pair. The source
// argument names the side the current run reads from (external on pull,
// local on push). Callers classify records with a missing counterpart as
// create-new before getting here; that is not a conflict.
func (r *Resolver) Resolve(source Side, local, external Version) Resolution {
	res := Resolution{
		Policy:           r.policy,
		LocalModified:    local.ModifiedAt,
		ExternalModified: external.ModifiedAt,
	}

	delta := local.ModifiedAt.Sub(external.ModifiedAt)
	if delta < 0 {
		delta = -delta
	}
	if delta <= r.tolerance {
		// Same edit: take the fresher side without flagging.
		res.Winner = fresher(local, external)
		return res
	}

	res.Conflict = true
	switch r.policy {
	case SourceWins:
		res.Winner = source
	case TargetWins:
		res.Winner = SideLocal
	default: // MostRecentWins
		res.Winner = fresher(local, external)
	}
	return res
}

func fresher(local, external Version) Side {
	if external.ModifiedAt.After(local.ModifiedAt) {
		return SideExternal
	}
	return SideLocal
}

// String renders the resolution for audit logs.
func (res Resolution) String() string {
	if !res.Conflict {
		return fmt.Sprintf("no conflict (winner %s)", res.Winner)
	}
	return fmt.Sprintf("conflict resolved by %s: winner %s (local %s, external %s)",
		res.Policy, res.Winner,
		res.LocalModified.UTC().Format(time.RFC3339),
		res.ExternalModified.UTC().Format(time.RFC3339))
}
