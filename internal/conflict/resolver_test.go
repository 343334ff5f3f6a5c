package conflict

import (
	"testing"
	"time"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func versions(localOffset, externalOffset time.Duration) (Version, Version) {
	return Version{ID: "L1", ModifiedAt: base.Add(localOffset)},
		Version{ID: "EXT1", ModifiedAt: base.Add(externalOffset)}
}

func TestResolve_WithinToleranceIsNotAConflict(t *testing.T) {
	r := NewResolver(MostRecentWins, time.Second)
	local, external := versions(0, 800*time.Millisecond)

	res := r.Resolve(SideExternal, local, external)
	if res.Conflict {
		t.Error("sub-tolerance difference flagged as conflict")
	}
	if res.Winner != SideExternal {
		t.Errorf("winner = %s, want the fresher side", res.Winner)
	}
}

func TestResolve_PolicyMatrix(t *testing.T) {
	// External was modified 10s after local: a genuine divergence.
	tests := []struct {
		policy Policy
		source Side
		want   Side
	}{
		{MostRecentWins, SideExternal, SideExternal},
		{MostRecentWins, SideLocal, SideExternal},
		{SourceWins, SideExternal, SideExternal}, // pull: external is source
		{SourceWins, SideLocal, SideLocal},       // push: local is source
		{TargetWins, SideLocal, SideLocal},       // system of record wins regardless
		{TargetWins, SideExternal, SideLocal},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy)+"/"+string(tt.source), func(t *testing.T) {
			r := NewResolver(tt.policy, time.Second)
			local, external := versions(0, 10*time.Second)

			res := r.Resolve(tt.source, local, external)
			if !res.Conflict {
				t.Fatal("10s divergence not flagged as conflict")
			}
			if res.Winner != tt.want {
				t.Errorf("winner = %s, want %s", res.Winner, tt.want)
			}
			if res.Policy != tt.policy {
				t.Errorf("recorded policy = %s, want %s", res.Policy, tt.policy)
			}
		})
	}
}

func TestResolve_MostRecentLocalWins(t *testing.T) {
	r := NewResolver(MostRecentWins, time.Second)
	local, external := versions(30*time.Second, 0)

	res := r.Resolve(SideExternal, local, external)
	if !res.Conflict || res.Winner != SideLocal {
		t.Errorf("conflict=%v winner=%s, want conflict with local winner", res.Conflict, res.Winner)
	}
}

func TestResolve_RecordsTimestampsForAudit(t *testing.T) {
	r := NewResolver(TargetWins, time.Second)
	local, external := versions(0, 10*time.Second)

	res := r.Resolve(SideLocal, local, external)
	if !res.LocalModified.Equal(local.ModifiedAt) || !res.ExternalModified.Equal(external.ModifiedAt) {
		t.Error("resolution does not carry both modification timestamps")
	}
	if res.String() == "" {
		t.Error("empty audit string")
	}
}

func TestNewResolver_DefaultTolerance(t *testing.T) {
	r := NewResolver(MostRecentWins, 0)
	local, external := versions(0, 900*time.Millisecond)

	if res := r.Resolve(SideExternal, local, external); res.Conflict {
		t.Error("default tolerance did not absorb a 900ms difference")
	}
}

func TestParsePolicy(t *testing.T) {
	for _, valid := range []string{"source_wins", "target_wins", "most_recent_wins"} {
		if _, err := ParsePolicy(valid); err != nil {
			t.Errorf("ParsePolicy(%q): %v", valid, err)
		}
	}
	if _, err := ParsePolicy("newest"); err == nil {
		t.Error("ParsePolicy accepted an unknown policy")
	}
}
