package idmap

import (
	"context"
	"strings"
	"testing"
)

type fakeLister struct {
	pairs map[string][]Pair
	err   error
}

func (f *fakeLister) ListIDPairs(ctx context.Context, entity string) ([]Pair, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pairs[entity], nil
}

func TestMap_BidirectionalLookup(t *testing.T) {
	m := NewMap("account")
	if err := m.Add("L1", "EXT1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if ext, ok := m.ExternalFor("L1"); !ok || ext != "EXT1" {
		t.Errorf("ExternalFor = %q, %v", ext, ok)
	}
	if local, ok := m.LocalFor("EXT1"); !ok || local != "L1" {
		t.Errorf("LocalFor = %q, %v", local, ok)
	}
	if _, ok := m.ExternalFor("L2"); ok {
		t.Error("unlinked local resolved")
	}
	if _, ok := m.LocalFor("EXT2"); ok {
		t.Error("unlinked external resolved")
	}
}

func TestMap_RejectsRelink(t *testing.T) {
	m := NewMap("account")
	if err := m.Add("L1", "EXT1"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Identical pair is idempotent.
	if err := m.Add("L1", "EXT1"); err != nil {
		t.Errorf("re-adding identical pair: %v", err)
	}

	if err := m.Add("L1", "EXT2"); err == nil {
		t.Error("relinking local to different external succeeded")
	}
	if err := m.Add("L2", "EXT1"); err == nil {
		t.Error("relinking external to different local succeeded")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d after rejected relinks", m.Len())
	}
}

func TestBuild_SkipsUnlinkedRows(t *testing.T) {
	lister := &fakeLister{pairs: map[string][]Pair{
		"account": {
			{LocalID: "L1", ExternalID: "EXT1"},
			{LocalID: "L2", ExternalID: ""}, // created locally, never pushed
			{LocalID: "L3", ExternalID: "EXT3"},
		},
		"contact": {},
	}}

	maps, err := Build(context.Background(), lister, "account", "contact")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := maps.For("account").Len(); got != 2 {
		t.Errorf("account map len = %d, want 2", got)
	}
	if _, ok := maps.For("account").ExternalFor("L2"); ok {
		t.Error("unlinked row got an external id")
	}
	if got := maps.For("contact").Len(); got != 0 {
		t.Errorf("contact map len = %d, want 0", got)
	}
}

func TestBuild_DuplicateExternalFails(t *testing.T) {
	lister := &fakeLister{pairs: map[string][]Pair{
		"account": {
			{LocalID: "L1", ExternalID: "EXT1"},
			{LocalID: "L2", ExternalID: "EXT1"},
		},
	}}

	_, err := Build(context.Background(), lister, "account")
	if err == nil {
		t.Fatal("expected error for duplicate external id")
	}
	if !strings.Contains(err.Error(), "EXT1") {
		t.Errorf("error does not name the conflicting id: %v", err)
	}
}

func TestMaps_ForUnknownEntityIsEmpty(t *testing.T) {
	maps := Maps{}
	m := maps.For("ghost")
	if m.Len() != 0 {
		t.Errorf("Len = %d", m.Len())
	}
	if _, ok := m.ExternalFor("L1"); ok {
		t.Error("empty map resolved an id")
	}
}
