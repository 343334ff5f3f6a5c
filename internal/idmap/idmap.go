// Package idmap builds the cross-system key translation tables used by the
// transform layer. Maps are rebuilt from current store contents at the
// start of every run and discarded afterwards, so transforms never issue
// queries mid-flight.
package idmap

import (
	"context"
	"fmt"
)

// Pair is one (local ID, external ID) link read from the system of record.
// ExternalID is empty for rows that have not been linked yet.
type Pair struct {
	LocalID    string
	ExternalID string
}

// PairLister is the slice of the local store the builder needs.
type PairLister interface {
	ListIDPairs(ctx context.Context, entity string) ([]Pair, error)
}

// Map is the bidirectional ID translation table for one entity type.
// It is a partial bijection: every local ID maps to at most one external
// ID and vice versa. Unlinked rows simply have no entry.
type Map struct {
	entity          string
	localToExternal map[string]string
	externalToLocal map[string]string
}

// NewMap returns an empty map for the entity.
func NewMap(entity string) *Map {
	return &Map{
		entity:          entity,
		localToExternal: make(map[string]string),
		externalToLocal: make(map[string]string),
	}
}

// Add records a link. Re-adding the identical pair is a no-op; linking
// either ID to a different counterpart is an error, because a silent
// re-link would resolve foreign keys to the wrong entity.
func (m *Map) Add(localID, externalID string) error {
	if localID == "" || externalID == "" {
		return fmt.Errorf("idmap %s: empty id in pair (%q, %q)", m.entity, localID, externalID)
	}
	if existing, ok := m.localToExternal[localID]; ok && existing != externalID {
		return fmt.Errorf("idmap %s: local %s already linked to %s, refusing relink to %s", m.entity, localID, existing, externalID)
	}
	if existing, ok := m.externalToLocal[externalID]; ok && existing != localID {
		return fmt.Errorf("idmap %s: external %s already linked to %s, refusing relink to %s", m.entity, externalID, existing, localID)
	}
	m.localToExternal[localID] = externalID
	m.externalToLocal[externalID] = localID
	return nil
}

// ExternalFor resolves a local ID to its external counterpart.
// The boolean is false for unlinked IDs; that is a normal state.
func (m *Map) ExternalFor(localID string) (string, bool) {
	ext, ok := m.localToExternal[localID]
	return ext, ok
}

// LocalFor resolves an external ID to its local counterpart.
func (m *Map) LocalFor(externalID string) (string, bool) {
	local, ok := m.externalToLocal[externalID]
	return local, ok
}

// Len returns the number of linked pairs.
func (m *Map) Len() int {
	return len(m.localToExternal)
}

// Entity returns the entity name the map covers.
func (m *Map) Entity() string {
	return m.entity
}

// Maps holds one Map per entity type for a run.
type Maps map[string]*Map

// For returns the map for an entity, or an empty map when the entity was
// not part of the build set. Lookups against the empty map behave as
// all-unlinked, which is the safe degradation.
func (ms Maps) For(entity string) *Map {
	if m, ok := ms[entity]; ok {
		return m
	}
	return NewMap(entity)
}

// Build reads the (localId, externalId) pairs for the requested entities
// in one pass each and returns the per-entity translation maps.
func Build(ctx context.Context, store PairLister, entities ...string) (Maps, error) {
	maps := make(Maps, len(entities))
	for _, entity := range entities {
		pairs, err := store.ListIDPairs(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("list id pairs for %s: %w", entity, err)
		}
		m := NewMap(entity)
		for _, p := range pairs {
			if p.ExternalID == "" {
				continue // not yet linked
			}
			if err := m.Add(p.LocalID, p.ExternalID); err != nil {
				return nil, err
			}
		}
		maps[entity] = m
	}
	return maps, nil
}
