// Package schema holds the declarative entity descriptors that drive the
// sync engine. A Schema is pure data: the field map between the external
// platform's object shape and the local table, the enum vocabulary
// translations, and the foreign-key relations that need ID translation.
// Everything downstream (transforms, batching, orchestration) is
// entity-agnostic and reads these descriptors.
package schema

import "fmt"

// Kind is the value type of a mapped field.
type Kind string

const (
	KindString Kind = "string"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindTime   Kind = "time"
)

// Field maps one external field to one local column.
type Field struct {
	External string // field name on the external platform
	Local    string // column name in the system of record
	Kind     Kind
	Required bool   // forward transform skips the record when absent
	Enum     string // name of an enum map in Schema.Enums, if vocabulary differs
}

// EnumMap translates one enum vocabulary between the two systems.
// Both directions are total: unknown input degrades to the default value
// rather than failing, and the caller counts the fallback.
type EnumMap struct {
	Forward        map[string]string // external value -> local value
	Reverse        map[string]string // local value -> external value
	ForwardDefault string
	ReverseDefault string
}

// MapForward translates an external enum value. The boolean is false when
// the default was used.
func (m EnumMap) MapForward(v string) (string, bool) {
	if out, ok := m.Forward[v]; ok {
		return out, true
	}
	return m.ForwardDefault, false
}

// MapReverse translates a local enum value. The boolean is false when the
// default was used.
func (m EnumMap) MapReverse(v string) (string, bool) {
	if out, ok := m.Reverse[v]; ok {
		return out, true
	}
	return m.ReverseDefault, false
}

// Relation declares a foreign key whose value must be translated between
// the two key spaces. The local column stores a local ID of the target
// entity; the external field stores the target's external object ID.
type Relation struct {
	Local    string // local FK column (e.g. "account_id")
	External string // external reference field (e.g. "AccountId")
	Target   string // entity name the FK points at
	Required bool   // forward transform skips the record when unresolvable
}

// Schema describes one synchronized entity type. Immutable after
// registration.
type Schema struct {
	Name      string // local entity name, also the table name
	External  string // external object name
	Fields    []Field
	Enums     map[string]EnumMap
	Relations []Relation

	// NumberField names the local column holding the human-facing record
	// number, when the entity has one. Pushed creates without a value get
	// one allocated from the run's sequence.
	NumberField string
}

// LocalColumns returns the declared local column names, fields first then
// relation FK columns, in registration order.
func (s Schema) LocalColumns() []string {
	cols := make([]string, 0, len(s.Fields)+len(s.Relations))
	for _, f := range s.Fields {
		cols = append(cols, f.Local)
	}
	for _, r := range s.Relations {
		cols = append(cols, r.Local)
	}
	return cols
}

// validate checks internal consistency of a schema. Relation targets are
// checked separately by Registry.Validate once all entities are known.
func (s Schema) validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema has no name")
	}
	if s.External == "" {
		return fmt.Errorf("schema %q has no external object name", s.Name)
	}
	seen := make(map[string]bool)
	for _, f := range s.Fields {
		if f.External == "" || f.Local == "" {
			return fmt.Errorf("schema %q: field with empty name (external=%q local=%q)", s.Name, f.External, f.Local)
		}
		if seen[f.Local] {
			return fmt.Errorf("schema %q: duplicate local column %q", s.Name, f.Local)
		}
		seen[f.Local] = true
		switch f.Kind {
		case KindString, KindFloat, KindBool, KindTime:
		default:
			return fmt.Errorf("schema %q: field %q has unknown kind %q", s.Name, f.Local, f.Kind)
		}
		if f.Enum != "" {
			if f.Kind != KindString {
				return fmt.Errorf("schema %q: enum field %q must be kind string", s.Name, f.Local)
			}
			if _, ok := s.Enums[f.Enum]; !ok {
				return fmt.Errorf("schema %q: field %q references unknown enum %q", s.Name, f.Local, f.Enum)
			}
		}
	}
	for _, r := range s.Relations {
		if r.Local == "" || r.External == "" || r.Target == "" {
			return fmt.Errorf("schema %q: incomplete relation (local=%q external=%q target=%q)", s.Name, r.Local, r.External, r.Target)
		}
		if seen[r.Local] {
			return fmt.Errorf("schema %q: relation column %q collides with a field", s.Name, r.Local)
		}
		seen[r.Local] = true
	}
	if s.NumberField != "" && !seen[s.NumberField] {
		return fmt.Errorf("schema %q: number field %q is not a declared column", s.Name, s.NumberField)
	}
	return nil
}
