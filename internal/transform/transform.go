// Package transform converts records between the external platform's
// shape and the local one, in both directions. Transforms are pure: ID
// translation uses the pre-built maps, never queries. A record that
// cannot be converted because a required reference is unresolved is a
// Skip, counted and reported separately from hard failures; malformed
// data is a hard error.
package transform

import (
	"fmt"

	"github.com/hyperengineering/fieldbridge/internal/idmap"
	"github.com/hyperengineering/fieldbridge/internal/record"
	"github.com/hyperengineering/fieldbridge/internal/schema"
)

// Skip explains why a record was left out of a run. Not an error: the
// record re-enters the window on the next run once its references link.
type Skip struct {
	Entity string
	Field  string
	Reason string
}

func (s *Skip) String() string {
	return fmt.Sprintf("%s.%s: %s", s.Entity, s.Field, s.Reason)
}

// Counters aggregates per-run transform statistics.
type Counters struct {
	Skipped      int // records skipped (unresolved required reference or missing required field)
	EnumDefaults int // enum values that fell back to the schema default
}

func (c *Counters) skip() {
	if c != nil {
		c.Skipped++
	}
}

func (c *Counters) enumDefault() {
	if c != nil {
		c.EnumDefaults++
	}
}

// Forward converts an external record into local shape: field renames,
// enum vocabulary translation, and foreign-key substitution through the
// ID maps. A nil record with a non-nil Skip means "leave this one out".
func Forward(sch schema.Schema, ext record.Record, maps idmap.Maps, counters *Counters) (record.Record, *Skip, error) {
	local := make(record.Record, len(sch.Fields)+len(sch.Relations))

	for _, f := range sch.Fields {
		if !ext.Has(f.External) {
			if f.Required {
				counters.skip()
				return nil, &Skip{Entity: sch.Name, Field: f.External, Reason: "required field absent"}, nil
			}
			continue // absent optional stays unset
		}
		if ext.IsNull(f.External) {
			local.SetNull(f.Local)
			continue
		}

		v, err := convertForward(sch, f, ext, counters)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", sch.Name, f.External, err)
		}
		local[f.Local] = v
	}

	for _, r := range sch.Relations {
		extID, ok := ext.GetString(r.External)
		if !ok || extID == "" {
			if r.Required {
				counters.skip()
				return nil, &Skip{Entity: sch.Name, Field: r.External, Reason: "required reference absent"}, nil
			}
			if ext.Has(r.External) {
				local.SetNull(r.Local)
			}
			continue
		}

		localID, ok := maps.For(r.Target).LocalFor(extID)
		if !ok {
			if r.Required {
				counters.skip()
				return nil, &Skip{Entity: sch.Name, Field: r.External, Reason: fmt.Sprintf("no local %s for %s", r.Target, extID)}, nil
			}
			// Optional and unlinked: explicitly null, never a wrong guess.
			local.SetNull(r.Local)
			continue
		}
		local[r.Local] = localID
	}

	return local, nil, nil
}

// Reverse converts a local record into external shape. Unset local fields
// are omitted entirely: the platform distinguishes "omitted" from
// "explicitly cleared", and only present-but-null fields clear.
func Reverse(sch schema.Schema, local record.Record, maps idmap.Maps, counters *Counters) (record.Record, *Skip, error) {
	ext := make(record.Record, len(sch.Fields)+len(sch.Relations))

	for _, f := range sch.Fields {
		if !local.Has(f.Local) {
			continue
		}
		if local.IsNull(f.Local) {
			ext.SetNull(f.External)
			continue
		}

		v, err := convertReverse(sch, f, local, counters)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", sch.Name, f.Local, err)
		}
		ext[f.External] = v
	}

	for _, r := range sch.Relations {
		localID, ok := local.GetString(r.Local)
		if !ok || localID == "" {
			if local.IsNull(r.Local) {
				ext.SetNull(r.External)
			}
			continue
		}

		extID, ok := maps.For(r.Target).ExternalFor(localID)
		if !ok {
			if r.Required {
				counters.skip()
				return nil, &Skip{Entity: sch.Name, Field: r.Local, Reason: fmt.Sprintf("%s %s not yet pushed", r.Target, localID)}, nil
			}
			// Optional unlinked reference: omit rather than send a local ID.
			continue
		}
		ext[r.External] = extID
	}

	return ext, nil, nil
}

func convertForward(sch schema.Schema, f schema.Field, ext record.Record, counters *Counters) (any, error) {
	switch f.Kind {
	case schema.KindString:
		s, ok := ext.GetString(f.External)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", ext[f.External])
		}
		if f.Enum != "" {
			// Enum maps are total; unknown input degrades to the default.
			return translateEnum(sch.Enums[f.Enum], s, true, counters), nil
		}
		return s, nil
	case schema.KindFloat:
		n, ok := ext.GetFloat(f.External)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", ext[f.External])
		}
		return n, nil
	case schema.KindBool:
		b, ok := ext.GetBool(f.External)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", ext[f.External])
		}
		return b, nil
	case schema.KindTime:
		t, ok := ext.GetTime(f.External)
		if !ok {
			return nil, fmt.Errorf("expected timestamp, got %v", ext[f.External])
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", f.Kind)
	}
}

func convertReverse(sch schema.Schema, f schema.Field, local record.Record, counters *Counters) (any, error) {
	switch f.Kind {
	case schema.KindString:
		s, ok := local.GetString(f.Local)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", local[f.Local])
		}
		if f.Enum != "" {
			return translateEnum(sch.Enums[f.Enum], s, false, counters), nil
		}
		return s, nil
	case schema.KindFloat:
		n, ok := local.GetFloat(f.Local)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", local[f.Local])
		}
		return n, nil
	case schema.KindBool:
		b, ok := local.GetBool(f.Local)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", local[f.Local])
		}
		return b, nil
	case schema.KindTime:
		t, ok := local.GetTime(f.Local)
		if !ok {
			return nil, fmt.Errorf("expected timestamp, got %v", local[f.Local])
		}
		// The wire format is the canonical string form.
		return record.FormatTime(t), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", f.Kind)
	}
}

func translateEnum(m schema.EnumMap, v string, forward bool, counters *Counters) string {
	var out string
	var exact bool
	if forward {
		out, exact = m.MapForward(v)
	} else {
		out, exact = m.MapReverse(v)
	}
	if !exact {
		counters.enumDefault()
	}
	return out
}
