// Package record defines the field map used for entity rows on both sides
// of a sync. A field that is absent from the map was never set; a field
// present with a nil value was explicitly cleared. The distinction matters
// because the external platform treats "omitted" and "null" differently on
// write.
package record

import (
	"fmt"
	"time"
)

// Record holds the fields of one entity row, keyed by field name.
type Record map[string]any

// Has reports whether the field is present, even if its value is nil.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// IsNull reports whether the field is present and explicitly null.
func (r Record) IsNull(field string) bool {
	v, ok := r[field]
	return ok && v == nil
}

// SetNull marks a field as explicitly cleared.
func (r Record) SetNull(field string) {
	r[field] = nil
}

// GetString returns the field as a string. The boolean is false when the
// field is absent, null, or not a string.
func (r Record) GetString(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetFloat returns the field as a float64, converting integer values.
func (r Record) GetFloat(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetBool returns the field as a bool.
func (r Record) GetBool(field string) (bool, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// GetTime returns the field as a timestamp. Accepts time.Time values and
// RFC 3339 strings (with or without sub-second precision); the result is
// always UTC.
func (r Record) GetTime(field string) (time.Time, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case string:
		parsed, err := ParseTime(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ParseTime parses a wire timestamp into canonical UTC form.
// Both RFC3339 and RFC3339Nano inputs are accepted.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatTime renders a timestamp in the canonical wire form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatTimeKey renders a timestamp with a fixed-width fractional part.
// RFC3339Nano trims trailing fractional zeros, so its strings do not sort
// lexicographically in time order; every column SQL compares as a string
// must be stored in this form instead. ParseTime reads both.
func FormatTimeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}
