// Package timeutil converts between time.Time and the nullable string
// representation used at serialization boundaries: SQLite TEXT columns
// and JSON fields that must distinguish "not set" from the zero time.
package timeutil

import "time"

// Ptr returns nil for the zero time, else a pointer to t formatted as
// RFC3339Nano in UTC.
func Ptr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// Format returns "" for the zero time, else t formatted as RFC3339Nano
// in UTC.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
