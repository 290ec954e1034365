// Package clock formats and parses the timestamps stored in the database.
//
// Timestamps are stored as UTC text with millisecond precision so that
// lexical ordering in SQL matches chronological ordering.
package clock

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical stored timestamp layout.
const Layout = "2006-01-02T15:04:05.000Z"

// legacyLayouts are accepted when reading rows written by other tools
// (SQLite's CURRENT_TIMESTAMP, plain RFC3339).
var legacyLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
}

// Format renders t in the canonical stored layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Now returns the current time in the canonical stored layout.
func Now() string {
	return Format(time.Now())
}

// Parse parses a stored timestamp. Timestamps without a zone are UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
