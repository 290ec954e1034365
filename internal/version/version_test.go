package version

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		commit, built string
		want          string
	}{
		{"", "", "rig dev (commit: unknown, built: unknown)"},
		{"0123456789abcdef", "2025-03-01", "rig dev (commit: 0123456, built: 2025-03-01)"},
		{"abc", "now", "rig dev (commit: abc, built: now)"},
	}

	for _, tt := range tests {
		if got := format(tt.commit, tt.built); got != tt.want {
			t.Errorf("format(%q, %q) = %q, want %q", tt.commit, tt.built, got, tt.want)
		}
	}
}

func TestStringPrefersLinkerValues(t *testing.T) {
	Commit, BuildTime = "fedcba9876543210", "2025-03-01T12:00:00Z"
	defer func() { Commit, BuildTime = "", "" }()

	got := String()
	if !strings.Contains(got, "commit: fedcba9") || !strings.Contains(got, "built: 2025-03-01T12:00:00Z") {
		t.Errorf("String() = %q", got)
	}
}
