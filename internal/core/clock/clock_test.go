package clock

import (
	"testing"
	"time"
)

func TestFormatSortsLexically(t *testing.T) {
	earlier := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	later := earlier.Add(1500 * time.Millisecond)

	a, b := Format(earlier), Format(later)
	if a >= b {
		t.Errorf("Format(%v) = %q should sort before Format(%v) = %q", earlier, a, later, b)
	}
	if a != "2025-01-02T03:04:05.000Z" {
		t.Errorf("Format() = %q, want %q", a, "2025-01-02T03:04:05.000Z")
	}
}

func TestParse(t *testing.T) {
	want := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "canonical layout", input: "2025-06-07T08:09:10.000Z"},
		{name: "rfc3339", input: "2025-06-07T08:09:10Z"},
		{name: "sqlite current_timestamp", input: "2025-06-07 08:09:10"},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "yesterday-ish", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}
