package config

import (
	"testing"
	"time"
)

func TestParseChannelBoosts(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      map[string]float64
		wantError bool
	}{
		{
			name:  "empty",
			input: "",
			want:  map[string]float64{},
		},
		{
			name:  "single pair",
			input: "123=1.5",
			want:  map[string]float64{"123": 1.5},
		},
		{
			name:  "multiple pairs with spaces",
			input: "123=1.5, 456=2",
			want:  map[string]float64{"123": 1.5, "456": 2},
		},
		{
			name:  "trailing comma",
			input: "123=1.5,",
			want:  map[string]float64{"123": 1.5},
		},
		{
			name:      "missing multiplier",
			input:     "123",
			wantError: true,
		},
		{
			name:      "non-numeric multiplier",
			input:     "123=big",
			wantError: true,
		},
		{
			name:      "zero multiplier",
			input:     "123=0",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseChannelBoosts(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("parseChannelBoosts(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseChannelBoosts(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for id, mult := range tt.want {
				if got[id] != mult {
					t.Errorf("boost for %s = %v, want %v", id, got[id], mult)
				}
			}
		})
	}
}

func TestParseEventDays(t *testing.T) {
	got, err := parseEventDays(" 2026-01-01, 2026-07-04 ")
	if err != nil {
		t.Fatalf("parseEventDays: %v", err)
	}
	want := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d days, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("day %d = %v, want %v", i, got[i], want[i])
		}
	}

	if days, err := parseEventDays(""); err != nil || days != nil {
		t.Errorf("empty input should yield no days, got %v, %v", days, err)
	}

	if _, err := parseEventDays("July 4th"); err == nil {
		t.Error("expected error for unparseable date")
	}
}
