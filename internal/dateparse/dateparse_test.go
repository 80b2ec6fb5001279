package dateparse

import (
	"testing"
	"time"
)

func TestParse_Formats(t *testing.T) {
	n := Default()

	tests := []struct {
		name  string
		input string
		want  string // YYYY-MM-DD
		ok    bool
	}{
		{"iso", "2024-01-10", "2024-01-10", true},
		{"iso slash", "2024/01/10", "2024-01-10", true},
		{"iso dotted", "2024.01.10", "2024-01-10", true},
		{"compact", "20240110", "2024-01-10", true},
		{"day first slash", "10/01/2024", "2024-01-10", true},
		{"day first dash", "10-01-2024", "2024-01-10", true},
		{"day first dotted", "10.01.2024", "2024-01-10", true},
		{"long month", "January 10, 2024", "2024-01-10", true},
		{"long month day first", "10 January 2024", "2024-01-10", true},
		{"abbrev month", "Jan 10, 2024", "2024-01-10", true},
		{"abbrev month day first", "10 Jan 2024", "2024-01-10", true},
		{"rfc3339 fallback", "2024-01-10T15:04:05+05:00", "2024-01-10", true},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"garbage", "not a date", "", false},
		{"impossible day", "45/45/2024", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Parse(tt.input)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, got.Format("2006-01-02"), tt.want)
			}
		})
	}
}

// The numeric day/month forms are genuinely ambiguous; the configured order
// decides. This pins the behavior down rather than guessing a locale.
func TestParse_AmbiguousDayMonthOrder(t *testing.T) {
	dayFirst := New(Options{DayFirst: true})
	monthFirst := New(Options{DayFirst: false})

	got, ok := dayFirst.Parse("03/04/2024")
	if !ok || got.Format("2006-01-02") != "2024-04-03" {
		t.Errorf("day-first: got %v ok=%v, want 2024-04-03", got, ok)
	}

	got, ok = monthFirst.Parse("03/04/2024")
	if !ok || got.Format("2006-01-02") != "2024-03-04" {
		t.Errorf("month-first: got %v ok=%v, want 2024-03-04", got, ok)
	}
}

func TestParse_ExtraLayoutsWin(t *testing.T) {
	n := New(Options{ExtraLayouts: []string{"2006|01|02"}})
	got, ok := n.Parse("2024|01|10")
	if !ok || got.Format("2006-01-02") != "2024-01-10" {
		t.Errorf("got %v ok=%v, want 2024-01-10", got, ok)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 13, 1, 0, 0, 0, time.UTC)

	if got := DaysBetween(a, b); got != 3 {
		t.Errorf("DaysBetween = %d, want 3", got)
	}
	if got := DaysBetween(b, a); got != 3 {
		t.Errorf("DaysBetween reversed = %d, want 3", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("DaysBetween same = %d, want 0", got)
	}
}
