package domain

import (
	"sort"
	"testing"
	"time"
)

func TestFormatStamp_OrderMatchesTime(t *testing.T) {
	base := time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(26 * time.Hour),
		base,
		base.Add(-30 * time.Minute),
		base.Add(90 * 24 * time.Hour),
		base.Add(5 * time.Minute),
	}

	stamps := make([]string, len(times))
	for i, tt := range times {
		stamps[i] = FormatStamp(tt)
	}

	sort.Strings(stamps)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	for i := range times {
		if want := FormatStamp(times[i]); stamps[i] != want {
			t.Fatalf("position %d: string order gave %s, chronological order gave %s", i, stamps[i], want)
		}
	}
}

func TestParseStamp_RoundTrip(t *testing.T) {
	got, err := ParseStamp("2025-06-15 08:03", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if FormatStamp(got) != "2025-06-15 08:03" {
		t.Fatalf("round trip gave %s", FormatStamp(got))
	}
}

func TestClockPart(t *testing.T) {
	if got := ClockPart("2025-06-15 08:00"); got != "08:00" {
		t.Fatalf("want 08:00, got %s", got)
	}
	if got := ClockPart("20:00"); got != "20:00" {
		t.Fatalf("want 20:00, got %s", got)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"08:00", "08:00", false},
		{"8:00", "08:00", false},
		{" 20:30 ", "20:30", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"noon", "", true},
		{"12", "", true},
	}
	for _, c := range cases {
		got, err := ParseTimeOfDay(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): want error, got %q", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseTimeOfDay(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseTimesOfDay(t *testing.T) {
	got, err := ParseTimesOfDay("8:00, 20:00 8:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != "08:00" || got[1] != "20:00" {
		t.Fatalf("want [08:00 20:00], got %v", got)
	}

	if _, err := ParseTimesOfDay("  "); err == nil {
		t.Fatal("want error for empty input")
	}
	if _, err := ParseTimesOfDay("08:00, 25:00"); err == nil {
		t.Fatal("want error for invalid time in list")
	}
}
