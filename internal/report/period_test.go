package report

import (
	"testing"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		anchor    string
		wantStart string
		wantEnd   string
	}{
		{"2026-03-02", "2026-03-02", "2026-03-08"}, // Monday
		{"2026-03-04", "2026-03-02", "2026-03-08"}, // Wednesday
		{"2026-03-07", "2026-03-02", "2026-03-08"}, // Saturday
		{"2026-03-08", "2026-03-02", "2026-03-08"}, // Sunday closes its week
		{"2026-01-01", "2025-12-29", "2026-01-04"}, // across the year
	}

	for _, tt := range tests {
		t.Run(tt.anchor, func(t *testing.T) {
			start, end := WeekRange(date(t, tt.anchor))
			if calendar.FormatDate(start) != tt.wantStart || calendar.FormatDate(end) != tt.wantEnd {
				t.Errorf("WeekRange(%s) = %s..%s, want %s..%s", tt.anchor,
					calendar.FormatDate(start), calendar.FormatDate(end), tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestWeekRange_EverySundayEndsItsWeek(t *testing.T) {
	d := date(t, "2026-01-04")
	for range 52 {
		start, end := WeekRange(d)
		if !end.Equal(d) || start.Weekday() != time.Monday || end.Sub(start) != 6*24*time.Hour {
			t.Fatalf("Sunday %s resolved to %s..%s", calendar.FormatDate(d), calendar.FormatDate(start), calendar.FormatDate(end))
		}
		d = d.AddDate(0, 0, 7)
	}
}

func TestResolveRange(t *testing.T) {
	tests := []struct {
		period    Period
		anchor    string
		wantStart string
		wantEnd   string
	}{
		{Daily, "2026-03-04", "2026-03-04", "2026-03-04"},
		{Weekly, "2026-03-04", "2026-03-02", "2026-03-08"},
		{Monthly, "2024-02-10", "2024-02-01", "2024-02-29"},
		{Monthly, "2026-12-31", "2026-12-01", "2026-12-31"},
		{Yearly, "2026-06-15", "2026-01-01", "2026-12-31"},
	}

	for _, tt := range tests {
		t.Run(string(tt.period)+"/"+tt.anchor, func(t *testing.T) {
			start, end, err := ResolveRange(tt.period, date(t, tt.anchor))
			if err != nil {
				t.Fatal(err)
			}
			if calendar.FormatDate(start) != tt.wantStart || calendar.FormatDate(end) != tt.wantEnd {
				t.Errorf("got %s..%s, want %s..%s", calendar.FormatDate(start), calendar.FormatDate(end), tt.wantStart, tt.wantEnd)
			}
		})
	}

	if _, _, err := ResolveRange("fortnightly", date(t, "2026-03-04")); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestParsePeriod(t *testing.T) {
	for _, s := range []string{"daily", "Weekly", " MONTHLY ", "yearly"} {
		if _, err := ParsePeriod(s); err != nil {
			t.Errorf("ParsePeriod(%q) failed: %v", s, err)
		}
	}
	for _, s := range []string{"", "custom", "hourly"} {
		if _, err := ParsePeriod(s); err == nil {
			t.Errorf("ParsePeriod(%q) should fail", s)
		}
	}
}
