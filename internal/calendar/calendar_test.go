package calendar

import (
	"testing"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

var sundayOff = WeeklyOffRule{Day: time.Sunday}

func TestClassify(t *testing.T) {
	holidays := NewHolidaySet([]database.Holiday{
		{Date: "2026-03-04", Description: "Holi"},
		{Date: "2026-03-08", Description: "Sunday festival"},
	})

	tests := []struct {
		name string
		date string
		want DayKind
	}{
		{"plain weekday", "2026-03-03", Working},
		{"holiday", "2026-03-04", Holiday},
		{"weekly off", "2026-03-01", WeeklyOff},
		{"holiday on weekly off", "2026-03-08", Holiday},
		{"saturday", "2026-03-07", Working},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(mustDate(t, tt.date), holidays, sundayOff); got != tt.want {
				t.Errorf("Classify(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestClassify_ConfigurableOffDay(t *testing.T) {
	fridayOff := WeeklyOffRule{Day: time.Friday}
	if got := Classify(mustDate(t, "2026-03-06"), nil, fridayOff); got != WeeklyOff {
		t.Errorf("expected Friday to be weekly off, got %v", got)
	}
	if got := Classify(mustDate(t, "2026-03-01"), nil, fridayOff); got != Working {
		t.Errorf("expected Sunday to be working with Friday off, got %v", got)
	}
}

func TestDatesInRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantLen    int
	}{
		{"single day", "2026-03-04", "2026-03-04", 1},
		{"week", "2026-03-02", "2026-03-08", 7},
		{"leap february", "2024-02-01", "2024-02-29", 29},
		{"across year", "2025-12-30", "2026-01-02", 4},
		{"degenerate", "2026-03-04", "2026-03-03", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DatesInRange(mustDate(t, tt.start), mustDate(t, tt.end))
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d dates, got %d", tt.wantLen, len(got))
			}
			if tt.wantLen > 0 {
				if FormatDate(got[0]) != tt.start || FormatDate(got[len(got)-1]) != tt.end {
					t.Errorf("unexpected bounds %s..%s", FormatDate(got[0]), FormatDate(got[len(got)-1]))
				}
			}
		})
	}
}

func TestDatesInRange_NoDriftAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	start := time.Date(2026, 3, 28, 23, 30, 0, 0, loc)
	end := time.Date(2026, 3, 30, 0, 30, 0, 0, loc)

	got := DatesInRange(start, end)
	want := []string{"2026-03-28", "2026-03-29", "2026-03-30"}
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(got))
	}
	for i := range want {
		if FormatDate(got[i]) != want[i] {
			t.Errorf("date %d = %s, want %s", i, FormatDate(got[i]), want[i])
		}
	}
}

func TestWorkingDaysInRange(t *testing.T) {
	holidays := NewHolidaySet([]database.Holiday{{Date: "2026-03-04"}})

	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"full week minus holiday and sunday", "2026-03-02", "2026-03-08", 5},
		{"five weekdays", "2026-03-09", "2026-03-13", 5},
		{"only sunday", "2026-03-08", "2026-03-08", 0},
		{"degenerate", "2026-03-10", "2026-03-09", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WorkingDaysInRange(mustDate(t, tt.start), mustDate(t, tt.end), holidays, sundayOff)
			if got != tt.want {
				t.Errorf("WorkingDaysInRange() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWorkingDaysInRange_DegenerateForAnyDate(t *testing.T) {
	d := mustDate(t, "2026-01-01")
	for range 400 {
		if n := WorkingDaysInRange(d, d.AddDate(0, 0, -1), nil, sundayOff); n != 0 {
			t.Fatalf("expected 0 working days for %s..%s, got %d", FormatDate(d), FormatDate(d.AddDate(0, 0, -1)), n)
		}
		d = d.AddDate(0, 0, 1)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2026-13-01", "04/03/2026", "2026-02-30"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestDayKindMarker(t *testing.T) {
	if Holiday.Marker() != "H" || WeeklyOff.Marker() != "S" || Working.Marker() != "" {
		t.Error("unexpected markers")
	}
	if Holiday.String() != "holiday" {
		t.Errorf("unexpected String(): %s", Holiday.String())
	}
}

func TestHolidaySetDescription(t *testing.T) {
	set := NewHolidaySet([]database.Holiday{{Date: "2026-08-15", Description: "Independence Day"}})
	desc, ok := set.Description(mustDate(t, "2026-08-15"))
	if !ok || desc != "Independence Day" {
		t.Errorf("unexpected description %q, %v", desc, ok)
	}
	if _, ok := set.Description(mustDate(t, "2026-08-16")); ok {
		t.Error("expected no holiday")
	}
}
