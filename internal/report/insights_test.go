package report

import (
	"testing"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

func TestInsights_Weekly(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{{ID: "s1"}, {ID: "s2"}},
		Records: []database.AttendanceRecord{
			rec("s1", "2026-03-02", database.StatusPresent),
			rec("s2", "2026-03-02", database.StatusPresent),
			rec("s1", "2026-03-03", database.StatusPresent),
			rec("s2", "2026-03-03", database.StatusAbsent),
			rec("s1", "2026-03-09", database.StatusPresent), // next week
		},
		Holidays: calendar.HolidaySet{"2026-03-04": "Holi"},
	}

	in, err := newTestBuilder().Insights(Weekly, date(t, "2026-03-05"), snap)
	if err != nil {
		t.Fatal(err)
	}

	if in.TotalStudents != 2 || in.WorkingDays != 5 || in.TotalPossible != 10 {
		t.Fatalf("unexpected totals %+v", in)
	}
	if in.TotalPresent != 3 || in.TotalAbsent != 7 {
		t.Errorf("present/absent = %d/%d, want 3/7", in.TotalPresent, in.TotalAbsent)
	}
	if in.Percentage != 30 {
		t.Errorf("percentage = %v, want 30", in.Percentage)
	}
	if len(in.DailyTrend) != 5 {
		t.Fatalf("expected 5 trend points, got %d", len(in.DailyTrend))
	}
	if in.DailyTrend[0].Label != "2 Mar" || in.DailyTrend[0].Present != 2 || in.DailyTrend[1].Present != 1 {
		t.Errorf("unexpected trend %+v", in.DailyTrend[:2])
	}
	if len(in.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", in.Warnings)
	}
}

func TestInsights_OneDecimal(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}},
		Records:  []database.AttendanceRecord{rec("s1", "2026-03-03", database.StatusPresent)},
	}
	in, err := newTestBuilder().Insights(Daily, date(t, "2026-03-03"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if in.Percentage != 33.3 {
		t.Errorf("percentage = %v, want 33.3", in.Percentage)
	}
	if in.DailyTrend != nil {
		t.Error("daily insights should not carry a trend")
	}
}

func TestInsights_ZeroPossible(t *testing.T) {
	in, err := newTestBuilder().Insights(Daily, date(t, "2026-03-08"), &Snapshot{Students: []database.Student{{ID: "s1"}}})
	if err != nil {
		t.Fatal(err)
	}
	if in.TotalPossible != 0 || in.Percentage != 0 {
		t.Errorf("expected zero possible and 0%%, got %+v", in)
	}
	if len(in.Warnings) != 1 {
		t.Errorf("expected zero working days warning, got %v", in.Warnings)
	}
}

func TestInsights_UnknownPeriod(t *testing.T) {
	if _, err := newTestBuilder().Insights("hourly", date(t, "2026-03-03"), &Snapshot{}); err == nil {
		t.Error("expected error")
	}
}

func TestInsights_PresentOnOffDayGoesNegative(t *testing.T) {
	var records []database.AttendanceRecord
	for _, d := range []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06", "2026-03-07", "2026-03-08"} {
		records = append(records, rec("s1", d, database.StatusPresent))
	}
	snap := &Snapshot{Students: []database.Student{{ID: "s1"}}, Records: records}

	in, err := newTestBuilder().Insights(Weekly, date(t, "2026-03-02"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if in.TotalPossible != 6 || in.TotalPresent != 7 {
		t.Fatalf("possible/present = %d/%d, want 6/7", in.TotalPossible, in.TotalPresent)
	}
	if in.TotalAbsent != -1 {
		t.Errorf("absent = %d, want -1", in.TotalAbsent)
	}
	if len(in.Warnings) != 1 || in.Warnings[0] != "present marks recorded on non-working days" {
		t.Errorf("unexpected warnings %v", in.Warnings)
	}
}
