package report

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

func newTestBuilder() *Builder {
	return NewBuilder(calendar.WeeklyOffRule{Day: time.Sunday})
}

func rec(studentID, date string, status database.AttendanceStatus) database.AttendanceRecord {
	return database.AttendanceRecord{StudentID: studentID, Date: date, Status: status, Method: database.MethodManual}
}

func cellStrings(cells []Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String()
	}
	return out
}

func TestBuildRange_PercentageScenario(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{{ID: "s1", Name: "Asha", RollNo: "01"}},
		Records: []database.AttendanceRecord{
			rec("s1", "2026-03-09", database.StatusPresent),
			rec("s1", "2026-03-10", database.StatusAbsent),
			rec("s1", "2026-03-11", database.StatusPresent),
			rec("s1", "2026-03-13", database.StatusPresent),
		},
	}

	m := newTestBuilder().BuildRange(date(t, "2026-03-09"), date(t, "2026-03-13"), snap)
	row := m.Rows[0]
	if row.WorkingDays != 5 || row.Present != 3 {
		t.Fatalf("expected 3/5, got %d/%d", row.Present, row.WorkingDays)
	}
	if row.Percentage == nil || *row.Percentage != 60 {
		t.Fatalf("expected 60%%, got %v", row.Percentage)
	}

	want := []string{"Asha", "01", "P", "A", "P", "A", "P", "3", "60%"}
	if got := cellStrings(row.Cells); !reflect.DeepEqual(got, want) {
		t.Errorf("cells = %v, want %v", got, want)
	}
}

func TestBuild_WeeklyMarkers(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{
			{ID: "s1", Name: "Asha", RollNo: "01"},
			{ID: "s2", Name: "Ravi", RollNo: "02"},
		},
		Records: []database.AttendanceRecord{
			rec("s1", "2026-03-02", database.StatusPresent),
			rec("s1", "2026-03-04", database.StatusPresent), // on a holiday, ignored
			rec("s1", "2026-03-08", database.StatusPresent), // on Sunday, ignored
			rec("s2", "2026-03-03", database.StatusPresent),
		},
		Holidays: calendar.HolidaySet{"2026-03-04": "Holi"},
	}

	m, err := newTestBuilder().Build(Weekly, date(t, "2026-03-08"), snap)
	if err != nil {
		t.Fatal(err)
	}

	wantHeader := []string{"Student", "Roll No", "Mon 2", "Tue 3", "Wed 4", "Thu 5", "Fri 6", "Sat 7", "Sun 8", "Total Present", "Percentage"}
	if !reflect.DeepEqual(m.Header, wantHeader) {
		t.Fatalf("header = %v, want %v", m.Header, wantHeader)
	}
	if len(m.Dates) != 7 || m.Dates[0] != "2026-03-02" || m.Dates[6] != "2026-03-08" {
		t.Errorf("unexpected dates %v", m.Dates)
	}

	want := [][]string{
		{"Asha", "01", "P", "A", "H", "A", "A", "A", "S", "1", "20%"},
		{"Ravi", "02", "A", "P", "H", "A", "A", "A", "S", "1", "20%"},
	}
	for i, row := range m.Rows {
		if got := cellStrings(row.Cells); !reflect.DeepEqual(got, want[i]) {
			t.Errorf("row %d = %v, want %v", i, got, want[i])
		}
		if row.WorkingDays != 5 {
			t.Errorf("row %d: working days %d, want 5", i, row.WorkingDays)
		}
	}
}

func TestBuild_HolidayOnSundayRendersHoliday(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{{ID: "s1", Name: "Asha", RollNo: "01"}},
		Holidays: calendar.HolidaySet{"2026-03-08": "Festival"},
	}
	m, err := newTestBuilder().Build(Weekly, date(t, "2026-03-04"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Rows[0].Cells[8].String(); got != "H" {
		t.Errorf("expected H on holiday Sunday, got %s", got)
	}
}

func TestBuild_Daily(t *testing.T) {
	conf := 0.8
	snap := &Snapshot{
		Students: []database.Student{
			{ID: "s1", Name: "Asha", RollNo: "01"},
			{ID: "s2", Name: "Ravi", RollNo: "02"},
		},
		Records: []database.AttendanceRecord{
			{StudentID: "s1", Date: "2026-03-03", Status: database.StatusPresent, Method: database.MethodFaceScan, Confidence: &conf},
		},
	}

	m, err := newTestBuilder().Build(Daily, date(t, "2026-03-03"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.Header, []string{"Student Name", "Roll No", "Status", "Method"}) {
		t.Fatalf("unexpected header %v", m.Header)
	}
	if got := cellStrings(m.Rows[0].Cells); !reflect.DeepEqual(got, []string{"Asha", "01", "Present", "FaceScan"}) {
		t.Errorf("row 0 = %v", got)
	}
	if got := cellStrings(m.Rows[1].Cells); !reflect.DeepEqual(got, []string{"Ravi", "02", "Absent", "N/A"}) {
		t.Errorf("row 1 = %v", got)
	}
	if *m.Rows[0].Percentage != 100 || *m.Rows[1].Percentage != 0 {
		t.Errorf("unexpected percentages")
	}
}

func TestBuild_DailyOnHoliday(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{{ID: "s1", Name: "Asha", RollNo: "01"}},
		Holidays: calendar.HolidaySet{"2026-03-04": "Holi"},
	}
	m, err := newTestBuilder().Build(Daily, date(t, "2026-03-04"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows[0].Cells[2].String() != "Holiday" || m.Rows[0].Percentage != nil {
		t.Errorf("expected Holiday status with undefined percentage, got %v", cellStrings(m.Rows[0].Cells))
	}
}

func TestBuild_MonthlyHeader(t *testing.T) {
	snap := &Snapshot{Students: []database.Student{{ID: "s1", Name: "Asha", RollNo: "01"}}}
	m, err := newTestBuilder().Build(Monthly, date(t, "2026-02-14"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Header) != 2+28+2 {
		t.Fatalf("expected 32 columns for February 2026, got %d", len(m.Header))
	}
	if m.Header[2] != "1" || m.Header[29] != "28" {
		t.Errorf("unexpected day headings %s..%s", m.Header[2], m.Header[29])
	}
	// February 2026 has 4 Sundays.
	if m.Rows[0].WorkingDays != 24 {
		t.Errorf("expected 24 working days, got %d", m.Rows[0].WorkingDays)
	}
}

func TestBuild_Yearly(t *testing.T) {
	snap := &Snapshot{
		Students: []database.Student{{ID: "s1", Name: "Asha", RollNo: "01"}},
		Records: []database.AttendanceRecord{
			rec("s1", "2026-03-02", database.StatusPresent),
			rec("s1", "2025-03-03", database.StatusPresent), // other year
		},
	}

	m, err := newTestBuilder().Build(Yearly, date(t, "2026-07-01"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Header) != 15 || m.Header[2] != "Jan" || m.Header[13] != "Dec" || m.Header[14] != "Total %" {
		t.Fatalf("unexpected header %v", m.Header)
	}

	row := m.Rows[0]
	if len(row.Cells) != 15 {
		t.Fatalf("expected 15 cells, got %d", len(row.Cells))
	}
	// March 2026: 31 days, 5 Sundays, 26 working days, 1 present -> 4%.
	if got := row.Cells[4].String(); got != "4%" {
		t.Errorf("March = %s, want 4%%", got)
	}
	if got := row.Cells[2].String(); got != "0%" {
		t.Errorf("January = %s, want 0%%", got)
	}
	if row.Present != 1 || row.WorkingDays != 365-52 {
		t.Errorf("annual totals %d/%d, want 1/%d", row.Present, row.WorkingDays, 365-52)
	}
	if got := row.Cells[14].String(); got != "0%" {
		t.Errorf("annual = %s, want 0%%", got)
	}
}

func TestBuildRange_Degenerate(t *testing.T) {
	snap := &Snapshot{Students: []database.Student{{ID: "s1", Name: "Asha", RollNo: "01"}}}
	m := newTestBuilder().BuildRange(date(t, "2026-03-10"), date(t, "2026-03-09"), snap)

	if !reflect.DeepEqual(m.Header, []string{"Student", "Roll No", "Total Present", "Percentage"}) {
		t.Fatalf("unexpected header %v", m.Header)
	}
	if len(m.Rows) != 1 {
		t.Fatalf("expected a row per student, got %d", len(m.Rows))
	}
	if m.Rows[0].Percentage != nil || m.Rows[0].Cells[3].String() != "N/A" {
		t.Errorf("expected undefined percentage, got %v", cellStrings(m.Rows[0].Cells))
	}
}

func TestBuild_NoStudents(t *testing.T) {
	m, err := newTestBuilder().Build(Weekly, date(t, "2026-03-04"), &Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Rows) != 0 || len(m.Header) != 11 {
		t.Errorf("expected empty rows with full header, got %d rows, %d columns", len(m.Rows), len(m.Header))
	}
}

func TestBuild_CustomLabels(t *testing.T) {
	b := newTestBuilder()
	b.Labels = NewLabels(
		[]string{"So", "Po", "Út", "St", "Čt", "Pá", "So"},
		[]string{"led", "úno", "bře", "dub", "kvě", "čvn", "čvc", "srp", "zář", "říj", "lis", "pro"},
	)
	m, err := b.Build(Weekly, date(t, "2026-03-04"), &Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Header[2] != "Po 2" {
		t.Errorf("expected localized weekday heading, got %s", m.Header[2])
	}

	if l := NewLabels([]string{"x"}, nil); l.Weekdays[1] != "Mon" || l.Months[0] != "Jan" {
		t.Error("short label lists should fall back to defaults")
	}
}

func TestMatrixTableAndJSON(t *testing.T) {
	m := &Matrix{
		Header: []string{"Student", "Total Present"},
		Rows:   []Row{{StudentID: "s1", Cells: []Cell{Text("Asha"), Number(3)}}},
	}
	head, body := m.Table()
	if !reflect.DeepEqual(head, m.Header) || !reflect.DeepEqual(body, [][]string{{"Asha", "3"}}) {
		t.Errorf("unexpected table %v %v", head, body)
	}

	data, err := json.Marshal(m.Rows[0].Cells)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["Asha",3]` {
		t.Errorf("unexpected JSON %s", data)
	}

	var cells []Cell
	if err := json.Unmarshal(data, &cells); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cells, m.Rows[0].Cells) {
		t.Errorf("round trip mismatch: %+v", cells)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		present, total int
		want           string
	}{
		{3, 5, "60%"},
		{1, 3, "33%"},
		{2, 3, "67%"},
		{1, 8, "13%"}, // 12.5 rounds up
		{0, 0, "N/A"},
		{0, 4, "0%"},
	}
	for _, tt := range tests {
		if got := FormatPercent(Percent(tt.present, tt.total)); got != tt.want {
			t.Errorf("Percent(%d, %d) = %s, want %s", tt.present, tt.total, got, tt.want)
		}
	}
}
