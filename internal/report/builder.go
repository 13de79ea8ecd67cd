// Package report turns attendance records and a school calendar into register matrices
// and summary statistics. Building a report is a pure computation over the snapshot the
// caller passes in.
package report

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

// Labels are the short weekday and month names used in column headings.
type Labels struct {
	Weekdays [7]string  // indexed by time.Weekday
	Months   [12]string // January first
}

// DefaultLabels uses English three letter names.
func DefaultLabels() Labels {
	var l Labels
	for d := time.Sunday; d <= time.Saturday; d++ {
		l.Weekdays[d] = d.String()[:3]
	}
	for m := time.January; m <= time.December; m++ {
		l.Months[m-1] = m.String()[:3]
	}
	return l
}

// NewLabels builds Labels from configured names. Missing or short lists fall back to the defaults.
func NewLabels(weekdays, months []string) Labels {
	l := DefaultLabels()
	if len(weekdays) == 7 {
		copy(l.Weekdays[:], weekdays)
	}
	if len(months) == 12 {
		copy(l.Months[:], months)
	}
	return l
}

// Snapshot is the consistent input of a report: the students of one class, their records
// covering at least the report range, and the school's holidays.
type Snapshot struct {
	Students []database.Student
	Records  []database.AttendanceRecord
	Holidays calendar.HolidaySet
}

type recordIndex map[database.RecordKey]*database.AttendanceRecord

func (s *Snapshot) index() recordIndex {
	idx := make(recordIndex, len(s.Records))
	for i := range s.Records {
		idx[s.Records[i].Key()] = &s.Records[i]
	}
	return idx
}

func (idx recordIndex) present(studentID, date string) bool {
	r, ok := idx[database.RecordKey{StudentID: studentID, Date: date}]
	return ok && r.Status == database.StatusPresent
}

// Builder builds reports for schools sharing one weekly off-day.
type Builder struct {
	OffRule calendar.WeeklyOffRule
	Labels  Labels
}

// NewBuilder creates a builder with default labels.
func NewBuilder(offRule calendar.WeeklyOffRule) *Builder {
	return &Builder{OffRule: offRule, Labels: DefaultLabels()}
}

// Build resolves period around anchor and builds its register.
func (b *Builder) Build(period Period, anchor time.Time, snap *Snapshot) (*Matrix, error) {
	start, end, err := ResolveRange(period, anchor)
	if err != nil {
		return nil, err
	}

	switch period {
	case Daily:
		return b.daily(start, snap), nil
	case Weekly:
		return b.grid(Weekly, start, end, snap, b.weekdayHeading), nil
	case Monthly:
		return b.grid(Monthly, start, end, snap, dayHeading), nil
	case Yearly:
		return b.yearly(start.Year(), snap), nil
	}
	return nil, fmt.Errorf("unknown report period %q", period)
}

// BuildRange builds a per-date register over an explicit range. start after end yields
// rows without date columns and undefined percentages.
func (b *Builder) BuildRange(start, end time.Time, snap *Snapshot) *Matrix {
	return b.grid(Custom, calendar.Midnight(start), calendar.Midnight(end), snap, b.weekdayHeading)
}

func (b *Builder) weekdayHeading(d time.Time) string {
	return b.Labels.Weekdays[d.Weekday()] + " " + strconv.Itoa(d.Day())
}

func dayHeading(d time.Time) string {
	return strconv.Itoa(d.Day())
}

func (b *Builder) daily(day time.Time, snap *Snapshot) *Matrix {
	date := calendar.FormatDate(day)
	kind := calendar.Classify(day, snap.Holidays, b.OffRule)
	idx := snap.index()

	m := &Matrix{
		Title:  "Daily Attendance Report (" + date + ")",
		Period: Daily,
		Start:  date,
		End:    date,
		Header: []string{"Student Name", "Roll No", "Status", "Method"},
		Rows:   make([]Row, 0, len(snap.Students)),
	}

	for _, s := range snap.Students {
		row := Row{StudentID: s.ID}
		status, method := string(database.StatusAbsent), constants.NotAvailable
		if r, ok := idx[database.RecordKey{StudentID: s.ID, Date: date}]; ok {
			status, method = string(r.Status), string(r.Method)
		}

		switch kind {
		case calendar.Holiday:
			status = "Holiday"
		case calendar.WeeklyOff:
			status = "Weekly Off"
		default:
			row.WorkingDays = 1
			if idx.present(s.ID, date) {
				row.Present = 1
			}
		}
		row.Percentage = Percent(row.Present, row.WorkingDays)
		row.Cells = []Cell{Text(s.Name), Text(s.RollNo), Text(status), Text(method)}
		m.Rows = append(m.Rows, row)
	}
	return m
}

func (b *Builder) grid(period Period, start, end time.Time, snap *Snapshot, heading func(time.Time) string) *Matrix {
	dates := calendar.DatesInRange(start, end)
	kinds := make([]calendar.DayKind, len(dates))
	keys := make([]string, len(dates))

	m := &Matrix{
		Title:  fmt.Sprintf("%s Attendance Report (%s to %s)", titleCase(period), calendar.FormatDate(start), calendar.FormatDate(end)),
		Period: period,
		Start:  calendar.FormatDate(start),
		End:    calendar.FormatDate(end),
		Header: make([]string, 0, len(dates)+4),
		Rows:   make([]Row, 0, len(snap.Students)),
		Dates:  make([]string, 0, len(dates)),
	}
	m.Header = append(m.Header, "Student", "Roll No")
	for i, d := range dates {
		kinds[i] = calendar.Classify(d, snap.Holidays, b.OffRule)
		keys[i] = calendar.FormatDate(d)
		m.Header = append(m.Header, heading(d))
		m.Dates = append(m.Dates, keys[i])
	}
	m.Header = append(m.Header, "Total Present", "Percentage")

	idx := snap.index()
	for _, s := range snap.Students {
		row := Row{StudentID: s.ID, Cells: make([]Cell, 0, len(dates)+4)}
		row.Cells = append(row.Cells, Text(s.Name), Text(s.RollNo))

		for i := range dates {
			if kinds[i] != calendar.Working {
				row.Cells = append(row.Cells, Text(kinds[i].Marker()))
				continue
			}
			row.WorkingDays++
			if idx.present(s.ID, keys[i]) {
				row.Present++
				row.Cells = append(row.Cells, Text(constants.MarkerPresent))
			} else {
				row.Cells = append(row.Cells, Text(constants.MarkerAbsent))
			}
		}

		row.Percentage = Percent(row.Present, row.WorkingDays)
		row.Cells = append(row.Cells, Number(row.Present), Text(FormatPercent(row.Percentage)))
		m.Rows = append(m.Rows, row)
	}
	return m
}

// yearly emits one percentage per month plus an annual percentage computed from the
// summed monthly present and working-day counts.
func (b *Builder) yearly(year int, snap *Snapshot) *Matrix {
	type month struct {
		dates []time.Time
		kinds []calendar.DayKind
	}
	var months [12]month
	for i := range months {
		first, last := MonthRange(year, time.Month(i+1))
		months[i].dates = calendar.DatesInRange(first, last)
		months[i].kinds = make([]calendar.DayKind, len(months[i].dates))
		for j, d := range months[i].dates {
			months[i].kinds[j] = calendar.Classify(d, snap.Holidays, b.OffRule)
		}
	}

	m := &Matrix{
		Title:  fmt.Sprintf("Yearly Attendance Summary (%d)", year),
		Period: Yearly,
		Start:  fmt.Sprintf("%d-01-01", year),
		End:    fmt.Sprintf("%d-12-31", year),
		Header: make([]string, 0, 15),
		Rows:   make([]Row, 0, len(snap.Students)),
	}
	m.Header = append(m.Header, "Student", "Roll No")
	m.Header = append(m.Header, b.Labels.Months[:]...)
	m.Header = append(m.Header, "Total %")

	idx := snap.index()
	for _, s := range snap.Students {
		row := Row{StudentID: s.ID, Cells: make([]Cell, 0, 15)}
		row.Cells = append(row.Cells, Text(s.Name), Text(s.RollNo))

		for _, mo := range months {
			present, working := 0, 0
			for j, d := range mo.dates {
				if mo.kinds[j] != calendar.Working {
					continue
				}
				working++
				if idx.present(s.ID, calendar.FormatDate(d)) {
					present++
				}
			}
			row.Present += present
			row.WorkingDays += working
			row.Cells = append(row.Cells, Text(FormatPercent(Percent(present, working))))
		}

		row.Percentage = Percent(row.Present, row.WorkingDays)
		row.Cells = append(row.Cells, Text(FormatPercent(row.Percentage)))
		m.Rows = append(m.Rows, row)
	}
	return m
}

func titleCase(p Period) string {
	if p == "" {
		return ""
	}
	s := string(p)
	return string(s[0]-'a'+'A') + s[1:]
}
