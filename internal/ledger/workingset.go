package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/errors"
)

// Mark sets the status of one student in a working set. Manual marks and face scan
// mark events from a recognition session both arrive as Marks.
type Mark struct {
	StudentID  string                    `json:"student_id"`
	Status     database.AttendanceStatus `json:"status"`
	Method     database.MarkMethod       `json:"method"`
	Confidence *float64                  `json:"confidence,omitempty"`
}

// Entry is one row of the attendance sheet.
type Entry struct {
	StudentID  string                    `json:"student_id"`
	Name       string                    `json:"name"`
	RollNo     string                    `json:"roll_no"`
	Status     database.AttendanceStatus `json:"status"`
	Method     database.MarkMethod       `json:"method"`
	Confidence *float64                  `json:"confidence,omitempty"`
}

// WorkingSet is the editable attendance sheet of one class on one date.
// It starts from the saved records of that date (Absent/Manual for students without one)
// and accumulates marks until it is saved as a single batch. Safe for concurrent use.
type WorkingSet struct {
	mu       sync.RWMutex
	classID  string
	schoolID string
	date     string
	dayKind  calendar.DayKind
	order    []string
	entries  map[string]*Entry
	dirty    bool
	warnings []string
}

// OpenWorkingSet loads the sheet of classID on date.
// A holiday date is rejected with an input error. The weekly off-day and an empty class
// are allowed and reported through Warnings.
func (l *Ledger) OpenWorkingSet(ctx context.Context, classID, date string) (*WorkingSet, error) {
	const op = "open working set"

	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, errors.Input(op, err)
	}

	class, err := l.store.GetClass(ctx, classID)
	if err != nil {
		return nil, errors.Persistence(op, err)
	}
	if class == nil {
		return nil, errors.NotFound(op, "class", classID)
	}

	holidays, err := l.Holidays(ctx, class.SchoolID)
	if err != nil {
		return nil, err
	}

	kind := calendar.Classify(day, holidays, l.offRule)
	if kind == calendar.Holiday {
		desc, _ := holidays.Description(day)
		return nil, errors.Inputf(op, "%s is a holiday: %s", date, desc).With("date", date)
	}

	students, err := l.store.ListStudents(ctx, classID)
	if err != nil {
		return nil, errors.Persistence(op, err)
	}
	records, err := l.store.QueryAttendance(ctx, database.AttendanceFilter{ClassID: classID, Date: date})
	if err != nil {
		return nil, errors.Persistence(op, err)
	}

	ws := newWorkingSet(class, date, kind, students, records)
	if kind == calendar.WeeklyOff {
		ws.warnings = append(ws.warnings, fmt.Sprintf("%s is the weekly off-day", date))
	}
	if len(students) == 0 {
		ws.warnings = append(ws.warnings, "class has no students")
	}

	l.logger.Debug("working set opened", "class", classID, "date", date,
		"students", len(students), "existing_records", len(records))
	return ws, nil
}

func newWorkingSet(class *database.ClassSection, date string, kind calendar.DayKind,
	students []database.Student, records []database.AttendanceRecord) *WorkingSet {
	existing := make(map[string]database.AttendanceRecord, len(records))
	for _, r := range records {
		existing[r.StudentID] = r
	}

	ws := &WorkingSet{
		classID:  class.ID,
		schoolID: class.SchoolID,
		date:     date,
		dayKind:  kind,
		order:    make([]string, 0, len(students)),
		entries:  make(map[string]*Entry, len(students)),
	}
	for _, s := range students {
		e := &Entry{
			StudentID: s.ID,
			Name:      s.Name,
			RollNo:    s.RollNo,
			Status:    database.StatusAbsent,
			Method:    database.MethodManual,
		}
		if r, ok := existing[s.ID]; ok {
			e.Status = r.Status
			e.Method = r.Method
			e.Confidence = r.Confidence
		}
		ws.order = append(ws.order, s.ID)
		ws.entries[s.ID] = e
	}
	return ws
}

// ClassID returns the class of the sheet.
func (ws *WorkingSet) ClassID() string { return ws.classID }

// SchoolID returns the school of the sheet's class.
func (ws *WorkingSet) SchoolID() string { return ws.schoolID }

// Date returns the sheet date (YYYY-MM-DD).
func (ws *WorkingSet) Date() string { return ws.date }

// DayKind returns the calendar classification of the sheet date.
func (ws *WorkingSet) DayKind() calendar.DayKind { return ws.dayKind }

// Warnings returns informational conditions found when the sheet was opened.
func (ws *WorkingSet) Warnings() []string {
	return slices.Clone(ws.warnings)
}

// Mark applies m. Any status and method may replace any other, so a manual mark can
// override a face scan and vice versa. Unknown students are an input error.
func (ws *WorkingSet) Mark(m Mark) error {
	if !m.Status.Valid() {
		return errors.Inputf("mark", "unknown status %q", m.Status)
	}
	if !m.Method.Valid() {
		return errors.Inputf("mark", "unknown method %q", m.Method)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	e, ok := ws.entries[m.StudentID]
	if !ok {
		return errors.Inputf("mark", "student %q is not in class %s", m.StudentID, ws.classID)
	}
	e.Status = m.Status
	e.Method = m.Method
	e.Confidence = nil
	if m.Confidence != nil {
		c := *m.Confidence
		e.Confidence = &c
	}
	ws.dirty = true
	return nil
}

// Entry returns the current row of a student.
func (ws *WorkingSet) Entry(studentID string) (Entry, bool) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	e, ok := ws.entries[studentID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns the rows in roll number order.
func (ws *WorkingSet) Entries() []Entry {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]Entry, 0, len(ws.order))
	for _, id := range ws.order {
		out = append(out, *ws.entries[id])
	}
	return out
}

// Records returns the batch to save: one record per student for the sheet date.
func (ws *WorkingSet) Records() []database.AttendanceRecord {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	out := make([]database.AttendanceRecord, 0, len(ws.order))
	for _, id := range ws.order {
		e := ws.entries[id]
		out = append(out, database.AttendanceRecord{
			StudentID:  e.StudentID,
			Date:       ws.date,
			Status:     e.Status,
			Method:     e.Method,
			Confidence: e.Confidence,
		})
	}
	return out
}

// Counts returns the number of Present and Absent rows.
func (ws *WorkingSet) Counts() (present, absent int) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	for _, e := range ws.entries {
		if e.Status == database.StatusPresent {
			present++
		} else {
			absent++
		}
	}
	return present, absent
}

// Dirty reports whether marks were applied since the sheet was opened or last saved.
func (ws *WorkingSet) Dirty() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.dirty
}

// SaveWorkingSet saves the sheet as one batch. On failure the sheet keeps its marks so the
// identical batch can be retried.
func (l *Ledger) SaveWorkingSet(ctx context.Context, ws *WorkingSet) error {
	if err := l.Save(ctx, ws.Records()); err != nil {
		return err
	}
	ws.mu.Lock()
	ws.dirty = false
	ws.mu.Unlock()
	return nil
}
