// Package ledger is the system of record for per-student, per-day attendance.
// It validates batches before they reach storage, keeps one record per (student, date)
// through the store's upsert, and assembles the working set a teacher edits before saving.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/errors"
	"github.com/kozaktomas/smart-attendance/internal/metrics"
)

// Store is the storage the ledger needs.
type Store interface {
	database.AttendanceWriter
	database.StudentReader
	database.ClassReader
	database.HolidayReader
}

// HolidayProvider returns the holiday set of a school.
type HolidayProvider interface {
	Holidays(ctx context.Context, schoolID string) (calendar.HolidaySet, error)
}

// StoreHolidays reads holidays straight from storage.
type StoreHolidays struct {
	Reader database.HolidayReader
}

// Holidays implements HolidayProvider.
func (s StoreHolidays) Holidays(ctx context.Context, schoolID string) (calendar.HolidaySet, error) {
	list, err := s.Reader.ListHolidays(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return calendar.NewHolidaySet(list), nil
}

// Ledger saves and queries attendance records.
type Ledger struct {
	store    Store
	holidays HolidayProvider
	offRule  calendar.WeeklyOffRule
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics records save outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithHolidays replaces the default store-backed holiday lookup.
func WithHolidays(p HolidayProvider) Option {
	return func(l *Ledger) { l.holidays = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger over store. offRule is the school's weekly off-day.
func New(store Store, offRule calendar.WeeklyOffRule, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		holidays: StoreHolidays{Reader: store},
		offRule:  offRule,
		logger:   slog.Default().With("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OffRule returns the weekly off-day rule of the ledger.
func (l *Ledger) OffRule() calendar.WeeklyOffRule {
	return l.offRule
}

// Holidays returns the holiday set of a school through the configured provider.
func (l *Ledger) Holidays(ctx context.Context, schoolID string) (calendar.HolidaySet, error) {
	set, err := l.holidays.Holidays(ctx, schoolID)
	if err != nil {
		return nil, errors.Persistence("load holidays", err)
	}
	return set, nil
}

// ValidateRecord checks a single record before it is accepted into a batch.
func ValidateRecord(rec *database.AttendanceRecord) error {
	if rec.StudentID == "" {
		return fmt.Errorf("record has no student id")
	}
	if _, err := calendar.ParseDate(rec.Date); err != nil {
		return fmt.Errorf("student %s: %w", rec.StudentID, err)
	}
	if !rec.Status.Valid() {
		return fmt.Errorf("student %s: unknown status %q", rec.StudentID, rec.Status)
	}
	if !rec.Method.Valid() {
		return fmt.Errorf("student %s: unknown method %q", rec.StudentID, rec.Method)
	}
	if rec.Confidence != nil && (*rec.Confidence < 0 || *rec.Confidence > 1) {
		return fmt.Errorf("student %s: confidence %f outside [0, 1]", rec.StudentID, *rec.Confidence)
	}
	return nil
}

// Save upserts records as one atomic batch. Each record replaces whatever is stored for
// its (student, date). Invalid input rejects the whole batch with an input error before
// anything is written; a storage failure is a persistence error and nothing is applied.
func (l *Ledger) Save(ctx context.Context, records []database.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if err := ValidateRecord(&records[i]); err != nil {
			l.metrics.RecordSave(metrics.ResultInvalid, 0)
			return errors.Input("save attendance", err).With("index", i)
		}
	}

	if err := l.store.SaveAttendance(ctx, records); err != nil {
		l.metrics.RecordSave(metrics.ResultError, len(records))
		l.logger.Error("attendance batch rejected", "records", len(records), "error", err)
		return errors.Persistence("save attendance", err).With("records", len(records))
	}

	l.metrics.RecordSave(metrics.ResultSuccess, len(records))
	l.logger.Info("attendance batch saved", "records", len(records))
	return nil
}

// Query returns the records matching every set field of filter.
// A range whose start is after its end, malformed dates, and unknown students or classes
// are input errors.
func (l *Ledger) Query(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	const op = "query attendance"

	if filter.Date != "" {
		if _, err := calendar.ParseDate(filter.Date); err != nil {
			return nil, errors.Input(op, err)
		}
	}
	if filter.Range != nil {
		start, err := calendar.ParseDate(filter.Range.Start)
		if err != nil {
			return nil, errors.Input(op, err)
		}
		end, err := calendar.ParseDate(filter.Range.End)
		if err != nil {
			return nil, errors.Input(op, err)
		}
		if start.After(end) {
			return nil, errors.Inputf(op, "range start %s is after end %s", filter.Range.Start, filter.Range.End)
		}
	}

	if filter.StudentID != "" {
		student, err := l.store.GetStudent(ctx, filter.StudentID)
		if err != nil {
			return nil, errors.Persistence(op, err)
		}
		if student == nil {
			return nil, errors.Inputf(op, "unknown student %q", filter.StudentID)
		}
	}
	if filter.ClassID != "" {
		class, err := l.store.GetClass(ctx, filter.ClassID)
		if err != nil {
			return nil, errors.Persistence(op, err)
		}
		if class == nil {
			return nil, errors.Inputf(op, "unknown class %q", filter.ClassID)
		}
	}

	records, err := l.store.QueryAttendance(ctx, filter)
	if err != nil {
		return nil, errors.Persistence(op, err)
	}
	return records, nil
}

// PresentOn returns the IDs of the students of a class already marked Present on date.
func (l *Ledger) PresentOn(ctx context.Context, classID, date string) (map[string]bool, error) {
	records, err := l.Query(ctx, database.AttendanceFilter{ClassID: classID, Date: date})
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Status == database.StatusPresent {
			present[r.StudentID] = true
		}
	}
	return present, nil
}
