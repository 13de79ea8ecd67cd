package ledger

import (
	"context"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/errors"
	"github.com/kozaktomas/smart-attendance/internal/report"
)

// ReportSnapshot loads the students of a class, their records between start and end and
// the holidays of the class's school. The result feeds report.Builder.
func (l *Ledger) ReportSnapshot(ctx context.Context, classID string, start, end time.Time) (*report.Snapshot, error) {
	const op = "load report snapshot"

	class, err := l.store.GetClass(ctx, classID)
	if err != nil {
		return nil, errors.Persistence(op, err)
	}
	if class == nil {
		return nil, errors.NotFound(op, "class", classID)
	}

	students, err := l.store.ListStudents(ctx, classID)
	if err != nil {
		return nil, errors.Persistence(op, err)
	}

	records, err := l.Query(ctx, database.AttendanceFilter{
		ClassID: classID,
		Range:   &database.DateRange{Start: calendar.FormatDate(start), End: calendar.FormatDate(end)},
	})
	if err != nil {
		return nil, err
	}

	holidays, err := l.Holidays(ctx, class.SchoolID)
	if err != nil {
		return nil, err
	}

	return &report.Snapshot{Students: students, Records: records, Holidays: holidays}, nil
}
