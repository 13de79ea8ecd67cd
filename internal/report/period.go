package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
)

// Period selects the granularity of a report.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"

	// Custom marks a register built over an explicit date range.
	Custom Period = "custom"
)

// ParsePeriod parses a period name, case-insensitively.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown report period %q (expected daily, weekly, monthly or yearly)", s)
	}
}

// ResolveRange returns the inclusive date range a period covers around anchor.
func ResolveRange(p Period, anchor time.Time) (start, end time.Time, err error) {
	anchor = calendar.Midnight(anchor)
	switch p {
	case Daily:
		return anchor, anchor, nil
	case Weekly:
		start, end = WeekRange(anchor)
		return start, end, nil
	case Monthly:
		start, end = MonthRange(anchor.Year(), anchor.Month())
		return start, end, nil
	case Yearly:
		return time.Date(anchor.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(anchor.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown report period %q", p)
	}
}

// WeekRange returns the Monday to Sunday week containing anchor.
// A Sunday anchor closes its week rather than opening the next one.
func WeekRange(anchor time.Time) (monday, sunday time.Time) {
	anchor = calendar.Midnight(anchor)
	offset := (int(anchor.Weekday()) + 6) % 7 // days since Monday
	monday = anchor.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// MonthRange returns the first and last day of a month.
func MonthRange(year int, month time.Month) (first, last time.Time) {
	first = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
