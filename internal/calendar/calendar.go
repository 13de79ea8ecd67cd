// Package calendar classifies school dates as working days, holidays or the weekly off-day.
// Dates are plain calendar dates handled in UTC so iteration never drifts across DST boundaries.
package calendar

import (
	"fmt"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

// DayKind is the classification of a calendar date.
type DayKind int

const (
	Working DayKind = iota
	Holiday
	WeeklyOff
)

func (k DayKind) String() string {
	switch k {
	case Working:
		return "working"
	case Holiday:
		return "holiday"
	case WeeklyOff:
		return "weekly_off"
	default:
		return fmt.Sprintf("DayKind(%d)", int(k))
	}
}

// Marker returns the report cell marker of a non-working day, or "" for working days.
func (k DayKind) Marker() string {
	switch k {
	case Holiday:
		return constants.MarkerHoliday
	case WeeklyOff:
		return constants.MarkerWeeklyOff
	default:
		return ""
	}
}

// WeeklyOffRule names the fixed weekday on which the school is closed.
type WeeklyOffRule struct {
	Day time.Weekday
}

// Applies reports whether d falls on the weekly off-day.
func (r WeeklyOffRule) Applies(d time.Time) bool {
	return d.Weekday() == r.Day
}

// HolidaySet is the set of holiday dates of one school, keyed by YYYY-MM-DD.
type HolidaySet map[string]string

// NewHolidaySet builds a set from stored holidays; the value is the description.
func NewHolidaySet(holidays []database.Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.Date] = h.Description
	}
	return set
}

// Contains reports whether d is a holiday.
func (s HolidaySet) Contains(d time.Time) bool {
	_, ok := s[FormatDate(d)]
	return ok
}

// Description returns the description of the holiday on d.
func (s HolidaySet) Description(d time.Time) (string, bool) {
	desc, ok := s[FormatDate(d)]
	return desc, ok
}

// Classify returns the kind of d. A date that is both a holiday and the weekly off-day
// is a Holiday.
func Classify(d time.Time, holidays HolidaySet, rule WeeklyOffRule) DayKind {
	if holidays.Contains(d) {
		return Holiday
	}
	if rule.Applies(d) {
		return WeeklyOff
	}
	return Working
}

// DatesInRange returns every date from start to end inclusive, normalized to UTC midnight.
// start after end yields an empty slice.
func DatesInRange(start, end time.Time) []time.Time {
	start, end = Midnight(start), Midnight(end)
	if start.After(end) {
		return nil
	}
	days := int(end.Sub(start).Hours()/24) + 1
	out := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// WorkingDaysInRange counts the Working dates from start to end inclusive.
func WorkingDaysInRange(start, end time.Time, holidays HolidaySet, rule WeeklyOffRule) int {
	n := 0
	for _, d := range DatesInRange(start, end) {
		if Classify(d, holidays, rule) == Working {
			n++
		}
	}
	return n
}

// Midnight truncates t to its calendar date in UTC, keeping the year, month and day of t's
// own location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(constants.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}

// FormatDate formats d as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.Format(constants.DateLayout)
}

// Today returns the current local calendar date.
func Today() time.Time {
	return Midnight(time.Now())
}
