package report

import (
	"math"
	"strconv"
	"time"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

// TrendPoint is the Present count of one working day.
type TrendPoint struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	Present int    `json:"present"`
}

// Insights are the summary statistics of a class over a period.
type Insights struct {
	Period        Period `json:"period"`
	Start         string `json:"start"`
	End           string `json:"end"`
	TotalStudents int    `json:"total_students"`
	WorkingDays   int    `json:"working_days"`
	TotalPossible int    `json:"total_possible"`
	TotalPresent  int    `json:"total_present"`
	TotalAbsent   int    `json:"total_absent"`
	// Percentage is TotalPresent/TotalPossible*100 rounded to one decimal, 0 when nothing was possible.
	Percentage float64 `json:"percentage"`
	// DailyTrend is filled for weekly and monthly periods only.
	DailyTrend []TrendPoint `json:"daily_trend,omitempty"`
	// Warnings lists degenerate conditions such as zero working days.
	Warnings []string `json:"warnings,omitempty"`
}

// Insights computes the summary statistics of period around anchor.
func (b *Builder) Insights(period Period, anchor time.Time, snap *Snapshot) (*Insights, error) {
	start, end, err := ResolveRange(period, anchor)
	if err != nil {
		return nil, err
	}

	in := b.insightsRange(start, end, snap)
	in.Period = period
	if period != Weekly && period != Monthly {
		in.DailyTrend = nil
	}
	return in, nil
}

func (b *Builder) insightsRange(start, end time.Time, snap *Snapshot) *Insights {
	startKey, endKey := calendar.FormatDate(start), calendar.FormatDate(end)
	in := &Insights{
		Start:         startKey,
		End:           endKey,
		TotalStudents: len(snap.Students),
	}

	presentByDate := make(map[string]int)
	for _, r := range snap.Records {
		if r.Status != database.StatusPresent || r.Date < startKey || r.Date > endKey {
			continue
		}
		in.TotalPresent++
		presentByDate[r.Date]++
	}

	for _, d := range calendar.DatesInRange(start, end) {
		if calendar.Classify(d, snap.Holidays, b.OffRule) != calendar.Working {
			continue
		}
		in.WorkingDays++
		key := calendar.FormatDate(d)
		in.DailyTrend = append(in.DailyTrend, TrendPoint{
			Date:    key,
			Label:   strconv.Itoa(d.Day()) + " " + b.Labels.Months[d.Month()-1],
			Present: presentByDate[key],
		})
	}

	in.TotalPossible = in.TotalStudents * in.WorkingDays
	in.TotalAbsent = in.TotalPossible - in.TotalPresent
	if in.TotalPossible > 0 {
		in.Percentage = math.Round(float64(in.TotalPresent)/float64(in.TotalPossible)*1000) / 10
	}

	if in.TotalStudents == 0 {
		in.Warnings = append(in.Warnings, "class has no students")
	}
	if in.WorkingDays == 0 {
		in.Warnings = append(in.Warnings, "no working days in range")
	}
	if in.TotalPresent > in.TotalPossible {
		in.Warnings = append(in.Warnings, "present marks recorded on non-working days")
	}
	return in
}
