package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the attendance register of a class",
	Long: `Print the attendance register of a class for the daily, weekly, monthly or
yearly period that contains --date. With --insights the summary statistics
(working days, totals, percentage and the daily trend) are printed instead.

Examples:
  attendance report --class 3b1f... --period weekly --date 2026-03-04
  attendance report --class 3b1f... --period monthly --csv > march.csv
  attendance report --class 3b1f... --period yearly --insights --json`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("class", "", "Class ID (required)")
	reportCmd.Flags().String("period", "weekly", "Report period: daily, weekly, monthly or yearly")
	reportCmd.Flags().String("date", "", "Any date inside the period, YYYY-MM-DD (default today)")
	reportCmd.Flags().Bool("insights", false, "Print summary statistics instead of the register")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
	reportCmd.Flags().Bool("csv", false, "Output the register as CSV")
}

func newReportBuilder(cfg *config.Config) *report.Builder {
	b := report.NewBuilder(calendar.WeeklyOffRule{Day: cfg.Calendar.WeeklyOffDay})
	b.Labels = report.NewLabels(cfg.Labels.Weekdays, cfg.Labels.Months)
	return b
}

func printMatrix(w io.Writer, m *report.Matrix) {
	fmt.Fprintf(w, "%s\n\n", m.Title)
	head, body := m.Table()
	t := newTable(w)
	fmt.Fprintln(t, strings.Join(head, "\t"))
	for _, line := range body {
		fmt.Fprintln(t, strings.Join(line, "\t"))
	}
	t.Flush()
	fmt.Fprintf(w, "\nTotal: %d students\n", len(m.Rows))
}

func writeMatrixCSV(w io.Writer, m *report.Matrix) error {
	head, body := m.Table()
	cw := csv.NewWriter(w)
	if err := cw.Write(head); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	if err := cw.WriteAll(body); err != nil {
		return fmt.Errorf("writing CSV rows: %w", err)
	}
	return nil
}

func printInsights(w io.Writer, in *report.Insights) {
	fmt.Fprintf(w, "Attendance insights, %s (%s to %s)\n\n", in.Period, in.Start, in.End)
	fmt.Fprintf(w, "Students:       %d\n", in.TotalStudents)
	fmt.Fprintf(w, "Working days:   %d\n", in.WorkingDays)
	fmt.Fprintf(w, "Possible marks: %d\n", in.TotalPossible)
	fmt.Fprintf(w, "Present:        %d\n", in.TotalPresent)
	fmt.Fprintf(w, "Absent:         %d\n", in.TotalAbsent)
	fmt.Fprintf(w, "Attendance:     %.1f%%\n", in.Percentage)

	if len(in.DailyTrend) > 0 {
		fmt.Fprintln(w, "\nDaily trend:")
		t := newTable(w)
		for _, p := range in.DailyTrend {
			fmt.Fprintf(t, "  %s\t%s\t%d\n", p.Date, p.Label, p.Present)
		}
		t.Flush()
	}
	for _, warning := range in.Warnings {
		fmt.Fprintf(w, "\nWarning: %s\n", warning)
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "class"); err != nil {
		return err
	}
	period, err := report.ParsePeriod(mustGetString(cmd, "period"))
	if err != nil {
		return err
	}
	anchor := calendar.Today()
	if s := mustGetString(cmd, "date"); s != "" {
		if anchor, err = calendar.ParseDate(s); err != nil {
			return err
		}
	}
	start, end, err := report.ResolveRange(period, anchor)
	if err != nil {
		return err
	}
	asJSON := mustGetBool(cmd, "json")
	asCSV := mustGetBool(cmd, "csv")
	insights := mustGetBool(cmd, "insights")
	if asCSV && (asJSON || insights) {
		return fmt.Errorf("--csv cannot be combined with --json or --insights")
	}

	ctx := context.Background()
	cfg, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	l := ledger.New(store, calendar.WeeklyOffRule{Day: cfg.Calendar.WeeklyOffDay})
	snap, err := l.ReportSnapshot(ctx, mustGetString(cmd, "class"), start, end)
	if err != nil {
		return err
	}
	builder := newReportBuilder(cfg)
	out := cmd.OutOrStdout()

	if insights {
		in, err := builder.Insights(period, anchor, snap)
		if err != nil {
			return err
		}
		if asJSON {
			return outputJSON(out, in)
		}
		printInsights(out, in)
		return nil
	}

	m, err := builder.Build(period, anchor, snap)
	if err != nil {
		return err
	}
	switch {
	case asJSON:
		return outputJSON(out, m)
	case asCSV:
		return writeMatrixCSV(out, m)
	}
	printMatrix(out, m)
	return nil
}
