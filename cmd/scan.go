package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/embedding"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/recognition"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Take attendance from a directory of camera frames",
	Long: `Run a recognition session over a directory of captured frames, in file name
order. Every student recognized for the first time is marked Present with the
FaceScan method. Students already marked Present on the date are not announced
again. The resulting sheet is saved as one batch unless --dry-run is given.

Examples:
  # Take today's attendance from frames captured by a classroom camera
  attendance scan --class 3b1f... --frames ./captures/today

  # Preview the marks for a past date without saving
  attendance scan --class 3b1f... --frames ./captures --date 2026-03-04 --dry-run`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("class", "", "Class ID (required)")
	scanCmd.Flags().String("frames", "", "Directory of frame images (required)")
	scanCmd.Flags().String("date", "", "Attendance date YYYY-MM-DD (default today)")
	scanCmd.Flags().Float64("threshold", 0, "Maximum match distance (default RECOGNITION_THRESHOLD)")
	scanCmd.Flags().Bool("dry-run", false, "Print the sheet without saving it")
	scanCmd.Flags().Bool("json", false, "Output the sheet as JSON")
}

// scanOutcome summarizes a scan run.
type scanOutcome struct {
	Frames  int                     `json:"frames"`
	Skipped int                     `json:"skipped"`
	Events  []recognition.MarkEvent `json:"events"`
	Status  string                  `json:"status"`
}

// scanFrames feeds the frames one by one through a step-driven session and applies every
// mark event to ws.
func scanFrames(ctx context.Context, provider recognition.EmbeddingProvider, cfg recognition.Config,
	params recognition.Params, ws *ledger.WorkingSet, paths []string, onEvent func(recognition.MarkEvent)) (scanOutcome, error) {
	var outcome scanOutcome

	cfg.Interval = 0
	session := recognition.NewSession(provider, cfg, nil)
	source := recognition.NewPushSource(constants.FrameBufferSize)
	if err := session.Activate(ctx, source, params); err != nil {
		return outcome, err
	}
	defer session.Deactivate()

	if session.State().Inert() {
		outcome.Status = session.State().Status()
		return outcome, nil
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil || !embedding.IsImage(data) {
			outcome.Skipped++
			continue
		}
		source.Push(data, embedding.DetectMIMEType(data))
		outcome.Frames++

		result, err := session.Step(ctx)
		if err != nil {
			return outcome, err
		}
		for _, ev := range result.Events {
			confidence := ev.Confidence
			if err := ws.Mark(ledger.Mark{
				StudentID:  ev.StudentID,
				Status:     ev.Status,
				Method:     ev.Method,
				Confidence: &confidence,
			}); err != nil {
				return outcome, err
			}
			outcome.Events = append(outcome.Events, ev)
			if onEvent != nil {
				onEvent(ev)
			}
		}
	}

	outcome.Status = session.State().Status()
	return outcome, nil
}

func printSheet(w io.Writer, ws *ledger.WorkingSet) {
	t := newTable(w)
	fmt.Fprintln(t, "ROLL\tNAME\tSTATUS\tMETHOD\tCONFIDENCE")
	fmt.Fprintln(t, "----\t----\t------\t------\t----------")
	for _, e := range ws.Entries() {
		conf := constants.NotAvailable
		if e.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *e.Confidence)
		}
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\n", e.RollNo, e.Name, e.Status, e.Method, conf)
	}
	t.Flush()
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "class", "frames"); err != nil {
		return err
	}
	date := mustGetString(cmd, "date")
	if date == "" {
		date = calendar.FormatDate(calendar.Today())
	}
	dryRun := mustGetBool(cmd, "dry-run")
	asJSON := mustGetBool(cmd, "json")
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	threshold := mustGetFloat64(cmd, "threshold")
	if threshold <= 0 {
		threshold = cfg.Recognition.Threshold
	}

	l := ledger.New(store, calendar.WeeklyOffRule{Day: cfg.Calendar.WeeklyOffDay})
	ws, err := l.OpenWorkingSet(ctx, mustGetString(cmd, "class"), date)
	if err != nil {
		return err
	}
	params, err := recognition.LoadParams(ctx, store, l, ws.ClassID(), date, threshold)
	if err != nil {
		return err
	}
	paths, err := listPhotos(mustGetString(cmd, "frames"))
	if err != nil {
		return err
	}

	if !asJSON {
		for _, w := range ws.Warnings() {
			fmt.Fprintf(out, "Warning: %s\n", w)
		}
		fmt.Fprintf(out, "Scanning %d frames for %d enrolled students on %s\n", len(paths), len(params.Gallery), date)
	}

	onEvent := func(ev recognition.MarkEvent) {
		if !asJSON {
			fmt.Fprintf(out, "  ✓ %s (confidence %.2f)\n", ev.Name, ev.Confidence)
		}
	}
	outcome, err := scanFrames(ctx, newEmbeddingClient(cfg), recognition.Config{
		Threshold: threshold,
		Messages:  recognition.MessagesFrom(cfg.StatusMessage),
	}, params, ws, paths, onEvent)
	if err != nil {
		return fmt.Errorf("recognition stopped: %w", err)
	}

	saved := false
	if !dryRun && ws.Dirty() {
		if err := l.SaveWorkingSet(ctx, ws); err != nil {
			return fmt.Errorf("failed to save attendance, please retry: %w", err)
		}
		saved = true
	}

	present, absent := ws.Counts()
	if asJSON {
		return outputJSON(out, map[string]any{
			"class_id": ws.ClassID(),
			"date":     ws.Date(),
			"scan":     outcome,
			"present":  present,
			"absent":   absent,
			"saved":    saved,
			"entries":  ws.Entries(),
		})
	}

	fmt.Fprintf(out, "%s\n\n", outcome.Status)
	printSheet(out, ws)
	fmt.Fprintf(out, "\nFrames: %d processed, %d skipped. Recognized: %d. Present: %d, Absent: %d\n",
		outcome.Frames, outcome.Skipped, len(outcome.Events), present, absent)
	switch {
	case dryRun:
		fmt.Fprintln(out, "Dry run, nothing saved.")
	case saved:
		fmt.Fprintf(out, "Saved attendance of %s.\n", ws.Date())
	default:
		fmt.Fprintln(out, "No changes to save.")
	}
	return nil
}
