package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

var holidayCmd = &cobra.Command{
	Use:   "holiday",
	Short: "Manage school holidays",
	Long: `Holidays are school-wide non-working dates. Attendance cannot be taken on a
holiday and holidays do not count towards working days in reports.`,
}

var holidaySetCmd = &cobra.Command{
	Use:   "set <date> <description>",
	Short: "Declare or rename a holiday",
	Long: `Declare a holiday on a date (YYYY-MM-DD). Setting an existing date replaces
its description.

Examples:
  attendance holiday set 2026-03-14 "Holi" --school 0f8c...`,
	Args: cobra.MinimumNArgs(2),
	RunE: runHolidaySet,
}

var holidayRemoveCmd = &cobra.Command{
	Use:   "remove <date>",
	Short: "Remove a holiday",
	Args:  cobra.ExactArgs(1),
	RunE:  runHolidayRemove,
}

var holidayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the holidays of a school",
	Args:  cobra.NoArgs,
	RunE:  runHolidayList,
}

func init() {
	rootCmd.AddCommand(holidayCmd)
	holidayCmd.AddCommand(holidaySetCmd, holidayRemoveCmd, holidayListCmd)

	for _, c := range []*cobra.Command{holidaySetCmd, holidayRemoveCmd, holidayListCmd} {
		c.Flags().String("school", "", "School ID (required)")
	}
}

// parseDateArg validates a YYYY-MM-DD argument and returns it in canonical form.
func parseDateArg(s string) (string, error) {
	d, err := calendar.ParseDate(s)
	if err != nil {
		return "", err
	}
	return calendar.FormatDate(d), nil
}

func runHolidaySet(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school"); err != nil {
		return err
	}
	date, err := parseDateArg(args[0])
	if err != nil {
		return err
	}
	description := strings.TrimSpace(strings.Join(args[1:], " "))
	if description == "" {
		return fmt.Errorf("holiday description must not be empty")
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	school, err := loadSchool(ctx, store, mustGetString(cmd, "school"))
	if err != nil {
		return err
	}

	holiday := &database.Holiday{SchoolID: school.ID, Date: date, Description: description}
	if err := store.SetHoliday(ctx, holiday); err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Holiday on %s: %s\n", date, description)
	return nil
}

func runHolidayRemove(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school"); err != nil {
		return err
	}
	date, err := parseDateArg(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if err := store.RemoveHoliday(ctx, mustGetString(cmd, "school"), date); err != nil {
		return fmt.Errorf("failed to remove holiday: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed holiday on %s\n", date)
	return nil
}

func runHolidayList(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school"); err != nil {
		return err
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	holidays, err := store.ListHolidays(ctx, mustGetString(cmd, "school"))
	if err != nil {
		return fmt.Errorf("failed to list holidays: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(holidays) == 0 {
		fmt.Fprintln(out, "No holidays declared.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "DATE\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-----------")
	for i := range holidays {
		fmt.Fprintf(w, "%s\t%s\n", holidays[i].Date, holidays[i].Description)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d holidays\n", len(holidays))
	return nil
}
