package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

var schoolCmd = &cobra.Command{
	Use:   "school",
	Short: "Manage schools",
}

var schoolAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a school",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchoolAdd,
}

var schoolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all schools",
	Args:  cobra.NoArgs,
	RunE:  runSchoolList,
}

func init() {
	rootCmd.AddCommand(schoolCmd)
	schoolCmd.AddCommand(schoolAddCmd, schoolListCmd)

	schoolAddCmd.Flags().String("principal", "", "Principal name")
	schoolAddCmd.Flags().String("email", "", "Contact email")
	schoolAddCmd.Flags().String("phone", "", "Contact phone")
}

func runSchoolAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return fmt.Errorf("school name must not be empty")
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	school := &database.School{
		Name:          name,
		PrincipalName: mustGetString(cmd, "principal"),
		ContactEmail:  mustGetString(cmd, "email"),
		ContactPhone:  mustGetString(cmd, "phone"),
	}
	if err := store.SaveSchool(ctx, school); err != nil {
		return fmt.Errorf("failed to save school: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created school %s (%s)\n", school.Name, school.ID)
	return nil
}

func runSchoolList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	schools, err := store.ListSchools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schools: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(schools) == 0 {
		fmt.Fprintln(out, "No schools found.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tPRINCIPAL\tEMAIL")
	fmt.Fprintln(w, "--\t----\t---------\t-----")
	for i := range schools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", schools[i].ID, schools[i].Name, schools[i].PrincipalName, schools[i].ContactEmail)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d schools\n", len(schools))
	return nil
}
