package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

var classCmd = &cobra.Command{
	Use:   "class",
	Short: "Manage class sections",
}

var classAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a class in a school",
	Long: `Create a class section. Class names are unique within a school,
ignoring case.

Examples:
  attendance class add 5A --school 0f8c...`,
	Args: cobra.ExactArgs(1),
	RunE: runClassAdd,
}

var classListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the classes of a school",
	Args:  cobra.NoArgs,
	RunE:  runClassList,
}

var classDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a class together with its students",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassDelete,
}

func init() {
	rootCmd.AddCommand(classCmd)
	classCmd.AddCommand(classAddCmd, classListCmd, classDeleteCmd)

	classAddCmd.Flags().String("school", "", "School ID (required)")
	classAddCmd.Flags().String("teacher", "", "Teacher user ID")
	classListCmd.Flags().String("school", "", "School ID (required)")
}

func runClassAdd(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school"); err != nil {
		return err
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return errors.New("class name must not be empty")
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

	teacherID := mustGetString(cmd, "teacher")
	if teacherID != "" {
		teacher, err := store.GetUser(ctx, teacherID)
		if err != nil {
			return fmt.Errorf("failed to load teacher: %w", err)
		}
		if teacher == nil || teacher.SchoolID != school.ID {
			return fmt.Errorf("teacher %s not found in %s", teacherID, school.Name)
		}
	}

	class := &database.ClassSection{
		Name:      name,
		SchoolID:  school.ID,
		TeacherID: teacherID,
	}
	if err := store.CreateClass(ctx, class); err != nil {
		if errors.Is(err, database.ErrDuplicateClass) {
			return fmt.Errorf("class %q already exists in %s", name, school.Name)
		}
		return fmt.Errorf("failed to create class: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created class %s in %s (%s)\n", class.Name, school.Name, class.ID)
	return nil
}

func runClassList(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school"); err != nil {
		return err
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	classes, err := store.ListClasses(ctx, mustGetString(cmd, "school"))
	if err != nil {
		return fmt.Errorf("failed to list classes: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(classes) == 0 {
		fmt.Fprintln(out, "No classes found.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tTEACHER")
	fmt.Fprintln(w, "--\t----\t-------")
	for i := range classes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", classes[i].ID, classes[i].Name, classes[i].TeacherID)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d classes\n", len(classes))
	return nil
}

func runClassDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	class, err := loadClass(ctx, store, args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteClass(ctx, class.ID); err != nil {
		return fmt.Errorf("failed to delete class: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted class %s and its students\n", class.Name)
	return nil
}
