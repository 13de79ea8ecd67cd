package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var studentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a student to a class",
	Long: `Add a student to a class. Face recognition needs consent; students added
without --consent can be marked manually but are never enrolled.

Examples:
  attendance student add "Asha Devi" --class 3b1f... --roll 01 --consent`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentAdd,
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the students of a class",
	Args:  cobra.NoArgs,
	RunE:  runStudentList,
}

func init() {
	rootCmd.AddCommand(studentCmd)
	studentCmd.AddCommand(studentAddCmd, studentListCmd)

	studentAddCmd.Flags().String("class", "", "Class ID (required)")
	studentAddCmd.Flags().String("roll", "", "Roll number (required)")
	studentAddCmd.Flags().String("father", "", "Father's name")
	studentAddCmd.Flags().String("village", "", "Village")
	studentAddCmd.Flags().Bool("consent", false, "Consent to face recognition was given")

	studentListCmd.Flags().String("class", "", "Class ID (required)")
	studentListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runStudentAdd(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "class", "roll"); err != nil {
		return err
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return errors.New("student name must not be empty")
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	class, err := loadClass(ctx, store, mustGetString(cmd, "class"))
	if err != nil {
		return err
	}

	student := &database.Student{
		ClassID:      class.ID,
		SchoolID:     class.SchoolID,
		Name:         name,
		RollNo:       mustGetString(cmd, "roll"),
		FatherName:   mustGetString(cmd, "father"),
		Village:      mustGetString(cmd, "village"),
		ConsentGiven: mustGetBool(cmd, "consent"),
	}
	if err := store.SaveStudent(ctx, student); err != nil {
		return fmt.Errorf("failed to save student: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (roll %s) to %s (%s)\n", student.Name, student.RollNo, class.Name, student.ID)
	return nil
}

// studentRow is the listing form of a student, without photo and embedding bytes.
type studentRow struct {
	ID       string `json:"id"`
	RollNo   string `json:"roll_no"`
	Name     string `json:"name"`
	Father   string `json:"father_name,omitempty"`
	Village  string `json:"village,omitempty"`
	Consent  bool   `json:"consent_given"`
	Enrolled bool   `json:"enrolled"`
}

func runStudentList(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "class"); err != nil {
		return err
	}

	ctx := context.Background()
	_, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	class, err := loadClass(ctx, store, mustGetString(cmd, "class"))
	if err != nil {
		return err
	}
	students, err := store.ListStudents(ctx, class.ID)
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}

	rows := make([]studentRow, len(students))
	enrolled := 0
	for i := range students {
		s := &students[i]
		rows[i] = studentRow{
			ID:       s.ID,
			RollNo:   s.RollNo,
			Name:     s.Name,
			Father:   s.FatherName,
			Village:  s.Village,
			Consent:  s.ConsentGiven,
			Enrolled: s.HasReference(),
		}
		if rows[i].Enrolled {
			enrolled++
		}
	}

	out := cmd.OutOrStdout()
	if mustGetBool(cmd, "json") {
		return outputJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(out, "No students in %s.\n", class.Name)
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ROLL\tNAME\tFATHER\tVILLAGE\tCONSENT\tENROLLED\tID")
	fmt.Fprintln(w, "----\t----\t------\t-------\t-------\t--------\t--")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RollNo, r.Name, r.Father, r.Village, yesNo(r.Consent), yesNo(r.Enrolled), r.ID)
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal: %d students in %s, %d enrolled for recognition\n", len(rows), class.Name, enrolled)
	return nil
}
