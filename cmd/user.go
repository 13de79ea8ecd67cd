package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage teachers and principals",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a staff user of a school",
	Long: `Register a teacher or principal. The returned ID can be passed to
"class add --teacher" to assign the user to a class.`,
	Example: `  attendance user add "Mr. Singh" --school 9c2e... --username singh
  attendance user add "Mrs. Rao" --school 9c2e... --username rao --role Principal`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the staff users of a school",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd, userListCmd)

	userAddCmd.Flags().String("school", "", "School ID")
	userAddCmd.Flags().String("username", "", "Unique username")
	userAddCmd.Flags().String("role", string(database.RoleTeacher), "Teacher or Principal")
	userListCmd.Flags().String("school", "", "School ID")
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school", "username"); err != nil {
		return err
	}
	name := strings.TrimSpace(args[0])
	if name == "" {
		return errors.New("user name must not be empty")
	}
	role := database.Role(mustGetString(cmd, "role"))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q: must be %s or %s", role, database.RoleTeacher, database.RolePrincipal)
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

	user := &database.User{
		Name:     name,
		Username: strings.ToLower(strings.TrimSpace(mustGetString(cmd, "username"))),
		Role:     role,
		SchoolID: school.ID,
	}
	if err := store.SaveUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			return fmt.Errorf("username %q is already taken", user.Username)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s in %s (%s)\n", strings.ToLower(string(user.Role)), user.Name, school.Name, user.ID)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "school"); err != nil {
		return err
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
	users, err := store.ListUsers(ctx, school.ID)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintf(out, "No users in %s.\n", school.Name)
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tUSERNAME\tROLE")
	fmt.Fprintln(w, "--\t----\t--------\t----")
	for i := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", users[i].ID, users[i].Name, users[i].Username, users[i].Role)
	}
	w.Flush()
	return nil
}
