package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag registered in init(). A lookup error means the flag name or type
// is wrong in code, so it panics instead of reaching the user.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(name, cmd.Flags().GetInt)
}

func mustGetString(cmd *cobra.Command, name string) string {
	return mustFlag(name, cmd.Flags().GetString)
}

func mustGetFloat64(cmd *cobra.Command, name string) float64 {
	return mustFlag(name, cmd.Flags().GetFloat64)
}

// requireFlags returns an error naming the first empty string flag.
func requireFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if mustGetString(cmd, name) == "" {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}
