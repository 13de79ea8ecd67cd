package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Classroom attendance with camera face recognition",
	Long: `Attendance keeps the daily attendance register of school classes.
Students are marked present manually or by a camera recognition session that
matches faces against enrolled reference photos. Reports aggregate the register
into daily, weekly, monthly and yearly views.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
