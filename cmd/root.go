package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "attendancebot",
	Short: "Attendance bot for field workers",
	Long: `attendancebot records one photo check-in per worker per day from a
Telegram group, keeps attendance streaks, and posts scheduled reports,
polls and reminders back to the group.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to a .env file (ignored when missing)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
}
