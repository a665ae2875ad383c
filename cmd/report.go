package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"AttendanceBot/reports"
)

var reportFinal bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print today's attendance report",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write today's missing-workers spreadsheet",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportFinal, "final", false, "Use the evening report title")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output path (default missing_workers_<date>.xlsx)")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	title := reports.ManualReportTitle
	if reportFinal {
		title = reports.FinalReportTitle
	}
	rep, err := a.reports.BuildDailyReport(cmd.Context(), time.Now(), title)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.Text)
	if rep.Missing != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s (run `export` to write %s)\n", reports.MissingCaption, rep.FileName)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	now := time.Now()
	payload, ok, err := a.reports.ExportMissingWorkersTable(cmd.Context(), now)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Everyone has submitted today; nothing to export.")
		return nil
	}

	out := exportOut
	if out == "" {
		out = reports.MissingFileName(a.cal.Date(now))
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}
