package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/database"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List attendance records",
	Long: `List attendance records, newest first.
Filter by date with --date (YYYY-MM-DD) or --today, and by registration number
or name with --search. The search ignores case and diacritics.`,
	Example: `  attendance report --today
  attendance report --date 2026-03-01 --search novak`,
	RunE: runReport,
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the number of students present per day",
	RunE:  runReportSummary,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportSummaryCmd)

	reportCmd.Flags().String("date", "", "Only records of this date (YYYY-MM-DD)")
	reportCmd.Flags().Bool("today", false, "Only records of today")
	reportCmd.Flags().String("search", "", "Registration number or name substring")
	reportCmd.PersistentFlags().Bool("json", false, "Output as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	filter := database.AttendanceFilter{
		Date:   mustGetString(cmd, "date"),
		Search: mustGetString(cmd, "search"),
	}
	if mustGetBool(cmd, "today") {
		filter.Date = time.Now().In(cfg.Location).Format(constants.DateLayout)
	}
	if filter.Date != "" {
		if _, err := time.Parse(constants.DateLayout, filter.Date); err != nil {
			return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", filter.Date)
		}
	}

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend(backend)

	rows, err := backend.Attendance.ListAttendance(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(os.Stdout, rows)
	}
	if len(rows) == 0 {
		fmt.Println("No attendance records found.")
		return nil
	}
	printAttendanceRows(os.Stdout, rows)
	return nil
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend(backend)

	days, err := backend.Attendance.SummarizeByDay(ctx)
	if err != nil {
		return fmt.Errorf("failed to summarize attendance: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return writeJSON(os.Stdout, days)
	}
	if len(days) == 0 {
		fmt.Println("No attendance records found.")
		return nil
	}
	printDaySummaries(os.Stdout, days)
	return nil
}

func printAttendanceRows(out io.Writer, rows []database.AttendanceRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REG NO\tNAME\tCOURSE\tDATE\tTIME\tMATCH")
	fmt.Fprintln(w, "------\t----\t------\t----\t----\t-----")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f%%\n",
			r.RegistrationNumber, r.Name, r.Course, r.Date, r.Time, r.MatchPercentage)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal: %d\n", len(rows))
}

func printDaySummaries(out io.Writer, days []database.DaySummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPRESENT")
	fmt.Fprintln(w, "----\t-------")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%d\n", d.Date, d.PresentCount)
	}
	w.Flush()
}

func writeJSON(out io.Writer, data any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func closeBackend(backend *database.Backend) {
	if backend.Close == nil {
		return
	}
	if err := backend.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing storage: %v\n", err)
	}
}
