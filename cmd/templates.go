package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/fingerprint"
	"github.com/kozaktomas/attendance/internal/templates"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage face templates of enrolled students",
}

var templatesWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Precompute face templates for all students",
	Long: `Compute the face template of every enrolled student and store it in the
template cache, so the kiosk does not wait for the embedding server on first use.
Students whose photo is missing or shows no face are listed at the end.`,
	RunE: runTemplatesWarm,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesWarmCmd)

	templatesWarmCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

func runTemplatesWarm(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	jsonOutput := mustGetBool(cmd, "json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend(backend)

	if backend.Templates == nil {
		fmt.Fprintf(os.Stderr, "Warning: %s storage has no template cache, templates are computed but not kept\n", cfg.Database.Driver)
	}

	store := newTemplateStore(cfg, backend, fingerprint.NewFaceClient(cfg.Embedding.URL))

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if jsonOutput {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Computing templates"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("students"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	}

	report, err := store.Warm(ctx, progress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("warming templates: %w", err)
	}

	if jsonOutput {
		failed := make(map[string]string, len(report.Failed))
		for regNo, err := range report.Failed {
			failed[regNo] = err.Error()
		}
		return writeJSON(os.Stdout, map[string]any{
			"loaded":        report.Loaded,
			"missing_photo": report.MissingPhoto,
			"no_face":       report.NoFace,
			"failed":        failed,
		})
	}

	printWarmReport(os.Stdout, report)
	return nil
}

func printWarmReport(out io.Writer, report *templates.WarmReport) {
	fmt.Fprintf(out, "Templates ready: %d\n", report.Loaded)
	if len(report.MissingPhoto) > 0 {
		fmt.Fprintf(out, "\nStored photo not found (%d):\n", len(report.MissingPhoto))
		for _, regNo := range report.MissingPhoto {
			fmt.Fprintf(out, "  %s\n", regNo)
		}
	}
	if len(report.NoFace) > 0 {
		fmt.Fprintf(out, "\nNo face in stored photo (%d):\n", len(report.NoFace))
		for _, regNo := range report.NoFace {
			fmt.Fprintf(out, "  %s\n", regNo)
		}
	}
	if len(report.Failed) > 0 {
		regNos := make([]string, 0, len(report.Failed))
		for regNo := range report.Failed {
			regNos = append(regNos, regNo)
		}
		sort.Strings(regNos)
		fmt.Fprintf(out, "\nFailed (%d):\n", len(report.Failed))
		for _, regNo := range regNos {
			fmt.Fprintf(out, "  %s: %v\n", regNo, report.Failed[regNo])
		}
	}
}
