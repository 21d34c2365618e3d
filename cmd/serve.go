package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kiosk with its HTTP API",
	Long: `Open the camera, run the attendance kiosk and serve the operator API.
Operators submit registration numbers or start QR scanning over HTTP and follow
the kiosk status through the event stream at /api/v1/kiosk/events.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Bool("warm", false, "Precompute all templates before starting")
	serveCmd.Flags().Bool("no-scan", false, "Disable QR code scanning")
}

// resolveServeHostPort applies flag overrides on top of the environment configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := buildKiosk(ctx, cfg, reg, !mustGetBool(cmd, "no-scan"))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("closing kiosk resources", "error", err)
		}
	}()

	if mustGetBool(cmd, "warm") {
		report, err := app.templates.Warm(ctx, nil)
		if err != nil {
			return fmt.Errorf("warming templates: %w", err)
		}
		slog.Info("templates warmed",
			"loaded", report.Loaded,
			"missing_photo", len(report.MissingPhoto),
			"no_face", len(report.NoFace),
			"failed", len(report.Failed))
	}

	server := web.NewServer(cfg, app.runner, app.backend.Attendance, reg, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.runner.Run(gctx)
	})
	if app.publisher != nil {
		g.Go(func() error {
			return app.publisher.Run(gctx)
		})
	}
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("Attendance kiosk API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("kiosk stopped: %w", err)
	}
	return nil
}
