package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/kiosk"
	"github.com/kozaktomas/attendance/internal/verify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var attendCmd = &cobra.Command{
	Use:   "attend",
	Short: "Run the kiosk in the terminal",
	Long: `Run the attendance kiosk without the HTTP API and print status changes.
Identify the student with --reg, or use --scan to read a QR code from the camera.
With --once the command exits after the first confirmed attendance.`,
	Example: `  attendance attend --reg CS101 --once
  attendance attend --scan`,
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().String("reg", "", "Registration number of the student")
	attendCmd.Flags().Bool("scan", false, "Identify students by scanning a QR code")
	attendCmd.Flags().Bool("once", false, "Exit after one verification attempt")
	attendCmd.Flags().Float64("tolerance", 0, "Override MATCH_TOLERANCE for this run")
}

func runAttend(cmd *cobra.Command, args []string) error {
	regNo := mustGetString(cmd, "reg")
	scan := mustGetBool(cmd, "scan")
	once := mustGetBool(cmd, "once")

	switch {
	case regNo == "" && !scan:
		return errors.New("either --reg or --scan is required")
	case regNo != "" && scan:
		return errors.New("--reg and --scan are mutually exclusive")
	case regNo != "" && !once:
		// A typed identifier covers one student.
		once = true
	}

	cfg := config.Load()
	if tolerance := mustGetFloat64(cmd, "tolerance"); tolerance > 0 {
		cfg.Recognition.Tolerance = tolerance
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildKiosk(ctx, cfg, prometheus.NewRegistry(), scan)
	if err != nil {
		return err
	}
	defer app.Close() //nolint:errcheck // best effort on exit

	events := app.runner.Events().AddListener()
	defer app.runner.Events().RemoveListener(events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.runner.Run(gctx)
	})
	if app.publisher != nil {
		g.Go(func() error {
			return app.publisher.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		w := &attendWatcher{out: os.Stdout, runner: app.runner, scan: scan, once: once}
		return w.watch(gctx, regNo, events)
	})

	return g.Wait()
}

// kioskControl is the part of the runner the terminal front end drives.
type kioskControl interface {
	SubmitIdentifier(ctx context.Context, identifier string) (kiosk.Status, error)
	StartScan(ctx context.Context) (kiosk.Status, error)
}

// attendWatcher prints kiosk status changes to a terminal.
type attendWatcher struct {
	out    io.Writer
	runner kioskControl
	scan   bool
	once   bool

	lastMessage string
	active      bool // a non-idle status was seen for the current attempt
}

// watch starts an attempt and follows events until it finishes (once) or ctx ends.
func (w *attendWatcher) watch(ctx context.Context, regNo string, events <-chan kiosk.Event) error {
	if err := w.start(ctx, regNo); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			done, err := w.handle(ctx, event)
			if done || err != nil {
				return err
			}
		}
	}
}

func (w *attendWatcher) start(ctx context.Context, regNo string) error {
	var (
		status kiosk.Status
		err    error
	)
	if w.scan {
		status, err = w.runner.StartScan(ctx)
	} else {
		status, err = w.runner.SubmitIdentifier(ctx, regNo)
	}
	w.print(status.Message)
	if err != nil {
		return fmt.Errorf("identification failed: %w", err)
	}
	// Events queued while the request was handled may still show the idle kiosk.
	w.active = false
	return nil
}

// handle prints one event and reports whether the attempt is over.
func (w *attendWatcher) handle(ctx context.Context, event kiosk.Event) (bool, error) {
	switch event.Type {
	case kiosk.EventAttendance:
		w.print(event.Message)
		if w.once {
			return true, nil
		}
	case kiosk.EventStatus:
		status, ok := event.Data.(kiosk.Status)
		if !ok {
			return false, nil
		}
		w.print(status.Message)

		idle := status.Phase == verify.PhaseIdle && !status.Scanning
		if !idle {
			w.active = true
			return false, nil
		}
		if !w.active {
			return false, nil
		}
		w.active = false
		if w.once {
			return true, fmt.Errorf("attendance not recorded: %s", status.Message)
		}
		if w.scan {
			return false, w.start(ctx, "")
		}
	}
	return false, nil
}

// print writes a message unless it repeats the previous one.
func (w *attendWatcher) print(message string) {
	if message == "" || message == w.lastMessage {
		return
	}
	w.lastMessage = message
	fmt.Fprintln(w.out, message)
}
