package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/attendance/internal/camera"
	"github.com/kozaktomas/attendance/internal/camera/opencv"
	"github.com/kozaktomas/attendance/internal/config"
	"github.com/kozaktomas/attendance/internal/database"
	_ "github.com/kozaktomas/attendance/internal/database/gormdb"   // sqlite and mysql drivers
	_ "github.com/kozaktomas/attendance/internal/database/postgres" // postgres driver
	"github.com/kozaktomas/attendance/internal/facematch"
	"github.com/kozaktomas/attendance/internal/fingerprint"
	"github.com/kozaktomas/attendance/internal/kiosk"
	"github.com/kozaktomas/attendance/internal/ledger"
	"github.com/kozaktomas/attendance/internal/metrics"
	"github.com/kozaktomas/attendance/internal/notify"
	"github.com/kozaktomas/attendance/internal/templates"
	"github.com/kozaktomas/attendance/internal/verify"
	"github.com/prometheus/client_golang/prometheus"
)

// kioskApp bundles everything a running kiosk needs.
type kioskApp struct {
	backend   *database.Backend
	templates *templates.Store
	runner    *kiosk.Runner
	publisher *notify.Publisher // nil when MQTT is not configured
	closers   []func() error
}

// Close releases resources in reverse order of creation.
func (a *kioskApp) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openBackend opens the configured storage driver.
func openBackend(ctx context.Context, cfg *config.Config) (*database.Backend, error) {
	slog.Info("opening storage", "driver", cfg.Database.Driver)
	backend, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.URL,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return backend, nil
}

// newTemplateStore creates the template store backed by the embedding server.
func newTemplateStore(cfg *config.Config, backend *database.Backend, extractor templates.Extractor) *templates.Store {
	opts := []templates.Option{
		templates.WithPhotosDir(cfg.PhotosDir),
		templates.WithMemoryCache(cfg.Templates.CacheTTL),
		templates.WithCompareMaxDim(cfg.Recognition.CompareMaxDim),
		templates.WithLogger(slog.Default()),
	}
	if backend.Templates != nil {
		opts = append(opts, templates.WithPersistentCache(backend.Templates))
	}
	return templates.New(backend.Students, extractor, opts...)
}

// buildKiosk wires storage, templates, camera, ledger and notifications into a runner.
// withScanner enables the QR decoder.
func buildKiosk(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, withScanner bool) (*kioskApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	metric, err := facematch.ParseMetric(cfg.Recognition.Metric)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}

	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &kioskApp{backend: backend}
	if backend.Close != nil {
		app.closers = append(app.closers, backend.Close)
	}

	extractor := fingerprint.NewFaceClient(cfg.Embedding.URL)
	app.templates = newTemplateStore(cfg, backend, extractor)

	ledgerOpts := []ledger.Option{
		ledger.WithLocation(cfg.Location),
		ledger.WithMetrics(m),
		ledger.WithLogger(slog.Default()),
	}
	if cfg.MQTT.Broker != "" {
		publisher, err := notify.Connect(cfg.MQTT, m, slog.Default())
		if err != nil {
			slog.Warn("attendance notifications disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			app.publisher = publisher
			ledgerOpts = append(ledgerOpts, ledger.WithNotifier(publisher))
		}
	}

	deps := kiosk.Deps{
		Templates: app.templates,
		Extractor: extractor,
		Cameras:   camera.NewManager(opencv.Opener(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)),
		Ledger:    ledger.New(backend.Attendance, ledgerOpts...),
		Metrics:   m,
		Logger:    slog.Default(),
	}
	if withScanner {
		decoder := opencv.NewQRDecoder()
		app.closers = append(app.closers, decoder.Close)
		deps.Decoder = decoder
	}

	runner, err := kiosk.NewRunner(kiosk.Config{
		Verify: verify.Config{
			Tolerance:       cfg.Recognition.Tolerance,
			RequiredMatches: cfg.Recognition.RequiredMatches,
			Metric:          metric,
		},
		FrameInterval:    cfg.Camera.FrameInterval,
		RetryInterval:    cfg.Camera.RetryInterval,
		RetryMaxInterval: cfg.Camera.RetryMaxInterval,
		CompareMaxDim:    cfg.Recognition.CompareMaxDim,
	}, deps)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("creating kiosk: %w", err)
	}
	app.runner = runner
	return app, nil
}
