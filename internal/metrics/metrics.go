// Package metrics provides Prometheus metrics for the attendance kiosk
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for commit results
const (
	CommitCommitted       = "committed"
	CommitAlreadyRecorded = "already_recorded"
	CommitStorageFailure  = "storage_failure"
)

// Metrics contains Prometheus metrics for kiosk operations.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	commits         *prometheus.CounterVec
	frames          *prometheus.CounterVec
	identifications *prometheus.CounterVec
	cameraFailures  prometheus.Counter
	frameDuration   prometheus.Histogram
	phase           prometheus.Gauge
	notifications   *prometheus.CounterVec
	statusListeners prometheus.Gauge

	collectors []prometheus.Collector
}

// New creates kiosk metrics and registers them with registry
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{}
	m.initMetrics()
	for _, c := range m.collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *Metrics) initMetrics() {
	m.commits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_commits_total",
			Help: "Attendance commit attempts by result",
		},
		[]string{"result"},
	)
	m.frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_verification_frames_total",
			Help: "Frames evaluated during verification by outcome",
		},
		[]string{"outcome"},
	)
	m.identifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_identifications_total",
			Help: "Identifier submissions by acquisition mode and result",
		},
		[]string{"mode", "result"},
	)
	m.cameraFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_camera_failures_total",
			Help: "Camera open or read failures",
		},
	)
	m.frameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_frame_processing_seconds",
			Help:    "Time spent processing one frame, including embedding extraction",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)
	m.phase = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_kiosk_phase",
			Help: "Current verification phase (0 idle, 1 identified, 2 verifying, 3 confirmed)",
		},
	)
	m.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_notifications_total",
			Help: "Attendance notifications published by result",
		},
		[]string{"result"},
	)
	m.statusListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_status_listeners",
			Help: "Connected kiosk status event listeners",
		},
	)

	m.collectors = []prometheus.Collector{
		m.commits, m.frames, m.identifications, m.cameraFailures,
		m.frameDuration, m.phase, m.notifications, m.statusListeners,
	}
}

// RecordCommit counts a commit attempt
func (m *Metrics) RecordCommit(result string) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(result).Inc()
}

// RecordFrame counts an evaluated frame and its processing time
func (m *Metrics) RecordFrame(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(outcome).Inc()
	m.frameDuration.Observe(elapsed.Seconds())
}

// RecordIdentification counts an identifier submission
func (m *Metrics) RecordIdentification(mode, result string) {
	if m == nil {
		return
	}
	m.identifications.WithLabelValues(mode, result).Inc()
}

// RecordCameraFailure counts a camera failure
func (m *Metrics) RecordCameraFailure() {
	if m == nil {
		return
	}
	m.cameraFailures.Inc()
}

// SetPhase records the current verification phase
func (m *Metrics) SetPhase(phase int) {
	if m == nil {
		return
	}
	m.phase.Set(float64(phase))
}

// RecordNotification counts a published (or failed) notification
func (m *Metrics) RecordNotification(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// SetStatusListeners records the number of connected status listeners
func (m *Metrics) SetStatusListeners(n int) {
	if m == nil {
		return
	}
	m.statusListeners.Set(float64(n))
}
