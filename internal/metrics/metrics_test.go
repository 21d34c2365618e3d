package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.RecordCommit(CommitCommitted)
	m.RecordCommit(CommitCommitted)
	m.RecordCommit(CommitAlreadyRecorded)
	m.RecordFrame("match", 20*time.Millisecond)
	m.RecordIdentification("typed", "armed")
	m.RecordCameraFailure()
	m.SetPhase(2)
	m.RecordNotification(false)
	m.SetStatusListeners(3)

	if got := testutil.ToFloat64(m.commits.WithLabelValues(CommitCommitted)); got != 2 {
		t.Errorf("committed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.commits.WithLabelValues(CommitAlreadyRecorded)); got != 1 {
		t.Errorf("already_recorded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.cameraFailures); got != 1 {
		t.Errorf("camera failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.phase); got != 2 {
		t.Errorf("phase = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("error")); got != 1 {
		t.Errorf("notification errors = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected gathered metric families")
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("expected error registering twice on the same registry")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordCommit(CommitCommitted)
	m.RecordFrame("match", time.Millisecond)
	m.RecordIdentification("scan", "armed")
	m.RecordCameraFailure()
	m.SetPhase(1)
	m.RecordNotification(true)
	m.SetStatusListeners(0)
}
