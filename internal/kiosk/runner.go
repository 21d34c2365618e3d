// Package kiosk runs the attendance loop: identifier acquisition, live
// verification against the candidate's template and the final commit.
//
// A single goroutine (Runner.Run) owns the verification session and the
// camera handle. Other goroutines talk to it through SubmitIdentifier,
// StartScan and Status.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance/internal/camera"
	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/database"
	"github.com/kozaktomas/attendance/internal/fingerprint"
	"github.com/kozaktomas/attendance/internal/ledger"
	"github.com/kozaktomas/attendance/internal/metrics"
	"github.com/kozaktomas/attendance/internal/templates"
	"github.com/kozaktomas/attendance/internal/verify"
)

var (
	ErrSuperseded     = errors.New("superseded by a newer request")
	ErrStopped        = errors.New("kiosk is not running")
	ErrAlreadyRunning = errors.New("kiosk is already running")
	ErrScanDisabled   = errors.New("code scanning is not available")
)

// Acquisition modes
const (
	ModeTyped = "typed"
	ModeScan  = "scan"
)

// TemplateSource resolves identifiers and loads templates.
type TemplateSource interface {
	ResolveCandidate(ctx context.Context, identifier string) (*database.Student, error)
	LoadTemplate(ctx context.Context, student database.Student) (*templates.Template, error)
}

// Committer records confirmed attendance.
type Committer interface {
	Commit(ctx context.Context, student database.Student, at time.Time, matchPercentage float64) (ledger.Result, error)
}

// Decoder extracts a 2D code payload from a frame. An empty payload means no code.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// Config holds the loop timing and recognition settings.
type Config struct {
	Verify           verify.Config
	FrameInterval    time.Duration
	RetryInterval    time.Duration
	RetryMaxInterval time.Duration
	CompareMaxDim    int
}

// Deps are the collaborators of the runner.
type Deps struct {
	Templates TemplateSource
	Extractor templates.Extractor
	Cameras   *camera.Manager
	Decoder   Decoder // nil disables scanning
	Ledger    Committer
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Runner is the kiosk loop.
type Runner struct {
	cfg  Config
	deps Deps

	events  Broadcaster
	mailbox *mailbox
	running atomic.Bool
	done    chan struct{}

	// Owned by the Run goroutine.
	session  verify.Session
	student  *database.Student
	scanning bool
	handle   *camera.Handle
	retry    *camera.Retry

	mu     sync.RWMutex
	status Status
	latest camera.Frame
}

// NewRunner validates the configuration and creates a runner.
func NewRunner(cfg Config, deps Deps) (*Runner, error) {
	if err := cfg.Verify.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recognition config: %w", err)
	}
	if deps.Templates == nil || deps.Extractor == nil || deps.Cameras == nil || deps.Ledger == nil {
		return nil, errors.New("templates, extractor, cameras and ledger are required")
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = constants.DefaultFrameInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = constants.DefaultCameraRetryInterval
	}
	if cfg.RetryMaxInterval < cfg.RetryInterval {
		cfg.RetryMaxInterval = max(cfg.RetryInterval, constants.DefaultCameraRetryMaxInterval)
	}
	if cfg.CompareMaxDim <= 0 {
		cfg.CompareMaxDim = constants.DefaultCompareMaxDim
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := &Runner{
		cfg:     cfg,
		deps:    deps,
		mailbox: newMailbox(),
		done:    make(chan struct{}),
		retry:   camera.NewRetry(cfg.RetryInterval, cfg.RetryMaxInterval),
		status: Status{
			Phase:    verify.PhaseIdle,
			Message:  "Waiting for student...",
			Required: cfg.Verify.RequiredMatches,
		},
	}
	r.events.onChange = deps.Metrics.SetStatusListeners
	return r, nil
}

// Events returns the status broadcaster.
func (r *Runner) Events() *Broadcaster {
	return &r.events
}

// Status returns the latest status snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LatestFrame returns the most recent camera frame, if any.
func (r *Runner) LatestFrame() (camera.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.latest.Image != nil
}

// SubmitIdentifier hands a typed identifier to the loop and waits until it is resolved.
// The returned error is one of the templates errors, ErrSuperseded or a context error.
func (r *Runner) SubmitIdentifier(ctx context.Context, identifier string) (Status, error) {
	return r.send(ctx, newCommand(commandIdentify, identifier, ModeTyped))
}

// StartScan switches the loop into code scanning. The first decoded payload is
// used as the identifier; a verification in progress continues until then.
func (r *Runner) StartScan(ctx context.Context) (Status, error) {
	if r.deps.Decoder == nil {
		return r.Status(), ErrScanDisabled
	}
	return r.send(ctx, newCommand(commandScan, "", ModeScan))
}

func (r *Runner) send(ctx context.Context, cmd *command) (Status, error) {
	select {
	case <-r.done:
		return r.Status(), ErrStopped
	default:
	}

	r.mailbox.put(cmd)
	select {
	case rep := <-cmd.reply:
		return rep.status, rep.err
	case <-ctx.Done():
		return r.Status(), ctx.Err() //nolint:wrapcheck // cancellation is returned as is
	case <-r.done:
		return r.Status(), ErrStopped
	}
}

// Run drives the loop until ctx is canceled. The camera is always released on return.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		r.releaseCamera()
		close(r.done)
		if cmd := r.mailbox.take(); cmd != nil {
			cmd.reply <- reply{status: r.Status(), err: ErrStopped}
		}
	}()

	r.deps.Logger.Info("kiosk started",
		"frame_interval", r.cfg.FrameInterval,
		"tolerance", r.cfg.Verify.Tolerance,
		"required_matches", r.cfg.Verify.RequiredMatches,
		"metric", r.cfg.Verify.Metric)

	ticker := time.NewTicker(r.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.deps.Logger.Info("kiosk stopped")
			return nil
		case <-r.mailbox.signal:
			if cmd := r.mailbox.take(); cmd != nil {
				r.handleCommand(ctx, cmd)
			}
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) handleCommand(ctx context.Context, cmd *command) {
	switch cmd.kind {
	case commandScan:
		// A running verification continues until a code is decoded.
		r.scanning = true
		r.setStatus(func(s *Status) {
			s.Scanning = true
			s.Message = "Scanning QR... (hold code in front of camera)"
		})
		cmd.reply <- reply{status: r.Status()}
	case commandIdentify:
		r.scanning = false
		err := r.identify(ctx, cmd.identifier, cmd.mode)
		cmd.reply <- reply{status: r.Status(), err: err}
	}
}

// reset discards the current candidate and counters.
func (r *Runner) reset() {
	r.session = verify.Complete(r.session)
	r.student = nil
	r.deps.Metrics.SetPhase(int(r.session.Phase))
	r.setStatus(func(s *Status) {
		s.SessionID = ""
		s.Phase = r.session.Phase
		s.StudentID = 0
		s.RegistrationNumber = ""
		s.Name = ""
		s.Course = ""
		s.Counter = 0
		s.MatchPercentage = 0
		s.Scanning = r.scanning
	})
}

func (r *Runner) tick(ctx context.Context) {
	frame, ok := r.readFrame(ctx)
	if !ok {
		return
	}

	if r.scanning && r.scanFrame(ctx, frame) {
		return
	}
	if r.session.Phase == verify.PhaseIdentified || r.session.Phase == verify.PhaseVerifying {
		r.verifyFrame(ctx, frame)
	}
}

func (r *Runner) readFrame(ctx context.Context) (camera.Frame, bool) {
	now := r.deps.Now()
	if r.handle == nil {
		if !r.retry.Ready(now) {
			return camera.Frame{}, false
		}
		h, err := r.deps.Cameras.Acquire(ctx)
		if err != nil {
			r.cameraFailed(now, err)
			return camera.Frame{}, false
		}
		r.handle = h
	}

	frame, err := r.handle.ReadFrame(ctx)
	if err != nil {
		r.releaseCamera()
		r.cameraFailed(now, err)
		return camera.Frame{}, false
	}

	r.retry.Succeeded()
	r.mu.Lock()
	r.latest = frame
	cameraWasDown := !r.status.CameraAvailable
	r.mu.Unlock()
	if cameraWasDown {
		r.setStatus(func(s *Status) {
			s.CameraAvailable = true
			if s.Message == cameraUnavailableMessage {
				s.Message = "Ready"
			}
		})
	}
	return frame, true
}

const cameraUnavailableMessage = "Camera not available."

func (r *Runner) cameraFailed(now time.Time, err error) {
	delay := r.retry.Failed(now)
	r.deps.Metrics.RecordCameraFailure()
	r.deps.Logger.Warn("camera unavailable", "error", err, "retry_in", delay)
	r.setStatus(func(s *Status) {
		s.CameraAvailable = false
		s.Message = cameraUnavailableMessage
	})
}

func (r *Runner) releaseCamera() {
	if r.handle == nil {
		return
	}
	if err := r.handle.Release(); err != nil {
		r.deps.Logger.Warn("releasing camera failed", "error", err)
	}
	r.handle = nil
}

// scanFrame decodes a code from the frame and identifies its payload.
// It reports whether a payload was found.
func (r *Runner) scanFrame(ctx context.Context, frame camera.Frame) bool {
	payload, err := r.deps.Decoder.Decode(frame.Image)
	if err != nil {
		r.deps.Logger.Debug("qr decode failed", "error", err)
		return false
	}
	if payload == "" {
		return false
	}

	r.scanning = false
	r.deps.Logger.Info("qr code scanned", "payload", payload)
	if err := r.identify(ctx, payload, ModeScan); err != nil {
		r.deps.Logger.Info("scanned identifier rejected", "payload", payload, "error", err)
	}
	return true
}

func (r *Runner) verifyFrame(ctx context.Context, frame camera.Frame) {
	start := time.Now()
	obs := r.observe(ctx, frame)

	next, out := verify.Step(r.cfg.Verify, r.session, obs)
	r.session = next
	r.deps.Metrics.RecordFrame(outcomeLabel(out.Kind), time.Since(start))
	r.deps.Metrics.SetPhase(int(next.Phase))

	if out.Kind == verify.OutcomeConfirmed {
		r.setStatus(func(s *Status) {
			s.Phase = next.Phase
			s.Counter = next.Counter
			s.MatchPercentage = out.MatchPercentage
		})
		r.commit(ctx, out.MatchPercentage)
		return
	}

	r.setStatus(func(s *Status) {
		s.Phase = next.Phase
		s.Counter = next.Counter
		if obs.FaceFound {
			s.MatchPercentage = out.MatchPercentage
		}
		s.Message = out.Status()
	})
}

// observe extracts the live embedding from the frame. Extraction failures
// count as a frame without a face.
func (r *Runner) observe(ctx context.Context, frame camera.Frame) verify.Observation {
	data, err := fingerprint.EncodeForComparison(frame.Image, r.cfg.CompareMaxDim, constants.CompareJPEGQuality)
	if err != nil {
		r.deps.Logger.Warn("encoding frame failed", "seq", frame.Seq, "error", err)
		return verify.Observation{}
	}

	embedding, err := r.deps.Extractor.Extract(ctx, data)
	if err != nil {
		if !errors.Is(err, fingerprint.ErrNoFace) {
			r.deps.Logger.Warn("face extraction failed", "seq", frame.Seq, "error", err)
		}
		return verify.Observation{}
	}
	return r.cfg.Verify.Observe(r.session.Template, embedding)
}

func (r *Runner) commit(ctx context.Context, pct float64) {
	student := *r.student
	res, err := r.deps.Ledger.Commit(ctx, student, r.deps.Now(), pct)

	var message string
	switch {
	case err != nil:
		// The confirmation is not replayed; the operator has to identify again.
		message = fmt.Sprintf("Attendance could not be saved for %s: %v", student.Name, err)
	case res == ledger.AlreadyRecordedToday:
		message = fmt.Sprintf("Attendance already recorded today: %s", student.Name)
	default:
		message = fmt.Sprintf("Attendance saved: %s (%.2f%%)", student.Name, pct)
	}

	if err == nil {
		r.events.SendEvent(Event{
			Type:    EventAttendance,
			Message: message,
			Data: map[string]any{
				"student_id":          student.ID,
				"registration_number": student.RegistrationNumber,
				"name":                student.Name,
				"result":              res.String(),
				"match_percentage":    pct,
			},
		})
	}

	r.reset()
	r.setStatus(func(s *Status) {
		s.Message = message
		s.MatchPercentage = pct
	})
}

func outcomeLabel(kind verify.OutcomeKind) string {
	switch kind {
	case verify.OutcomeSearching:
		return "searching"
	case verify.OutcomeMatch:
		return "match"
	case verify.OutcomeMismatch:
		return "mismatch"
	case verify.OutcomeConfirmed:
		return "confirmed"
	default:
		return "none"
	}
}

// newSessionID returns an identifier for one verification attempt.
func newSessionID() string {
	return uuid.NewString()
}
