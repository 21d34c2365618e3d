package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/attendance/internal/camera"
	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/fingerprint"
	"github.com/kozaktomas/attendance/internal/kiosk"
	"github.com/kozaktomas/attendance/internal/templates"
	"github.com/kozaktomas/attendance/internal/verify"
)

// Kiosk is the part of the kiosk runner the HTTP API drives.
type Kiosk interface {
	Status() kiosk.Status
	Events() *kiosk.Broadcaster
	LatestFrame() (camera.Frame, bool)
	SubmitIdentifier(ctx context.Context, identifier string) (kiosk.Status, error)
	StartScan(ctx context.Context) (kiosk.Status, error)
}

// KioskHandler handles operator requests against the running kiosk.
type KioskHandler struct {
	kiosk         Kiosk
	previewMaxDim int
	logger        *slog.Logger
}

// NewKioskHandler creates a new kiosk handler. Frames are served scaled to previewMaxDim.
func NewKioskHandler(k Kiosk, previewMaxDim int, logger *slog.Logger) *KioskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KioskHandler{kiosk: k, previewMaxDim: previewMaxDim, logger: logger}
}

// IdentifyRequest is the body of an identify request.
type IdentifyRequest struct {
	Identifier string `json:"identifier"`
}

// KioskResponse carries the kiosk status after a request, plus the error if it was rejected.
type KioskResponse struct {
	Status kiosk.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthResponse reports liveness. A kiosk without a camera is degraded but
// still serves reports.
type HealthResponse struct {
	Status          string       `json:"status"`
	CameraAvailable bool         `json:"camera_available"`
	Phase           verify.Phase `json:"phase"`
}

// Health always answers 200 while the process runs.
func (h *KioskHandler) Health(w http.ResponseWriter, r *http.Request) {
	st := h.kiosk.Status()
	resp := HealthResponse{Status: "ok", CameraAvailable: st.CameraAvailable, Phase: st.Phase}
	if !st.CameraAvailable {
		resp.Status = "degraded"
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status returns the current kiosk status.
func (h *KioskHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.kiosk.Status())
}

// Identify submits a typed identifier and waits until the kiosk resolved it.
func (h *KioskHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := h.kiosk.SubmitIdentifier(r.Context(), req.Identifier)
	if err != nil {
		h.logger.Info("identify rejected",
			"identifier", sanitizeForLog(req.Identifier),
			"error", err)
		respondJSON(w, kioskErrorStatus(err), KioskResponse{Status: status, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, KioskResponse{Status: status})
}

// Scan switches the kiosk into code scanning.
func (h *KioskHandler) Scan(w http.ResponseWriter, r *http.Request) {
	status, err := h.kiosk.StartScan(r.Context())
	if err != nil {
		respondJSON(w, kioskErrorStatus(err), KioskResponse{Status: status, Error: err.Error()})
		return
	}
	respondJSON(w, http.StatusAccepted, KioskResponse{Status: status})
}

// Events streams status changes and attendance events.
func (h *KioskHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamEvents(w, r, h.kiosk.Events(), h.kiosk.Status())
}

// Frame returns the latest camera frame as JPEG.
func (h *KioskHandler) Frame(w http.ResponseWriter, r *http.Request) {
	frame, ok := h.kiosk.LatestFrame()
	if !ok {
		respondError(w, http.StatusServiceUnavailable, "no frame available")
		return
	}

	data, err := fingerprint.EncodeForComparison(frame.Image, h.previewMaxDim, constants.PreviewJPEGQuality)
	if err != nil {
		h.logger.Warn("frame encode failed", "seq", frame.Seq, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to encode frame")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// kioskErrorStatus maps kiosk and template errors to HTTP status codes.
func kioskErrorStatus(err error) int {
	switch {
	case errors.Is(err, templates.ErrEmptyIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, templates.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, templates.ErrPhotoMissing), errors.Is(err, templates.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kiosk.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, kiosk.ErrScanDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, kiosk.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
