package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/database"
)

// AttendanceHandler serves read-only attendance reports.
type AttendanceHandler struct {
	reader database.AttendanceReader
	logger *slog.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(reader database.AttendanceReader, logger *slog.Logger) *AttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{reader: reader, logger: logger}
}

// AttendanceListResponse is the response of the attendance list endpoint.
type AttendanceListResponse struct {
	Rows  []database.AttendanceRow `json:"rows"`
	Count int                      `json:"count"`
}

// SummaryResponse is the response of the per-day summary endpoint.
type SummaryResponse struct {
	Days  []database.DaySummary `json:"days"`
	Total int                   `json:"total"`
}

// List returns attendance rows filtered by ?date=YYYY-MM-DD and ?search=.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := database.AttendanceFilter{
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if filter.Date != "" {
		if _, err := time.Parse(constants.DateLayout, filter.Date); err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
	}

	rows, err := h.reader.ListAttendance(r.Context(), filter)
	if err != nil {
		h.logger.Error("listing attendance failed",
			"date", filter.Date,
			"search", sanitizeForLog(filter.Search),
			"error", err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}
	if rows == nil {
		rows = []database.AttendanceRow{}
	}

	respondJSON(w, http.StatusOK, AttendanceListResponse{Rows: rows, Count: len(rows)})
}

// Summary returns the number of students present per date.
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	days, err := h.reader.SummarizeByDay(r.Context())
	if err != nil {
		h.logger.Error("summarizing attendance failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to summarize attendance")
		return
	}
	if days == nil {
		days = []database.DaySummary{}
	}

	total, err := h.reader.CountAttendance(r.Context())
	if err != nil {
		h.logger.Error("counting attendance failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to summarize attendance")
		return
	}

	respondJSON(w, http.StatusOK, SummaryResponse{Days: days, Total: total})
}
