package kiosk

import (
	"time"

	"github.com/kozaktomas/attendance/internal/verify"
)

// Status is the operator-facing state of the kiosk.
type Status struct {
	SessionID          string       `json:"session_id,omitempty"`
	Phase              verify.Phase `json:"phase"`
	Scanning           bool         `json:"scanning"`
	Message            string       `json:"message"`
	StudentID          int64        `json:"student_id,omitempty"`
	RegistrationNumber string       `json:"registration_number,omitempty"`
	Name               string       `json:"name,omitempty"`
	Course             string       `json:"course,omitempty"`
	Counter            int          `json:"counter"`
	Required           int          `json:"required"`
	MatchPercentage    float64      `json:"match_percentage"`
	CameraAvailable    bool         `json:"camera_available"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// sameContent compares two statuses ignoring the timestamp.
func (s Status) sameContent(o Status) bool {
	s.UpdatedAt = time.Time{}
	o.UpdatedAt = time.Time{}
	return s == o
}

// setStatus applies update and notifies listeners when anything changed.
func (r *Runner) setStatus(update func(s *Status)) {
	r.mu.Lock()
	prev := r.status
	next := prev
	update(&next)
	if next.sameContent(prev) {
		r.mu.Unlock()
		return
	}
	next.UpdatedAt = r.deps.Now()
	r.status = next
	r.mu.Unlock()

	r.events.SendEvent(Event{Type: EventStatus, Message: next.Message, Data: next})
}
