package kiosk

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance/internal/templates"
	"github.com/kozaktomas/attendance/internal/verify"
)

// identify resolves an identifier, loads the template and arms verification.
// Any previous session is discarded first. On failure the kiosk stays idle.
func (r *Runner) identify(ctx context.Context, identifier, mode string) error {
	r.reset()

	student, err := r.deps.Templates.ResolveCandidate(ctx, identifier)
	if err != nil {
		r.rejectIdentifier(mode, err, resolveMessage(err))
		return err
	}

	r.setStatus(func(s *Status) {
		s.StudentID = student.ID
		s.RegistrationNumber = student.RegistrationNumber
		s.Name = student.Name
		s.Course = student.Course
	})

	tpl, err := r.deps.Templates.LoadTemplate(ctx, *student)
	if err != nil {
		r.rejectIdentifier(mode, err, loadMessage(err))
		return err
	}

	r.student = student
	r.session = verify.Arm(student.ID, student.Name, tpl.Embedding)
	r.deps.Metrics.RecordIdentification(mode, "armed")
	r.deps.Metrics.SetPhase(int(r.session.Phase))
	r.deps.Logger.Info("student identified",
		"mode", mode,
		"student_id", student.ID,
		"reg_no", student.RegistrationNumber)

	sessionID := newSessionID()
	r.setStatus(func(s *Status) {
		s.SessionID = sessionID
		s.Phase = r.session.Phase
		s.Counter = 0
		s.MatchPercentage = 0
		s.Message = "Student loaded. Starting live recognition..."
	})
	return nil
}

func (r *Runner) rejectIdentifier(mode string, err error, message string) {
	r.deps.Metrics.RecordIdentification(mode, errorLabel(err))
	r.deps.Logger.Info("identifier rejected", "mode", mode, "error", err)
	r.setStatus(func(s *Status) {
		s.Phase = verify.PhaseIdle
		s.Message = message
	})
}

func resolveMessage(err error) string {
	switch {
	case errors.Is(err, templates.ErrEmptyIdentifier):
		return "Enter a registration number."
	case errors.Is(err, templates.ErrNotFound):
		return "Student not found."
	default:
		return fmt.Sprintf("Error loading student: %v", err)
	}
}

func loadMessage(err error) string {
	switch {
	case errors.Is(err, templates.ErrPhotoMissing):
		return "Stored photo not found."
	case errors.Is(err, templates.ErrNoFaceDetected):
		return "No face in stored photo."
	default:
		return fmt.Sprintf("Error loading face: %v", err)
	}
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, templates.ErrEmptyIdentifier):
		return "empty"
	case errors.Is(err, templates.ErrNotFound):
		return "not_found"
	case errors.Is(err, templates.ErrPhotoMissing):
		return "photo_missing"
	case errors.Is(err, templates.ErrNoFaceDetected):
		return "no_face"
	default:
		return "error"
	}
}
