package templates

import (
	"context"
	"errors"
	"fmt"
)

// WarmReport summarizes a warm run.
type WarmReport struct {
	Loaded       int
	MissingPhoto []string // registration numbers
	NoFace       []string
	Failed       map[string]error
}

// Warm loads the template of every enrolled student so later lookups hit the cache.
// progress, when non-nil, is called after each student.
func (s *Store) Warm(ctx context.Context, progress func(done, total int)) (*WarmReport, error) {
	students, err := s.students.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}

	report := &WarmReport{Failed: make(map[string]error)}
	for i, student := range students {
		if err := ctx.Err(); err != nil {
			return report, err //nolint:wrapcheck // cancellation is returned as is
		}

		_, err := s.LoadTemplate(ctx, student)
		switch {
		case err == nil:
			report.Loaded++
		case errors.Is(err, ErrPhotoMissing):
			report.MissingPhoto = append(report.MissingPhoto, student.RegistrationNumber)
		case errors.Is(err, ErrNoFaceDetected):
			report.NoFace = append(report.NoFace, student.RegistrationNumber)
		default:
			report.Failed[student.RegistrationNumber] = err
		}

		if progress != nil {
			progress(i+1, len(students))
		}
	}
	return report, nil
}
