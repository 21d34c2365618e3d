// Package verify implements the consecutive-match confirmation protocol.
//
// A Session is a plain value; Step computes the next session from one observed
// frame and never performs I/O. The kiosk loop owns the only live Session.
package verify

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/facematch"
)

// Phase is the verification state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseIdentified
	PhaseVerifying
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseIdentified:
		return "identified"
	case PhaseVerifying:
		return "verifying"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText lets phases appear by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseIdentified, PhaseVerifying, PhaseConfirmed} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Config holds the recognition thresholds.
type Config struct {
	Tolerance       float64
	RequiredMatches int
	Metric          facematch.Metric
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Tolerance:       constants.DefaultTolerance,
		RequiredMatches: constants.DefaultRequiredMatches,
		Metric:          facematch.MetricEuclidean,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	var errs []error
	if c.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance must be positive, got %v", c.Tolerance))
	}
	if c.RequiredMatches < 1 {
		errs = append(errs, fmt.Errorf("required matches must be at least 1, got %d", c.RequiredMatches))
	}
	return errors.Join(errs...)
}

// Session is the state of one verification attempt.
type Session struct {
	Phase               Phase
	StudentID           int64
	StudentName         string
	Template            []float32
	Counter             int
	LastMatchPercentage float64
}

// Armed reports whether the session holds a candidate.
func (s Session) Armed() bool {
	return s.Template != nil
}

// Observation is what one frame showed.
type Observation struct {
	FaceFound bool
	Distance  float64
}

// Observe compares a live embedding with the session template.
// A nil embedding means no face was found in the frame.
func (c Config) Observe(template, live []float32) Observation {
	if live == nil {
		return Observation{}
	}
	return Observation{FaceFound: true, Distance: c.Metric.Distance(template, live)}
}

// OutcomeKind classifies the result of a Step.
type OutcomeKind int

const (
	// OutcomeNone means the session was not verifying and nothing changed.
	OutcomeNone OutcomeKind = iota
	// OutcomeSearching means the frame had no face.
	OutcomeSearching
	// OutcomeMatch means the frame matched the template.
	OutcomeMatch
	// OutcomeMismatch means a face was found but did not match.
	OutcomeMismatch
	// OutcomeConfirmed means the required number of matches was reached on this frame.
	OutcomeConfirmed
)

// Outcome is what a Step decided.
type Outcome struct {
	Kind            OutcomeKind
	MatchPercentage float64
	Counter         int
}

// Status returns the operator-facing text for the outcome.
func (o Outcome) Status() string {
	switch o.Kind {
	case OutcomeSearching:
		return "Looking for face..."
	case OutcomeMatch, OutcomeMismatch, OutcomeConfirmed:
		return fmt.Sprintf("Match: %.2f%%", o.MatchPercentage)
	default:
		return ""
	}
}

// Arm starts verification for a student, discarding any previous session.
func Arm(studentID int64, name string, template []float32) Session {
	return Session{
		Phase:       PhaseIdentified,
		StudentID:   studentID,
		StudentName: name,
		Template:    template,
	}
}

// Step applies one frame observation.
// An IDENTIFIED session enters VERIFYING and the same frame is evaluated.
// The counter rises on a match and falls (never below zero) on a mismatch;
// frames without a face leave it unchanged.
func Step(cfg Config, s Session, obs Observation) (Session, Outcome) {
	switch s.Phase {
	case PhaseIdentified:
		s.Phase = PhaseVerifying
	case PhaseVerifying:
	default:
		return s, Outcome{Kind: OutcomeNone, Counter: s.Counter}
	}

	if !obs.FaceFound {
		return s, Outcome{Kind: OutcomeSearching, Counter: s.Counter}
	}

	pct := facematch.MatchPercentage(obs.Distance)
	s.LastMatchPercentage = pct

	kind := OutcomeMismatch
	if facematch.IsMatch(obs.Distance, cfg.Tolerance) {
		s.Counter++
		kind = OutcomeMatch
	} else {
		s.Counter = max(0, s.Counter-1)
	}

	if s.Counter >= cfg.RequiredMatches {
		s.Phase = PhaseConfirmed
		kind = OutcomeConfirmed
	}

	return s, Outcome{Kind: kind, MatchPercentage: pct, Counter: s.Counter}
}

// Complete ends a session, clearing the candidate and counter.
func Complete(Session) Session {
	return Session{Phase: PhaseIdle}
}
