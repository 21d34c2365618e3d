// Package ledger records confirmed attendance, at most once per student per day.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/attendance/internal/constants"
	"github.com/kozaktomas/attendance/internal/database"
	"github.com/kozaktomas/attendance/internal/metrics"
)

// ErrStorageFailure wraps any error from the attendance store.
var ErrStorageFailure = errors.New("storage failure")

// Result is the outcome of a successful Commit.
type Result int

const (
	// Committed means a new record was written.
	Committed Result = iota
	// AlreadyRecordedToday means the student already had a record for the date; nothing changed.
	AlreadyRecordedToday
)

func (r Result) String() string {
	switch r {
	case Committed:
		return "committed"
	case AlreadyRecordedToday:
		return "already_recorded"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Event describes a committed attendance record.
type Event struct {
	StudentID          int64   `json:"student_id"`
	RegistrationNumber string  `json:"registration_number"`
	Name               string  `json:"name"`
	Course             string  `json:"course"`
	Date               string  `json:"date"`
	Time               string  `json:"time"`
	MatchPercentage    float64 `json:"match_percentage"`
}

// Notifier is told about new records. Failures do not affect the commit.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Ledger is the only writer of attendance records.
type Ledger struct {
	store    database.AttendanceWriter
	location *time.Location
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocation sets the timezone used to derive the record date and time.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithNotifier publishes committed records.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithMetrics counts commit results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a ledger over store.
func New(store database.AttendanceWriter, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Commit records attendance for student at the given instant.
// A second commit for the same student and date returns AlreadyRecordedToday
// and leaves the first record unchanged.
func (l *Ledger) Commit(ctx context.Context, student database.Student, at time.Time, matchPercentage float64) (Result, error) {
	local := at.In(l.location)
	rec := database.AttendanceRecord{
		StudentID:       student.ID,
		Date:            local.Format(constants.DateLayout),
		Time:            local.Format(constants.TimeLayout),
		MatchPercentage: matchPercentage,
	}

	inserted, err := l.store.InsertAttendance(ctx, rec)
	if err != nil {
		l.metrics.RecordCommit(metrics.CommitStorageFailure)
		l.logger.Error("attendance commit failed",
			"student_id", student.ID,
			"date", rec.Date,
			"error", err)
		return 0, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if !inserted {
		l.metrics.RecordCommit(metrics.CommitAlreadyRecorded)
		l.logger.Info("attendance already recorded", "student_id", student.ID, "date", rec.Date)
		return AlreadyRecordedToday, nil
	}

	l.metrics.RecordCommit(metrics.CommitCommitted)
	l.logger.Info("attendance recorded",
		"student_id", student.ID,
		"reg_no", student.RegistrationNumber,
		"date", rec.Date,
		"time", rec.Time,
		"match_percentage", matchPercentage)

	if l.notifier != nil {
		event := Event{
			StudentID:          student.ID,
			RegistrationNumber: student.RegistrationNumber,
			Name:               student.Name,
			Course:             student.Course,
			Date:               rec.Date,
			Time:               rec.Time,
			MatchPercentage:    matchPercentage,
		}
		if err := l.notifier.Notify(ctx, event); err != nil {
			l.logger.Warn("attendance notification failed", "student_id", student.ID, "error", err)
		}
	}

	return Committed, nil
}
