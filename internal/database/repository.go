package database

import (
	"context"
)

// StudentReader provides read-only access to enrolled students
type StudentReader interface {
	// GetByRegistrationNumber retrieves a student by exact registration number, returns nil if not found
	GetByRegistrationNumber(ctx context.Context, regNo string) (*Student, error)
	// Get retrieves a student by ID, returns nil if not found
	Get(ctx context.Context, id int64) (*Student, error)
	// List returns all students ordered by registration number
	List(ctx context.Context) ([]Student, error)
}

// AttendanceReader provides read-only access for reports
type AttendanceReader interface {
	// ListAttendance returns attendance rows matching the filter, newest first
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]AttendanceRow, error)
	// SummarizeByDay returns present counts per date, newest first
	SummarizeByDay(ctx context.Context) ([]DaySummary, error)
	// CountAttendance returns the total number of attendance records
	CountAttendance(ctx context.Context) (int, error)
}

// AttendanceWriter provides the single write path for attendance records
type AttendanceWriter interface {
	AttendanceReader

	// InsertAttendance stores the record unless one already exists for (StudentID, Date).
	// Returns false without error when the record already existed. The existing row is left untouched.
	InsertAttendance(ctx context.Context, rec AttendanceRecord) (bool, error)
}

// TemplateCache persists face templates between kiosk restarts
type TemplateCache interface {
	// GetTemplate returns the template for the student if it was computed from the given photo hash, nil otherwise
	GetTemplate(ctx context.Context, studentID int64, photoHash string) (*StoredTemplate, error)
	// SaveTemplate stores a template (replaces any previous template for that student)
	SaveTemplate(ctx context.Context, tpl StoredTemplate) error
}

// Backend bundles the repositories a storage driver provides.
type Backend struct {
	Students   StudentReader
	Attendance AttendanceWriter
	Templates  TemplateCache // nil when the driver cannot persist templates
	Close      func() error
}
