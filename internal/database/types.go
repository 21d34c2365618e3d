package database

import (
	"time"
)

// Student is an enrolled person as written by the enrollment workflow.
// The attendance core only reads these rows.
type Student struct {
	ID                 int64
	RegistrationNumber string
	Name               string
	Course             string
	Mobile             string
	PhotoPath          string // enrollment photo reference, absolute or relative to PHOTOS_DIR
	CreatedAt          time.Time
}

// AttendanceRecord is one confirmed attendance event.
// At most one record exists per (StudentID, Date).
type AttendanceRecord struct {
	ID              int64
	StudentID       int64
	Date            string // YYYY-MM-DD in the kiosk timezone
	Time            string // HH:MM:SS in the kiosk timezone
	MatchPercentage float64
}

// StoredTemplate is a cached face embedding derived from an enrollment photo.
// PhotoHash identifies the photo content the embedding was computed from.
type StoredTemplate struct {
	StudentID int64
	PhotoHash string
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// AttendanceRow is a report row joining attendance with student data.
type AttendanceRow struct {
	RegistrationNumber string  `json:"registration_number"`
	Name               string  `json:"name"`
	Course             string  `json:"course"`
	Date               string  `json:"date"`
	Time               string  `json:"time"`
	MatchPercentage    float64 `json:"match_percentage"`
}

// DaySummary is the number of students present on a date.
type DaySummary struct {
	Date         string `json:"date"`
	PresentCount int    `json:"present_count"`
}

// AttendanceFilter narrows report queries.
// Empty fields do not filter.
type AttendanceFilter struct {
	Date   string // exact YYYY-MM-DD
	Search string // substring of registration number or name (case and diacritic insensitive)
}
