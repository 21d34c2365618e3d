// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/attendance/internal/database"
)

// MockStudentReader is a mock implementation of database.StudentReader
type MockStudentReader struct {
	mu       sync.RWMutex
	students map[int64]*database.Student

	// Error injection
	GetError  error
	ListError error
}

// NewMockStudentReader creates a new mock student reader
func NewMockStudentReader() *MockStudentReader {
	return &MockStudentReader{
		students: make(map[int64]*database.Student),
	}
}

// AddStudent adds a student to the mock store
func (m *MockStudentReader) AddStudent(s database.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = &s
}

// GetByRegistrationNumber retrieves a student by exact registration number
func (m *MockStudentReader) GetByRegistrationNumber(ctx context.Context, regNo string) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.students {
		if s.RegistrationNumber == regNo {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

// Get retrieves a student by ID
func (m *MockStudentReader) Get(ctx context.Context, id int64) (*database.Student, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// List returns all students ordered by registration number
func (m *MockStudentReader) List(ctx context.Context) ([]database.Student, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.Student, 0, len(m.students))
	for _, s := range m.students {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RegistrationNumber < result[j].RegistrationNumber
	})
	return result, nil
}

type attendanceKey struct {
	studentID int64
	date      string
}

// MockAttendanceStore is a mock implementation of database.AttendanceWriter.
// Reports join against the students of the attached reader.
type MockAttendanceStore struct {
	mu       sync.RWMutex
	records  map[attendanceKey]database.AttendanceRecord
	nextID   int64
	students *MockStudentReader

	// Error injection
	InsertError error
	ListError   error
	CountError  error

	// InsertCalls counts InsertAttendance invocations including failed ones
	InsertCalls int
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore(students *MockStudentReader) *MockAttendanceStore {
	return &MockAttendanceStore{
		records:  make(map[attendanceKey]database.AttendanceRecord),
		students: students,
	}
}

// InsertAttendance stores the record unless one exists for (StudentID, Date)
func (m *MockAttendanceStore) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertError != nil {
		return false, m.InsertError
	}
	key := attendanceKey{rec.StudentID, rec.Date}
	if _, exists := m.records[key]; exists {
		return false, nil
	}
	m.nextID++
	rec.ID = m.nextID
	m.records[key] = rec
	return true, nil
}

// Records returns all stored records ordered by ID
func (m *MockAttendanceStore) Records() []database.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.AttendanceRecord, 0, len(m.records))
	for _, r := range m.records {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ListAttendance returns rows matching the filter, newest first
func (m *MockAttendanceStore) ListAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRow, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []database.AttendanceRow
	for _, r := range m.records {
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		row := database.AttendanceRow{Date: r.Date, Time: r.Time, MatchPercentage: r.MatchPercentage}
		if m.students != nil {
			if s, _ := m.students.Get(ctx, r.StudentID); s != nil {
				row.RegistrationNumber = s.RegistrationNumber
				row.Name = s.Name
				row.Course = s.Course
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date > rows[j].Date
		}
		return rows[i].Time > rows[j].Time
	})
	return database.FilterRows(rows, filter.Search), nil
}

// SummarizeByDay returns present counts per date, newest first
func (m *MockAttendanceStore) SummarizeByDay(ctx context.Context) ([]database.DaySummary, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range m.records {
		counts[r.Date]++
	}
	result := make([]database.DaySummary, 0, len(counts))
	for date, n := range counts {
		result = append(result, database.DaySummary{Date: date, PresentCount: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date > result[j].Date })
	return result, nil
}

// CountAttendance returns the total number of records
func (m *MockAttendanceStore) CountAttendance(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// MockTemplateCache is a mock implementation of database.TemplateCache
type MockTemplateCache struct {
	mu        sync.RWMutex
	templates map[int64]database.StoredTemplate

	// Error injection
	GetError  error
	SaveError error

	SaveCalls int
}

// NewMockTemplateCache creates a new mock template cache
func NewMockTemplateCache() *MockTemplateCache {
	return &MockTemplateCache{templates: make(map[int64]database.StoredTemplate)}
}

// GetTemplate returns the template if it matches the photo hash
func (m *MockTemplateCache) GetTemplate(ctx context.Context, studentID int64, photoHash string) (*database.StoredTemplate, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[studentID]
	if !ok || tpl.PhotoHash != photoHash {
		return nil, nil
	}
	return &tpl, nil
}

// SaveTemplate stores a template, replacing the previous one for the student
func (m *MockTemplateCache) SaveTemplate(ctx context.Context, tpl database.StoredTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.templates[tpl.StudentID] = tpl
	return nil
}

// NewBackend bundles fresh mocks into a database.Backend
func NewBackend() (*database.Backend, *MockStudentReader, *MockAttendanceStore, *MockTemplateCache) {
	students := NewMockStudentReader()
	attendance := NewMockAttendanceStore(students)
	templates := NewMockTemplateCache()
	return &database.Backend{
		Students:   students,
		Attendance: attendance,
		Templates:  templates,
		Close:      func() error { return nil },
	}, students, attendance, templates
}

var _ database.StudentReader = (*MockStudentReader)(nil)
var _ database.AttendanceWriter = (*MockAttendanceStore)(nil)
var _ database.TemplateCache = (*MockTemplateCache)(nil)
