// Package gormdb implements the storage backends for SQLite and MySQL using GORM.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/attendance/internal/database"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func init() {
	database.RegisterDriver("sqlite", OpenSQLite)
	database.RegisterDriver("mysql", OpenMySQL)
}

// Store implements the attendance repositories on a GORM connection.
type Store struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, dsn string, maxOpen, maxIdle int) (*database.Backend, error) {
	// SQLite serializes writers; a single connection avoids "database is locked".
	return open(ctx, sqlite.Open(dsn), "sqlite", 1, 1)
}

// OpenMySQL opens a MySQL database. The DSN must include parseTime=True.
func OpenMySQL(ctx context.Context, dsn string, maxOpen, maxIdle int) (*database.Backend, error) {
	return open(ctx, mysql.Open(dsn), "mysql", maxOpen, maxIdle)
}

func open(ctx context.Context, dialector gorm.Dialector, name string, maxOpen, maxIdle int) (*database.Backend, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s connection: %w", name, err)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	store, err := New(ctx, db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	slog.Info("database ready", "driver", name)
	return store.Backend(), nil
}

// New migrates the schema on db and returns a store.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(&studentModel{}, &attendanceModel{}, &templateModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Backend exposes the store through the repository interfaces.
func (s *Store) Backend() *database.Backend {
	return &database.Backend{
		Students:   s,
		Attendance: s,
		Templates:  s,
		Close:      s.Close,
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("retrieving connection: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// CreateStudent inserts a student and returns its ID. Used by tests and seeding.
func (s *Store) CreateStudent(ctx context.Context, st database.Student) (int64, error) {
	m := studentModel{
		RegNo:     st.RegistrationNumber,
		Name:      st.Name,
		Course:    st.Course,
		Mobile:    st.Mobile,
		PhotoPath: st.PhotoPath,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return m.ID, nil
}

// GetByRegistrationNumber retrieves a student by exact registration number.
func (s *Store) GetByRegistrationNumber(ctx context.Context, regNo string) (*database.Student, error) {
	var m studentModel
	err := s.db.WithContext(ctx).Where("reg_no = ?", regNo).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %q: %w", regNo, err)
	}
	st := m.toStudent()
	return &st, nil
}

// Get retrieves a student by ID.
func (s *Store) Get(ctx context.Context, id int64) (*database.Student, error) {
	var m studentModel
	err := s.db.WithContext(ctx).Take(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}
	st := m.toStudent()
	return &st, nil
}

// List returns all students ordered by registration number.
func (s *Store) List(ctx context.Context) ([]database.Student, error) {
	var models []studentModel
	if err := s.db.WithContext(ctx).Order("reg_no").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]database.Student, 0, len(models))
	for _, m := range models {
		students = append(students, m.toStudent())
	}
	return students, nil
}

// InsertAttendance inserts the record unless (student_id, date) already exists.
func (s *Store) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	m := attendanceModel{
		StudentID:       rec.StudentID,
		Date:            rec.Date,
		Time:            rec.Time,
		MatchPercentage: rec.MatchPercentage,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
	if result.Error != nil {
		return false, fmt.Errorf("insert attendance: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ListAttendance returns attendance rows matching the filter, newest first.
func (s *Store) ListAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRow, error) {
	q := s.db.WithContext(ctx).
		Table("attendance AS a").
		Select("s.reg_no AS registration_number, s.name AS name, s.course AS course, a.date AS date, a.time AS time, a.match_percentage AS match_percentage").
		Joins("JOIN students s ON s.id = a.student_id")
	if filter.Date != "" {
		q = q.Where("a.date = ?", filter.Date)
	}

	var rows []database.AttendanceRow
	if err := q.Order("a.date DESC, a.time DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return database.FilterRows(rows, filter.Search), nil
}

// SummarizeByDay returns present counts per date, newest first.
func (s *Store) SummarizeByDay(ctx context.Context) ([]database.DaySummary, error) {
	var result []database.DaySummary
	err := s.db.WithContext(ctx).
		Model(&attendanceModel{}).
		Select("date, COUNT(*) AS present_count").
		Group("date").
		Order("date DESC").
		Scan(&result).Error
	if err != nil {
		return nil, fmt.Errorf("summarize attendance: %w", err)
	}
	return result, nil
}

// CountAttendance returns the total number of attendance records.
func (s *Store) CountAttendance(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&attendanceModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return int(count), nil
}

// GetTemplate returns the cached template when it was computed from photoHash.
func (s *Store) GetTemplate(ctx context.Context, studentID int64, photoHash string) (*database.StoredTemplate, error) {
	var m templateModel
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND photo_hash = ?", studentID, photoHash).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template for student %d: %w", studentID, err)
	}
	return &database.StoredTemplate{
		StudentID: m.StudentID,
		PhotoHash: m.PhotoHash,
		Embedding: m.Embedding,
		Model:     m.Model,
		Dim:       m.Dim,
		CreatedAt: m.CreatedAt,
	}, nil
}

// SaveTemplate upserts the template for a student.
func (s *Store) SaveTemplate(ctx context.Context, tpl database.StoredTemplate) error {
	m := templateModel{
		StudentID: tpl.StudentID,
		PhotoHash: tpl.PhotoHash,
		Embedding: tpl.Embedding,
		Model:     tpl.Model,
		Dim:       len(tpl.Embedding),
		CreatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"photo_hash", "embedding", "model", "dim", "created_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("save template for student %d: %w", tpl.StudentID, err)
	}
	return nil
}

var _ database.StudentReader = (*Store)(nil)
var _ database.AttendanceWriter = (*Store)(nil)
var _ database.TemplateCache = (*Store)(nil)
