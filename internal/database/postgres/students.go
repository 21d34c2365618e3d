package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance/internal/database"
)

// StudentRepository reads enrolled students from PostgreSQL.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, reg_no, name, course, mobile, photo_path, created_at`

func scanStudent(row interface{ Scan(...any) error }) (*database.Student, error) {
	var s database.Student
	if err := row.Scan(&s.ID, &s.RegistrationNumber, &s.Name, &s.Course, &s.Mobile, &s.PhotoPath, &s.CreatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with query context
	}
	return &s, nil
}

// GetByRegistrationNumber retrieves a student by exact registration number.
func (r *StudentRepository) GetByRegistrationNumber(ctx context.Context, regNo string) (*database.Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE reg_no = $1`, regNo)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %q: %w", regNo, err)
	}
	return s, nil
}

// Get retrieves a student by ID.
func (r *StudentRepository) Get(ctx context.Context, id int64) (*database.Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}
	return s, nil
}

// List returns all students ordered by registration number.
func (r *StudentRepository) List(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY reg_no`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// Create inserts a student and returns its ID. Used by tests and seeding.
func (r *StudentRepository) Create(ctx context.Context, s database.Student) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO students (reg_no, name, course, mobile, photo_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, s.RegistrationNumber, s.Name, s.Course, s.Mobile, s.PhotoPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return id, nil
}
