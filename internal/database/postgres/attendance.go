package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/attendance/internal/database"
)

// AttendanceRepository stores attendance records in PostgreSQL.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// InsertAttendance inserts the record unless (student_id, date) already exists.
func (r *AttendanceRepository) InsertAttendance(ctx context.Context, rec database.AttendanceRecord) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (student_id, date, time, match_percentage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, date) DO NOTHING
	`, rec.StudentID, rec.Date, rec.Time, rec.MatchPercentage)
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance rows affected: %w", err)
	}
	return n == 1, nil
}

// ListAttendance returns attendance rows matching the filter, newest first.
func (r *AttendanceRepository) ListAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRow, error) {
	query := `
		SELECT s.reg_no, s.name, s.course, a.date, a.time, a.match_percentage
		FROM attendance a
		JOIN students s ON s.id = a.student_id
	`
	var args []any
	if filter.Date != "" {
		query += ` WHERE a.date = $1`
		args = append(args, filter.Date)
	}
	query += ` ORDER BY a.date DESC, a.time DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var result []database.AttendanceRow
	for rows.Next() {
		var row database.AttendanceRow
		if err := rows.Scan(&row.RegistrationNumber, &row.Name, &row.Course, &row.Date, &row.Time, &row.MatchPercentage); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return database.FilterRows(result, filter.Search), nil
}

// SummarizeByDay returns present counts per date, newest first.
func (r *AttendanceRepository) SummarizeByDay(ctx context.Context) ([]database.DaySummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date, COUNT(*) FROM attendance GROUP BY date ORDER BY date DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("summarize attendance: %w", err)
	}
	defer rows.Close()

	var result []database.DaySummary
	for rows.Next() {
		var d database.DaySummary
		if err := rows.Scan(&d.Date, &d.PresentCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return result, nil
}

// CountAttendance returns the total number of attendance records.
func (r *AttendanceRepository) CountAttendance(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
