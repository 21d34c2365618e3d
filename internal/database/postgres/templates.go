package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// TemplateRepository persists face templates as pgvector columns.
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new PostgreSQL template repository.
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// GetTemplate returns the cached template when it was computed from photoHash.
func (r *TemplateRepository) GetTemplate(ctx context.Context, studentID int64, photoHash string) (*database.StoredTemplate, error) {
	var tpl database.StoredTemplate
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, `
		SELECT student_id, photo_hash, embedding, model, dim, created_at
		FROM face_templates
		WHERE student_id = $1 AND photo_hash = $2
	`, studentID, photoHash).Scan(&tpl.StudentID, &tpl.PhotoHash, &vec, &tpl.Model, &tpl.Dim, &tpl.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template for student %d: %w", studentID, err)
	}

	tpl.Embedding = vec.Slice()
	return &tpl, nil
}

// SaveTemplate upserts the template for a student.
func (r *TemplateRepository) SaveTemplate(ctx context.Context, tpl database.StoredTemplate) error {
	vec := pgvector.NewVector(tpl.Embedding)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_templates (student_id, photo_hash, embedding, model, dim)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			photo_hash = EXCLUDED.photo_hash,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			created_at = NOW()
	`, tpl.StudentID, tpl.PhotoHash, vec, tpl.Model, len(tpl.Embedding))
	if err != nil {
		return fmt.Errorf("save template for student %d: %w", tpl.StudentID, err)
	}
	return nil
}
