package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// GenEdBlockRepository reads reserved GenEd blocks.
type GenEdBlockRepository struct {
	db *sqlx.DB
}

// NewGenEdBlockRepository builds the repository.
func NewGenEdBlockRepository(db *sqlx.DB) *GenEdBlockRepository {
	return &GenEdBlockRepository{db: db}
}

// ListBySemester returns the semester's blocks.
func (r *GenEdBlockRepository) ListBySemester(ctx context.Context, semesterID string) ([]models.GenEdBlock, error) {
	const query = `SELECT id, semester_id, day_of_week, start_time, end_time, label FROM gened_blocks WHERE semester_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var blocks []models.GenEdBlock
	if err := r.db.SelectContext(ctx, &blocks, query, semesterID); err != nil {
		return nil, fmt.Errorf("list gened blocks: %w", err)
	}
	return blocks, nil
}
