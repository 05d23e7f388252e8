package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// SectionRepository reads semester sections joined with their subjects.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository builds the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionDetailColumns = `sec.id, sec.semester_id, sec.code, sec.year_level, sec.subject_id,
subj.code AS subject_code, subj.name AS subject_name, subj.units, subj.lecture_minutes, subj.lab_minutes,
subj.has_lab, subj.room_type, subj.room_priority, subj.is_gened`

// ListBySemester returns every section of the semester ordered by code.
func (r *SectionRepository) ListBySemester(ctx context.Context, semesterID string) ([]models.SectionDetail, error) {
	query := `SELECT ` + sectionDetailColumns + `
FROM sections sec JOIN subjects subj ON subj.id = sec.subject_id
WHERE sec.semester_id = $1 ORDER BY sec.code ASC, sec.id ASC`
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, semesterID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindByIDs re-resolves sections of a semester inside the given executor.
// Sections that no longer exist are absent from the result.
func (r *SectionRepository) FindByIDs(ctx context.Context, exec sqlx.QueryerContext, semesterID string, ids []string) (map[string]models.SectionDetail, error) {
	result := make(map[string]models.SectionDetail, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	if exec == nil {
		exec = r.db
	}
	query, args, err := sqlx.In(`SELECT `+sectionDetailColumns+`
FROM sections sec JOIN subjects subj ON subj.id = sec.subject_id
WHERE sec.semester_id = ? AND sec.id IN (?)`, semesterID, ids)
	if err != nil {
		return nil, fmt.Errorf("build section lookup: %w", err)
	}
	var sections []models.SectionDetail
	if err := sqlx.SelectContext(ctx, exec, &sections, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("resolve sections: %w", err)
	}
	for _, sec := range sections {
		result[sec.ID] = sec
	}
	return result, nil
}
