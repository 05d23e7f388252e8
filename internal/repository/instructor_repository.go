package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// InstructorRepository reads instructors, their availability and teaching history.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository builds the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// ListActive returns active instructors joined with rank, designation and
// academic attainment.
func (r *InstructorRepository) ListActive(ctx context.Context) ([]models.InstructorDetail, error) {
	const query = `SELECT i.id, i.name, i.employment_type, i.normal_load_hours, i.overload_units,
rk.normal_load_hours AS rank_normal_load_hours, d.release_hours AS designation_release_hours,
aa.overload_units AS attainment_overload_units, i.credentials, i.experience, i.preference
FROM instructors i
LEFT JOIN ranks rk ON rk.id = i.rank_id
LEFT JOIN designations d ON d.id = i.designation_id
LEFT JOIN academic_attainments aa ON aa.id = i.attainment_id
WHERE i.is_active = TRUE ORDER BY i.name ASC, i.id ASC`
	var instructors []models.InstructorDetail
	if err := r.db.SelectContext(ctx, &instructors, query); err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	return instructors, nil
}

// ListAvailability returns every stored availability window of active instructors.
func (r *InstructorRepository) ListAvailability(ctx context.Context) ([]models.InstructorAvailability, error) {
	const query = `SELECT a.id, a.instructor_id, a.day_of_week, a.start_time, a.end_time
FROM instructor_availability a JOIN instructors i ON i.id = a.instructor_id
WHERE i.is_active = TRUE ORDER BY a.instructor_id ASC, a.day_of_week ASC, a.start_time ASC`
	var windows []models.InstructorAvailability
	if err := r.db.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("list instructor availability: %w", err)
	}
	return windows, nil
}

// ListTeachingHistory counts past schedule rows per instructor and subject,
// archived rows included.
func (r *InstructorRepository) ListTeachingHistory(ctx context.Context) ([]models.TeachingHistory, error) {
	const query = `SELECT instructor_id, subject_id, COUNT(DISTINCT section_id) AS times
FROM schedules GROUP BY instructor_id, subject_id ORDER BY instructor_id ASC, subject_id ASC`
	var history []models.TeachingHistory
	if err := r.db.SelectContext(ctx, &history, query); err != nil {
		return nil, fmt.Errorf("list teaching history: %w", err)
	}
	return history, nil
}
