package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// ScheduleRepository persists materialized schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

var weekdays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// weekdayOrder sorts a day_of_week column in calendar order instead of alphabetically.
func weekdayOrder(column string) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for i, day := range weekdays {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", day, i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(weekdays))
	return b.String()
}

const scheduleColumns = `id, semester_id, batch_id, section_id, subject_id, instructor_id, room_id, day_of_week, start_time, end_time, task_kind, is_overtime, status, created_at, updated_at`

// List returns schedules with optional filtering and pagination.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	base := "FROM schedules WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SemesterID != "" {
		conditions = append(conditions, fmt.Sprintf("semester_id = $%d", len(args)+1))
		args = append(args, filter.SemesterID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, strings.ToUpper(filter.DayOfWeek))
	}
	status := filter.Status
	if status == "" {
		status = models.ScheduleStatusActive
	}
	conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
	args = append(args, status)

	base += " AND " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s ASC, start_time ASC, id ASC LIMIT %d OFFSET %d", scheduleColumns, base, weekdayOrder("day_of_week"), size, offset)
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}

	return schedules, total, nil
}

// ListActiveView returns the semester's active schedules with display names.
func (r *ScheduleRepository) ListActiveView(ctx context.Context, semesterID string) ([]models.ScheduleView, error) {
	query := `SELECT s.id, s.semester_id, s.batch_id, s.section_id, s.subject_id, s.instructor_id, s.room_id,
s.day_of_week, s.start_time, s.end_time, s.task_kind, s.is_overtime, s.status, s.created_at, s.updated_at,
sec.code AS section_code, subj.code AS subject_code, i.name AS instructor_name, rm.name AS room_name
FROM schedules s
JOIN sections sec ON sec.id = s.section_id
JOIN subjects subj ON subj.id = s.subject_id
JOIN instructors i ON i.id = s.instructor_id
LEFT JOIN rooms rm ON rm.id = s.room_id
WHERE s.semester_id = $1 AND s.status = 'active'
ORDER BY ` + weekdayOrder("s.day_of_week") + ` ASC, s.start_time ASC, sec.code ASC`
	var rows []models.ScheduleView
	if err := r.db.SelectContext(ctx, &rows, query, semesterID); err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return rows, nil
}

// ArchiveActive flips every active schedule of the semester to archived and
// returns how many rows changed.
func (r *ScheduleRepository) ArchiveActive(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int64, error) {
	const query = `UPDATE schedules SET status = 'archived', updated_at = $2 WHERE semester_id = $1 AND status = 'active'`
	res, err := r.exec(exec).ExecContext(ctx, query, semesterID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("archive schedules: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive schedules: %w", err)
	}
	return affected, nil
}

// BulkCreate inserts schedule rows.
func (r *ScheduleRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, schedules []models.Schedule) error {
	if len(schedules) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO schedules (id, semester_id, batch_id, section_id, subject_id, instructor_id, room_id, day_of_week, start_time, end_time, task_kind, is_overtime, status, created_at, updated_at)
VALUES (:id, :semester_id, :batch_id, :section_id, :subject_id, :instructor_id, :room_id, :day_of_week, :start_time, :end_time, :task_kind, :is_overtime, :status, :created_at, :updated_at)`

	for i := range schedules {
		sched := &schedules[i]
		if sched.ID == "" {
			sched.ID = uuid.NewString()
		}
		if sched.Status == "" {
			sched.Status = models.ScheduleStatusActive
		}
		if sched.CreatedAt.IsZero() {
			sched.CreatedAt = now
		}
		sched.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, sched); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	return nil
}
