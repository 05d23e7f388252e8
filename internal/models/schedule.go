package models

import "time"

// ScheduleStatus is the lifecycle of a materialized schedule row.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusArchived ScheduleStatus = "archived"
)

// Schedule is one materialized task placement.
type Schedule struct {
	ID           string         `db:"id" json:"id"`
	SemesterID   string         `db:"semester_id" json:"semester_id"`
	BatchID      string         `db:"batch_id" json:"batch_id"`
	SectionID    string         `db:"section_id" json:"section_id"`
	SubjectID    string         `db:"subject_id" json:"subject_id"`
	InstructorID string         `db:"instructor_id" json:"instructor_id"`
	RoomID       *string        `db:"room_id" json:"room_id,omitempty"`
	DayOfWeek    string         `db:"day_of_week" json:"day_of_week"`
	StartTime    string         `db:"start_time" json:"start_time"`
	EndTime      string         `db:"end_time" json:"end_time"`
	TaskKind     string         `db:"task_kind" json:"task_kind"`
	IsOvertime   bool           `db:"is_overtime" json:"is_overtime"`
	Status       ScheduleStatus `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleView is a schedule row joined with display names for exports.
type ScheduleView struct {
	Schedule
	SectionCode    string  `db:"section_code" json:"section_code"`
	SubjectCode    string  `db:"subject_code" json:"subject_code"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	RoomName       *string `db:"room_name" json:"room_name,omitempty"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	SemesterID   string
	InstructorID string
	RoomID       string
	DayOfWeek    string
	Status       ScheduleStatus
	Page         int
	PageSize     int
}
