package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject carries the catalogue attributes the solver needs: component
// durations, credit units and the optional room type requirement.
type Subject struct {
	ID             string         `db:"id" json:"id"`
	Code           string         `db:"code" json:"code"`
	Name           string         `db:"name" json:"name"`
	Description    string         `db:"description" json:"description"`
	Topics         pq.StringArray `db:"topics" json:"topics"`
	Units          int            `db:"units" json:"units"`
	LectureMinutes int            `db:"lecture_minutes" json:"lecture_minutes"`
	LabMinutes     int            `db:"lab_minutes" json:"lab_minutes"`
	HasLab         bool           `db:"has_lab" json:"has_lab"`
	RoomType       *string        `db:"room_type" json:"room_type,omitempty"`
	RoomPriority   bool           `db:"room_priority" json:"room_priority"`
	IsGenEd        bool           `db:"is_gened" json:"is_gened"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
