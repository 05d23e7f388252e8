package models

import "github.com/lib/pq"

// Employment types with documented load fallbacks.
const (
	EmploymentFullTime = "FULL_TIME"
	EmploymentPartTime = "PART_TIME"
)

// InstructorDetail is an active instructor joined with the rank,
// designation and academic attainment rows that decide load limits.
type InstructorDetail struct {
	ID                      string         `db:"id" json:"id"`
	Name                    string         `db:"name" json:"name"`
	EmploymentType          string         `db:"employment_type" json:"employment_type"`
	NormalLoadHours         *float64       `db:"normal_load_hours" json:"normal_load_hours,omitempty"`
	OverloadUnits           *int           `db:"overload_units" json:"overload_units,omitempty"`
	RankNormalLoadHours     *float64       `db:"rank_normal_load_hours" json:"rank_normal_load_hours,omitempty"`
	DesignationReleaseHours *float64       `db:"designation_release_hours" json:"designation_release_hours,omitempty"`
	AttainmentOverloadUnits *int           `db:"attainment_overload_units" json:"attainment_overload_units,omitempty"`
	Credentials             pq.StringArray `db:"credentials" json:"credentials"`
	Experience              pq.StringArray `db:"experience" json:"experience"`
	Preference              string         `db:"preference" json:"preference"`
}

// InstructorAvailability is one stored availability window. Times are
// "HH:MM:SS" strings as returned for postgres TIME columns.
type InstructorAvailability struct {
	ID           string `db:"id" json:"id"`
	InstructorID string `db:"instructor_id" json:"instructor_id"`
	DayOfWeek    string `db:"day_of_week" json:"day_of_week"`
	StartTime    string `db:"start_time" json:"start_time"`
	EndTime      string `db:"end_time" json:"end_time"`
}

// TeachingHistory counts how often an instructor taught a subject.
type TeachingHistory struct {
	InstructorID string `db:"instructor_id" json:"instructor_id"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	Times        int    `db:"times" json:"times"`
}
