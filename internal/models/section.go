package models

// SectionDetail is a semester section joined with its subject.
type SectionDetail struct {
	ID             string  `db:"id" json:"id"`
	SemesterID     string  `db:"semester_id" json:"semester_id"`
	Code           string  `db:"code" json:"code"`
	YearLevel      int     `db:"year_level" json:"year_level"`
	SubjectID      string  `db:"subject_id" json:"subject_id"`
	SubjectCode    string  `db:"subject_code" json:"subject_code"`
	SubjectName    string  `db:"subject_name" json:"subject_name"`
	Units          int     `db:"units" json:"units"`
	LectureMinutes int     `db:"lecture_minutes" json:"lecture_minutes"`
	LabMinutes     int     `db:"lab_minutes" json:"lab_minutes"`
	HasLab         bool    `db:"has_lab" json:"has_lab"`
	RoomType       *string `db:"room_type" json:"room_type,omitempty"`
	RoomPriority   bool    `db:"room_priority" json:"room_priority"`
	IsGenEd        bool    `db:"is_gened" json:"is_gened"`
}
