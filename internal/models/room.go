package models

// Room is an entry of the room inventory.
type Room struct {
	ID       string  `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	Building string  `db:"building" json:"building"`
	Capacity int     `db:"capacity" json:"capacity"`
	RoomType *string `db:"room_type" json:"room_type,omitempty"`
	IsActive bool    `db:"is_active" json:"is_active"`
}

// GenEdBlock is a reserved time block for a semester.
type GenEdBlock struct {
	ID         string `db:"id" json:"id"`
	SemesterID string `db:"semester_id" json:"semester_id"`
	DayOfWeek  string `db:"day_of_week" json:"day_of_week"`
	StartTime  string `db:"start_time" json:"start_time"`
	EndTime    string `db:"end_time" json:"end_time"`
	Label      string `db:"label" json:"label"`
}
