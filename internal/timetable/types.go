package timetable

// TaskKind distinguishes the lecture and lab components of a section.
type TaskKind string

const (
	TaskLecture TaskKind = "LECTURE"
	TaskLab     TaskKind = "LAB"
)

// Section is the solver-facing view of a course section. Subject level
// attributes are flattened onto it by the snapshot loader.
type Section struct {
	ID               string `yaml:"id" validate:"required"`
	SubjectID        string `yaml:"subjectId" validate:"required"`
	LectureMinutes   int    `yaml:"lectureMinutes" validate:"min=0"`
	LabMinutes       int    `yaml:"labMinutes" validate:"min=0"`
	HasLab           bool   `yaml:"hasLab"`
	Units            int    `yaml:"units" validate:"min=0"`
	YearLevel        int    `yaml:"yearLevel"`
	IsGenEd          bool   `yaml:"isGenEd"`
	RequiredRoomType string `yaml:"requiredRoomType"`
	RoomPriority     bool   `yaml:"roomPriority"`
}

// AvailabilityWindow is a stored availability row for an instructor.
type AvailabilityWindow struct {
	Day   int `yaml:"day" validate:"min=0,max=6"`
	Start int `yaml:"start" validate:"min=0,max=1440"`
	End   int `yaml:"end" validate:"min=0,max=1440"`
}

// Instructor carries resolved load limits and raw availability windows.
type Instructor struct {
	ID                 string               `yaml:"id" validate:"required"`
	Name               string               `yaml:"name"`
	NormalMinutes      int                  `yaml:"normalMinutes" validate:"min=0"`
	OverloadCapMinutes int                  `yaml:"overloadCapMinutes" validate:"min=0"`
	Availability       []AvailabilityWindow `yaml:"availability" validate:"dive"`
	// RestrictedAvailability keeps an empty Availability as "never available"
	// instead of the default weekday window.
	RestrictedAvailability bool `yaml:"-"`
}

// Room is an active room in the inventory.
type Room struct {
	ID       string `yaml:"id" validate:"required"`
	Name     string `yaml:"name"`
	Building string `yaml:"building"`
	Type     string `yaml:"type"`
	Capacity int    `yaml:"capacity"`
}

// GenEdBlock is a reserved time block that non GenEd tasks must avoid.
type GenEdBlock struct {
	Day   int `yaml:"day" validate:"min=0,max=6"`
	Start int `yaml:"start" validate:"min=0,max=1440"`
	End   int `yaml:"end" validate:"min=0,max=1440"`
}

// AffinityKey identifies an instructor/subject score.
type AffinityKey struct {
	InstructorID string
	SubjectID    string
}

// Snapshot is the immutable input of a single solve.
type Snapshot struct {
	SemesterID  string
	Sections    []Section
	Instructors []Instructor
	Rooms       []Room
	GenEdBlocks []GenEdBlock
	Affinity    map[AffinityKey]float64
}

// Task is one atomic schedulable unit derived from a section.
type Task struct {
	Index        int
	ID           string
	SectionID    string
	SubjectID    string
	Kind         TaskKind
	Minutes      int
	Units        int
	Partner      int
	IsGenEd      bool
	RoomType     string
	RoomPriority bool
}

// LectureMinutes returns the minutes this task counts toward teaching load.
func (t Task) LectureMinutes() int {
	if t.Kind == TaskLecture {
		return t.Minutes
	}
	return 0
}

// HasPartner reports whether the task is half of a lecture/lab pair.
func (t Task) HasPartner() bool {
	return t.Partner >= 0
}
