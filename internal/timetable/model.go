package timetable

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Reasons attached to tasks that cannot be placed.
const (
	ReasonNoValidStart         = "NO_VALID_START"
	ReasonNoCompatibleRoom     = "NO_COMPATIBLE_ROOM"
	ReasonNoEligibleInstructor = "NO_ELIGIBLE_INSTRUCTOR"
	ReasonLoadCapExhausted     = "LOAD_CAP_EXHAUSTED"
	ReasonUnresolvedConflict   = "UNRESOLVED_CONFLICT"
)

// TaskIssue explains why a task is (or may be) unplaceable.
type TaskIssue struct {
	Task      int    `json:"task"`
	TaskID    string `json:"taskId"`
	SectionID string `json:"sectionId"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// ModelOptions tunes model construction.
type ModelOptions struct {
	Grid    Grid
	Weights Weights
	Logger  *zap.Logger
}

// Model is the solver-agnostic constraint model. Instructors and rooms are
// referenced by index; RoomTBA is the index of the unassigned room choice.
//
// Unary constraints (valid starts, availability, GenEd exclusion, room type,
// per-task load feasibility) are compiled into the domains below. Binary
// constraints (pairing, no-overlap, cumulative load) are checked by
// Model.Admissible during search and by Verify afterwards.
type Model struct {
	SemesterID  string
	Grid        Grid
	Weights     Weights
	Tasks       []Task
	Pairs       [][2]int
	Instructors []Instructor
	Rooms       []Room
	RoomTBA     int
	GenEdBlocks []GenEdBlock

	// Starts[t] is the candidate start-minute domain of task t.
	Starts [][]int
	// Allowed[t][i] is nil when instructor i may never take task t, otherwise
	// a Days*len(Starts[t]) table of admissible (day, start) choices.
	Allowed [][][]bool
	// RoomDomain[t] lists admissible room indices, real rooms first.
	RoomDomain [][]int
	// Affinity[t][i] is the instructor/subject score scaled to 0..100.
	Affinity [][]int64
	Issues   []TaskIssue

	availability    AvailabilityIndex
	placementWeight int64
}

// BuildModel declares the decision domains for every task of the snapshot.
func BuildModel(snap Snapshot, opts ModelOptions) (*Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(snap.SemesterID) == "" {
		return nil, ErrMissingSemester
	}
	if len(snap.Sections) == 0 {
		return nil, ErrNoSections
	}
	if len(snap.Instructors) == 0 {
		return nil, ErrNoInstructors
	}

	grid := opts.Grid.normalized()
	weights := opts.Weights.normalized()
	if !weights.Ordered() {
		logger.Warn("objective weights are not in match > room > balance > overload order",
			zap.Int64("match", weights.Match),
			zap.Int64("room_priority", weights.RoomPriority),
			zap.Int64("load_balance", weights.LoadBalance),
			zap.Int64("overload", weights.Overload))
	}

	set := BuildTasks(snap.Sections, logger)
	if len(set.Tasks) == 0 {
		return nil, ErrNoTasks
	}

	m := &Model{
		SemesterID:   snap.SemesterID,
		Grid:         grid,
		Weights:      weights,
		Tasks:        set.Tasks,
		Pairs:        set.Pairs,
		Instructors:  snap.Instructors,
		Rooms:        snap.Rooms,
		RoomTBA:      len(snap.Rooms),
		GenEdBlocks:  snap.GenEdBlocks,
		Starts:       make([][]int, len(set.Tasks)),
		Allowed:      make([][][]bool, len(set.Tasks)),
		RoomDomain:   make([][]int, len(set.Tasks)),
		Affinity:     make([][]int64, len(set.Tasks)),
		availability: BuildAvailability(snap.Instructors, grid),
	}

	startsByLength := make(map[int][]int)
	for t, task := range m.Tasks {
		starts, ok := startsByLength[task.Minutes]
		if !ok {
			starts = grid.ValidStarts(task.Minutes)
			startsByLength[task.Minutes] = starts
		}
		m.Starts[t] = starts
		m.RoomDomain[t] = m.roomDomain(task)
		m.Allowed[t] = make([][]bool, len(m.Instructors))
		m.Affinity[t] = make([]int64, len(m.Instructors))

		eligible := 0
		for i, instr := range m.Instructors {
			m.Affinity[t][i] = scaleAffinity(snap.Affinity[AffinityKey{InstructorID: instr.ID, SubjectID: task.SubjectID}])
			if table := m.instructorTable(task, instr, starts); table != nil {
				m.Allowed[t][i] = table
				eligible++
			}
		}

		switch {
		case len(starts) == 0:
			logger.Error("task duration fits no scheduling window, task is infeasible",
				zap.String("semester_id", m.SemesterID),
				zap.String("task_id", task.ID),
				zap.String("section_id", task.SectionID),
				zap.Int("minutes", task.Minutes))
			m.Issues = append(m.Issues, m.issue(t, ReasonNoValidStart, fmt.Sprintf("%d minutes fits no morning, afternoon or overload window", task.Minutes)))
		case eligible == 0:
			logger.Warn("no instructor can take task",
				zap.String("task_id", task.ID),
				zap.String("section_id", task.SectionID))
			m.Issues = append(m.Issues, m.issue(t, ReasonNoEligibleInstructor, "no instructor has availability and load capacity for this task"))
		}
		if len(m.RoomDomain[t]) == 0 {
			logger.Warn("no room satisfies required room type",
				zap.String("task_id", task.ID),
				zap.String("section_id", task.SectionID),
				zap.String("room_type", task.RoomType))
			m.Issues = append(m.Issues, m.issue(t, ReasonNoCompatibleRoom, fmt.Sprintf("no active room of type %q", task.RoomType)))
		}
	}

	m.placementWeight = m.derivePlacementWeight()
	logger.Debug("constraint model built",
		zap.String("semester_id", m.SemesterID),
		zap.Int("tasks", len(m.Tasks)),
		zap.Int("pairs", len(m.Pairs)),
		zap.Int("instructors", len(m.Instructors)),
		zap.Int("rooms", len(m.Rooms)),
		zap.Int("issues", len(m.Issues)))
	return m, nil
}

// InstructorID resolves an instructor index.
func (m *Model) InstructorID(idx int) string {
	if idx < 0 || idx >= len(m.Instructors) {
		return ""
	}
	return m.Instructors[idx].ID
}

// RoomID resolves a room index; the TBA index resolves to "".
func (m *Model) RoomID(idx int) string {
	if idx < 0 || idx >= len(m.Rooms) {
		return ""
	}
	return m.Rooms[idx].ID
}

// Availability exposes the availability index the model was built with.
func (m *Model) Availability() AvailabilityIndex {
	return m.availability
}

// allowedAt reports whether instructor i may teach task t at (day, starts[k]).
func (m *Model) allowedAt(t, i, day, k int) bool {
	table := m.Allowed[t][i]
	if table == nil {
		return false
	}
	return table[day*len(m.Starts[t])+k]
}

func (m *Model) instructorTable(task Task, instr Instructor, starts []int) []bool {
	if len(starts) == 0 {
		return nil
	}
	if task.LectureMinutes() > instr.NormalMinutes+instr.OverloadCapMinutes {
		return nil
	}
	table := make([]bool, m.Grid.Days*len(starts))
	open := false
	for day := 0; day < m.Grid.Days; day++ {
		for k, start := range starts {
			if !m.availability.Available(instr.ID, day, start, task.Minutes) {
				continue
			}
			if !task.IsGenEd && m.hitsGenEd(day, start, task.Minutes) {
				continue
			}
			table[day*len(starts)+k] = true
			open = true
		}
	}
	if !open {
		return nil
	}
	return table
}

func (m *Model) hitsGenEd(day, start, minutes int) bool {
	for _, block := range m.GenEdBlocks {
		if block.Day != day {
			continue
		}
		if (Window{Start: block.Start, End: block.End}).Overlaps(start, minutes) {
			return true
		}
	}
	return false
}

// roomDomain lists compatible real rooms followed by TBA. A typed task only
// gets TBA when at least one compatible real room exists.
func (m *Model) roomDomain(task Task) []int {
	var domain []int
	for r, room := range m.Rooms {
		if roomTypeCompatible(task.RoomType, room.Type) {
			domain = append(domain, r)
		}
	}
	if strings.TrimSpace(task.RoomType) == "" || len(domain) > 0 {
		domain = append(domain, m.RoomTBA)
	}
	return domain
}

func (m *Model) issue(t int, reason, detail string) TaskIssue {
	task := m.Tasks[t]
	return TaskIssue{Task: t, TaskID: task.ID, SectionID: task.SectionID, Reason: reason, Detail: detail}
}

func roomTypeCompatible(required, actual string) bool {
	required = strings.TrimSpace(required)
	actual = strings.TrimSpace(actual)
	if required == "" || actual == "" {
		return true
	}
	return strings.EqualFold(required, actual)
}

func scaleAffinity(score float64) int64 {
	if math.IsNaN(score) || score <= 0 {
		return 0
	}
	if score >= 1 {
		return 100
	}
	return int64(math.Round(score * 100))
}
