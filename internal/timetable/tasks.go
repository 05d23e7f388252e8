package timetable

import (
	"sort"

	"go.uber.org/zap"
)

// TaskSet is the output of BuildTasks.
type TaskSet struct {
	Tasks []Task
	Pairs [][2]int
}

// Durations returns task minutes indexed by task.
func (s TaskSet) Durations() []int {
	out := make([]int, len(s.Tasks))
	for i, t := range s.Tasks {
		out[i] = t.Minutes
	}
	return out
}

// UnitWeights returns credit-unit weights indexed by task; labs weigh zero.
func (s TaskSet) UnitWeights() []int {
	out := make([]int, len(s.Tasks))
	for i, t := range s.Tasks {
		out[i] = t.Units
	}
	return out
}

// BuildTasks expands sections into lecture and lab tasks. Sections are
// processed in ID order so repeated runs yield identical task indices.
func BuildTasks(sections []Section, logger *zap.Logger) TaskSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	ordered := make([]Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	var set TaskSet
	for _, sec := range ordered {
		lecture, lab := -1, -1
		if sec.LectureMinutes > 0 {
			lecture = len(set.Tasks)
			set.Tasks = append(set.Tasks, newTask(lecture, sec, TaskLecture, sec.LectureMinutes, sec.Units))
		} else {
			logger.Warn("section has no lecture component", zap.String("section_id", sec.ID))
		}
		if sec.HasLab {
			if sec.LabMinutes > 0 {
				lab = len(set.Tasks)
				set.Tasks = append(set.Tasks, newTask(lab, sec, TaskLab, sec.LabMinutes, 0))
			} else {
				logger.Warn("section lab has zero duration, skipping", zap.String("section_id", sec.ID))
			}
		}
		if lecture >= 0 && lab >= 0 {
			set.Tasks[lecture].Partner = lab
			set.Tasks[lab].Partner = lecture
			set.Pairs = append(set.Pairs, [2]int{lecture, lab})
		}
	}
	return set
}

func newTask(index int, sec Section, kind TaskKind, minutes, units int) Task {
	suffix := "-lec"
	if kind == TaskLab {
		suffix = "-lab"
	}
	return Task{
		Index:        index,
		ID:           sec.ID + suffix,
		SectionID:    sec.ID,
		SubjectID:    sec.SubjectID,
		Kind:         kind,
		Minutes:      minutes,
		Units:        units,
		Partner:      -1,
		IsGenEd:      sec.IsGenEd,
		RoomType:     sec.RequiredRoomType,
		RoomPriority: sec.RoomPriority,
	}
}
