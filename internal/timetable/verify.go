package timetable

import "fmt"

// Violation rules.
const (
	RuleDomain            = "DOMAIN"
	RuleInstructorOverlap = "INSTRUCTOR_OVERLAP"
	RuleRoomOverlap       = "ROOM_OVERLAP"
	RuleAvailability      = "AVAILABILITY"
	RulePairing           = "PAIRING"
	RuleGenEd             = "GENED_OVERLAP"
	RuleRoomType          = "ROOM_TYPE"
	RuleLoadCap           = "LOAD_CAP"
)

// Violation is one broken hard constraint.
type Violation struct {
	Rule   string
	Tasks  []string
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %v: %s", v.Rule, v.Tasks, v.Detail)
}

// Verify re-checks every hard constraint on an assignment from the raw inputs,
// independently of the domains compiled into the model.
func Verify(m *Model, slots []Slot) []Violation {
	var out []Violation
	add := func(rule, detail string, tasks ...int) {
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = m.Tasks[t].ID
		}
		out = append(out, Violation{Rule: rule, Tasks: ids, Detail: detail})
	}
	if len(slots) != len(m.Tasks) {
		return []Violation{{Rule: RuleDomain, Detail: fmt.Sprintf("assignment has %d slots for %d tasks", len(slots), len(m.Tasks))}}
	}

	lecture := make([]int, len(m.Instructors))
	for t, s := range slots {
		if !s.Placed {
			continue
		}
		task := m.Tasks[t]
		if s.Day < 0 || s.Day >= m.Grid.Days || s.Instructor < 0 || s.Instructor >= len(m.Instructors) ||
			s.Room < 0 || s.Room > m.RoomTBA {
			add(RuleDomain, "day, instructor or room index out of range", t)
			continue
		}
		if m.Grid.Classify(s.Start, task.Minutes) == BucketInvalid {
			add(RuleDomain, fmt.Sprintf("start %s does not fit a scheduling window", FormatClock(s.Start)), t)
		}
		instr := m.Instructors[s.Instructor]
		if !m.availability.Available(instr.ID, s.Day, s.Start, task.Minutes) {
			add(RuleAvailability, fmt.Sprintf("instructor %s unavailable %s %s", instr.ID, DayName(s.Day), FormatClock(s.Start)), t)
		}
		if !task.IsGenEd && m.hitsGenEd(s.Day, s.Start, task.Minutes) {
			add(RuleGenEd, fmt.Sprintf("intersects a GenEd block on %s", DayName(s.Day)), t)
		}
		if s.Room != m.RoomTBA {
			if room := m.Rooms[s.Room]; !roomTypeCompatible(task.RoomType, room.Type) {
				add(RuleRoomType, fmt.Sprintf("room %s is %q, task needs %q", room.ID, room.Type, task.RoomType), t)
			}
		} else if len(m.RoomDomain[t]) == 0 {
			add(RuleRoomType, "TBA used with no compatible room", t)
		}
		lecture[s.Instructor] += task.LectureMinutes()

		if p := task.Partner; p >= 0 {
			if ps := slots[p]; ps.Placed && p > t && (ps.Instructor != s.Instructor || ps.Day == s.Day) {
				add(RulePairing, "lecture and lab must share an instructor on different days", t, p)
			}
		}
		for u := t + 1; u < len(slots); u++ {
			su := slots[u]
			if !su.Placed || su.Day != s.Day {
				continue
			}
			other := m.Tasks[u]
			if !(s.Start < su.End(other) && su.Start < s.End(task)) {
				continue
			}
			if su.Instructor == s.Instructor {
				add(RuleInstructorOverlap, fmt.Sprintf("instructor %s double booked on %s", instr.ID, DayName(s.Day)), t, u)
			}
			if s.Room != m.RoomTBA && su.Room == s.Room {
				add(RuleRoomOverlap, fmt.Sprintf("room %s double booked on %s", m.Rooms[s.Room].ID, DayName(s.Day)), t, u)
			}
		}
	}
	for i, minutes := range lecture {
		if limit := m.loadCapacity(i); minutes > limit {
			out = append(out, Violation{
				Rule:   RuleLoadCap,
				Detail: fmt.Sprintf("instructor %s has %d lecture minutes, limit %d", m.Instructors[i].ID, minutes, limit),
			})
		}
	}
	return out
}
