package timetable

// Slot is the raw value of one task's decision variables.
type Slot struct {
	Placed     bool `json:"placed"`
	Day        int  `json:"day"`
	StartIdx   int  `json:"startIdx"`
	Start      int  `json:"start"`
	Instructor int  `json:"instructor"`
	Room       int  `json:"room"`
}

// End returns the slot's end minute for the given task.
func (s Slot) End(task Task) int {
	return s.Start + task.Minutes
}

// pairCompatible enforces the binary constraints between two placed tasks:
// lecture/lab pairing plus instructor and concrete-room no-overlap.
func (m *Model) pairCompatible(t int, st Slot, u int, su Slot) bool {
	if !st.Placed || !su.Placed || t == u {
		return true
	}
	task, other := m.Tasks[t], m.Tasks[u]
	if task.Partner == u {
		if st.Instructor != su.Instructor || st.Day == su.Day {
			return false
		}
	}
	if st.Day != su.Day {
		return true
	}
	overlap := st.Start < su.End(other) && su.Start < st.End(task)
	if !overlap {
		return true
	}
	if st.Instructor == su.Instructor {
		return false
	}
	if st.Room != m.RoomTBA && st.Room == su.Room {
		return false
	}
	return true
}

// domainAllows enforces the unary constraints compiled into the model domains.
func (m *Model) domainAllows(t int, s Slot) bool {
	if !s.Placed {
		return true
	}
	if s.Day < 0 || s.Day >= m.Grid.Days {
		return false
	}
	if s.StartIdx < 0 || s.StartIdx >= len(m.Starts[t]) || m.Starts[t][s.StartIdx] != s.Start {
		return false
	}
	if s.Instructor < 0 || s.Instructor >= len(m.Instructors) {
		return false
	}
	if !m.allowedAt(t, s.Instructor, s.Day, s.StartIdx) {
		return false
	}
	for _, r := range m.RoomDomain[t] {
		if r == s.Room {
			return true
		}
	}
	return false
}

// loadCapacity is normal-load plus overload-cap minutes for instructor i.
func (m *Model) loadCapacity(i int) int {
	instr := m.Instructors[i]
	return instr.NormalMinutes + instr.OverloadCapMinutes
}

// Admissible reports whether placing task t at s is consistent with every
// other slot in the assignment.
func (m *Model) Admissible(t int, s Slot, slots []Slot) bool {
	if !m.domainAllows(t, s) {
		return false
	}
	if !s.Placed {
		return true
	}
	load := m.Tasks[t].LectureMinutes()
	for u, su := range slots {
		if u == t || !su.Placed {
			continue
		}
		if !m.pairCompatible(t, s, u, su) {
			return false
		}
		if su.Instructor == s.Instructor {
			load += m.Tasks[u].LectureMinutes()
		}
	}
	return load <= m.loadCapacity(s.Instructor)
}
