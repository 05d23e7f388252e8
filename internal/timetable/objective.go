package timetable

// Weights scale the objective terms. Match should dominate room priority,
// which should dominate load balance, which should dominate total overload.
// Placement is derived from the model when left at zero so that placing one
// more task always outweighs every soft term.
type Weights struct {
	Placement    int64 `yaml:"placement"`
	Match        int64 `yaml:"match"`
	RoomPriority int64 `yaml:"roomPriority"`
	LoadBalance  int64 `yaml:"loadBalance"`
	Overload     int64 `yaml:"overload"`
}

// DefaultWeights returns the production weight set.
func DefaultWeights() Weights {
	return Weights{
		Match:        1000,
		RoomPriority: 100,
		LoadBalance:  10,
		Overload:     1,
	}
}

func (w Weights) normalized() Weights {
	if w.Match == 0 && w.RoomPriority == 0 && w.LoadBalance == 0 && w.Overload == 0 {
		def := DefaultWeights()
		def.Placement = w.Placement
		return def
	}
	return w
}

// Ordered reports whether the weights keep match > room > balance > overload.
func (w Weights) Ordered() bool {
	return w.Match > w.RoomPriority && w.RoomPriority > w.LoadBalance && w.LoadBalance > w.Overload && w.Overload >= 0
}

// Breakdown itemizes an objective value.
type Breakdown struct {
	Placed          int   `json:"placed"`
	MatchPoints     int64 `json:"matchPoints"`
	RoomPriorityHit int   `json:"roomPriorityHits"`
	Imbalance       int64 `json:"imbalance"`
	OverloadMinutes int64 `json:"overloadMinutes"`
	Total           int64 `json:"total"`
}

// positiveGain is the reward for placing task t with instructor i in room r.
func (m *Model) positiveGain(t, i, r int) int64 {
	gain := m.placementWeight + m.Weights.Match*m.Affinity[t][i]
	if m.Tasks[t].RoomPriority && r != m.RoomTBA {
		gain += m.Weights.RoomPriority
	}
	return gain
}

// maxGain bounds positiveGain over the task's domain.
func (m *Model) maxGain(t int) int64 {
	var best int64
	hasRoom := false
	for _, r := range m.RoomDomain[t] {
		if r != m.RoomTBA {
			hasRoom = true
			break
		}
	}
	room := m.RoomTBA
	if hasRoom {
		room = m.RoomDomain[t][0]
	}
	for i := range m.Instructors {
		if m.Allowed[t][i] == nil {
			continue
		}
		if g := m.positiveGain(t, i, room); g > best {
			best = g
		}
	}
	return best
}

// penalty computes the load-balance and total-overload terms from per
// instructor lecture minutes. Imbalance compares overload_i*N with the sum of
// all overloads so the population mean never needs a division.
func (m *Model) penalty(lecture []int) (imbalance, overload int64) {
	n := int64(len(lecture))
	if n == 0 {
		return 0, 0
	}
	over := make([]int64, len(lecture))
	for i, minutes := range lecture {
		if extra := minutes - m.Instructors[i].NormalMinutes; extra > 0 {
			over[i] = int64(extra)
			overload += over[i]
		}
	}
	for _, o := range over {
		diff := o*n - overload
		if diff < 0 {
			diff = -diff
		}
		imbalance += diff
	}
	return imbalance, overload
}

// Evaluate scores a complete assignment.
func (m *Model) Evaluate(slots []Slot) Breakdown {
	var b Breakdown
	lecture := make([]int, len(m.Instructors))
	var positive int64
	for t, s := range slots {
		if !s.Placed {
			continue
		}
		b.Placed++
		b.MatchPoints += m.Affinity[t][s.Instructor]
		if m.Tasks[t].RoomPriority && s.Room != m.RoomTBA {
			b.RoomPriorityHit++
		}
		lecture[s.Instructor] += m.Tasks[t].LectureMinutes()
		positive += m.positiveGain(t, s.Instructor, s.Room)
	}
	b.Imbalance, b.OverloadMinutes = m.penalty(lecture)
	b.Total = positive - m.Weights.LoadBalance*b.Imbalance - m.Weights.Overload*b.OverloadMinutes
	return b
}

// derivePlacementWeight returns a per-task reward larger than the total swing
// every soft term can produce.
func (m *Model) derivePlacementWeight() int64 {
	var capacity int64
	for _, instr := range m.Instructors {
		capacity += int64(instr.OverloadCapMinutes)
	}
	n := int64(len(m.Instructors))
	tasks := int64(len(m.Tasks))
	bound := tasks*(m.Weights.Match*100+m.Weights.RoomPriority) +
		m.Weights.LoadBalance*2*n*capacity +
		m.Weights.Overload*capacity + 1
	if m.Weights.Placement > bound {
		return m.Weights.Placement
	}
	return bound
}
