package timetable

import (
	"math/rand"
	"sort"

	"github.com/mroth/weightedrand/v2"
	"github.com/samber/lo"
)

type candidate struct {
	slot Slot
	gain int64
}

// state is a mutable partial assignment with incremental bookkeeping.
type state struct {
	m            *Model
	slots        []Slot
	lecture      []int
	byInstructor [][]int
	byRoom       [][]int
	positive     int64
	placed       int
}

func newState(m *Model) *state {
	return &state{
		m:            m,
		slots:        make([]Slot, len(m.Tasks)),
		lecture:      make([]int, len(m.Instructors)),
		byInstructor: make([][]int, len(m.Instructors)),
		byRoom:       make([][]int, len(m.Rooms)),
	}
}

func (s *state) place(t int, slot Slot) {
	slot.Placed = true
	s.slots[t] = slot
	s.lecture[slot.Instructor] += s.m.Tasks[t].LectureMinutes()
	s.byInstructor[slot.Instructor] = append(s.byInstructor[slot.Instructor], t)
	if slot.Room != s.m.RoomTBA {
		s.byRoom[slot.Room] = append(s.byRoom[slot.Room], t)
	}
	s.positive += s.m.positiveGain(t, slot.Instructor, slot.Room)
	s.placed++
}

func (s *state) remove(t int) {
	slot := s.slots[t]
	if !slot.Placed {
		return
	}
	s.lecture[slot.Instructor] -= s.m.Tasks[t].LectureMinutes()
	s.byInstructor[slot.Instructor] = lo.Without(s.byInstructor[slot.Instructor], t)
	if slot.Room != s.m.RoomTBA {
		s.byRoom[slot.Room] = lo.Without(s.byRoom[slot.Room], t)
	}
	s.positive -= s.m.positiveGain(t, slot.Instructor, slot.Room)
	s.placed--
	s.slots[t] = Slot{}
}

// load replaces the current assignment with slots.
func (s *state) load(slots []Slot) {
	for t := range s.slots {
		s.remove(t)
	}
	for t, slot := range slots {
		if slot.Placed {
			s.place(t, slot)
		}
	}
}

func (s *state) snapshot() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

func (s *state) objective() int64 {
	imbalance, overload := s.m.penalty(s.lecture)
	return s.positive - s.m.Weights.LoadBalance*imbalance - s.m.Weights.Overload*overload
}

func (s *state) penaltyCost() int64 {
	imbalance, overload := s.m.penalty(s.lecture)
	return s.m.Weights.LoadBalance*imbalance + s.m.Weights.Overload*overload
}

// busy reports whether any task in list overlaps [start, start+minutes) on day.
func (s *state) busy(list []int, day, start, minutes int) bool {
	for _, u := range list {
		su := s.slots[u]
		if su.Day == day && su.Start < start+minutes && start < su.End(s.m.Tasks[u]) {
			return true
		}
	}
	return false
}

// candidates enumerates every placement of task t consistent with the
// current assignment. With allRooms unset only the first free room in the
// task's room domain is offered per (instructor, day, start).
func (s *state) candidates(t int, allRooms bool) []candidate {
	m := s.m
	task := m.Tasks[t]
	var partner *Slot
	if task.HasPartner() && s.slots[task.Partner].Placed {
		p := s.slots[task.Partner]
		partner = &p
	}
	if len(m.RoomDomain[t]) == 0 {
		return nil
	}

	base := s.penaltyCost()
	var out []candidate
	for i := range m.Instructors {
		if m.Allowed[t][i] == nil {
			continue
		}
		if partner != nil && partner.Instructor != i {
			continue
		}
		lec := task.LectureMinutes()
		if s.lecture[i]+lec > m.loadCapacity(i) {
			continue
		}
		s.lecture[i] += lec
		delta := s.penaltyCost() - base
		s.lecture[i] -= lec

		for day := 0; day < m.Grid.Days; day++ {
			if partner != nil && partner.Day == day {
				continue
			}
			for k, start := range m.Starts[t] {
				if !m.allowedAt(t, i, day, k) {
					continue
				}
				if s.busy(s.byInstructor[i], day, start, task.Minutes) {
					continue
				}
				for _, r := range m.RoomDomain[t] {
					if r != m.RoomTBA && s.busy(s.byRoom[r], day, start, task.Minutes) {
						continue
					}
					slot := Slot{Placed: true, Day: day, StartIdx: k, Start: start, Instructor: i, Room: r}
					out = append(out, candidate{slot: slot, gain: m.positiveGain(t, i, r) - delta})
					if !allRooms {
						break
					}
				}
			}
		}
	}
	return out
}

// blockedReason explains why t has no candidate in the current assignment.
func (s *state) blockedReason(t int) string {
	m := s.m
	lec := m.Tasks[t].LectureMinutes()
	eligible, exhausted := 0, 0
	for i := range m.Instructors {
		if m.Allowed[t][i] == nil {
			continue
		}
		eligible++
		if s.lecture[i]+lec > m.loadCapacity(i) {
			exhausted++
		}
	}
	if eligible > 0 && eligible == exhausted {
		return ReasonLoadCapExhausted
	}
	return ReasonUnresolvedConflict
}

func bestCandidate(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.gain > best.gain {
			best = c
		}
	}
	return best, true
}

// difficultyOrder sorts tasks so the most constrained go first and lecture/lab
// partners stay adjacent.
func difficultyOrder(m *Model) []int {
	options := make([]int, len(m.Tasks))
	for t := range m.Tasks {
		if len(m.RoomDomain[t]) == 0 {
			continue
		}
		for i := range m.Instructors {
			for _, ok := range m.Allowed[t][i] {
				if ok {
					options[t]++
				}
			}
		}
	}
	key := func(t int) int {
		if p := m.Tasks[t].Partner; p >= 0 && options[p] < options[t] {
			return options[p]
		}
		return options[t]
	}
	anchor := func(t int) int {
		if p := m.Tasks[t].Partner; p >= 0 && p < t {
			return p
		}
		return t
	}
	order := lo.Range(len(m.Tasks))
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := order[a], order[b]
		ka, kb := key(ta), key(tb)
		if (ka == 0) != (kb == 0) {
			return kb == 0
		}
		if ka != kb {
			return ka < kb
		}
		if anchor(ta) != anchor(tb) {
			return anchor(ta) < anchor(tb)
		}
		return ta < tb
	})
	return order
}

// greedy places tasks one by one at their best-scoring candidate.
func greedy(s *state, order []int) {
	for _, t := range order {
		if s.slots[t].Placed {
			continue
		}
		if c, ok := bestCandidate(s.candidates(t, false)); ok {
			s.place(t, c.slot)
		}
	}
}

// repair re-inserts tasks, picking among the top candidates with weights
// that favour higher gain.
func repair(s *state, tasks []int, rng *rand.Rand, top int) {
	for _, t := range tasks {
		if s.slots[t].Placed {
			continue
		}
		cands := s.candidates(t, false)
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(a, b int) bool { return cands[a].gain > cands[b].gain })
		if len(cands) > top {
			cands = cands[:top]
		}
		choices := make([]weightedrand.Choice[Slot, int], 0, len(cands))
		for rank, c := range cands {
			w := len(cands) - rank
			choices = append(choices, weightedrand.NewChoice(c.slot, w*w))
		}
		chooser, err := weightedrand.NewChooser(choices...)
		if err != nil {
			s.place(t, cands[0].slot)
			continue
		}
		s.place(t, chooser.PickSource(rng))
	}
}

// destroy removes a neighbourhood of placed tasks around a seed task and
// returns the tasks to re-insert, unplaced tasks first.
func destroy(s *state, rng *rand.Rand, size int) []int {
	m := s.m
	unplaced := lo.Filter(lo.Range(len(m.Tasks)), func(t int, _ int) bool {
		return !s.slots[t].Placed && len(m.RoomDomain[t]) > 0
	})
	placed := lo.Filter(lo.Range(len(m.Tasks)), func(t int, _ int) bool { return s.slots[t].Placed })
	if len(placed) == 0 {
		return unplaced
	}

	removed := make(map[int]struct{})
	var seedInstructor int
	if len(unplaced) > 0 && rng.Intn(2) == 0 {
		// free up an instructor who could have taken a stuck task
		stuck := unplaced[rng.Intn(len(unplaced))]
		eligible := lo.Filter(lo.Range(len(m.Instructors)), func(i int, _ int) bool { return m.Allowed[stuck][i] != nil })
		if len(eligible) == 0 {
			seedInstructor = s.slots[placed[rng.Intn(len(placed))]].Instructor
		} else {
			seedInstructor = eligible[rng.Intn(len(eligible))]
		}
	} else {
		seedInstructor = s.slots[placed[rng.Intn(len(placed))]].Instructor
	}
	for _, t := range rng.Perm(len(s.byInstructor[seedInstructor])) {
		if len(removed) >= size {
			break
		}
		removed[s.byInstructor[seedInstructor][t]] = struct{}{}
	}
	for len(removed) < size && len(removed) < len(placed) {
		removed[placed[rng.Intn(len(placed))]] = struct{}{}
	}
	for t := range removed {
		if p := m.Tasks[t].Partner; p >= 0 && s.slots[p].Placed {
			removed[p] = struct{}{}
		}
	}

	out := append([]int(nil), unplaced...)
	for _, t := range lo.Keys(removed) {
		s.remove(t)
		out = append(out, t)
	}
	// map iteration order must not leak into the seeded search
	sort.Ints(out[len(unplaced):])
	rng.Shuffle(len(out)-len(unplaced), func(a, b int) {
		out[len(unplaced)+a], out[len(unplaced)+b] = out[len(unplaced)+b], out[len(unplaced)+a]
	})
	return out
}
