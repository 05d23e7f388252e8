package timetable

import (
	"sort"

	"github.com/samber/lo"
)

// TimeBucket classifies a placement by time of day.
type TimeBucket int

const (
	BucketInvalid TimeBucket = iota
	BucketMorning
	BucketAfternoon
	BucketOverload
)

func (b TimeBucket) String() string {
	switch b {
	case BucketMorning:
		return "morning"
	case BucketAfternoon:
		return "afternoon"
	case BucketOverload:
		return "overload"
	default:
		return "invalid"
	}
}

// Grid describes the weekly scheduling grid.
type Grid struct {
	Days                int
	SlotMinutes         int
	Morning             Window
	Afternoon           Window
	Overload            Window
	Lunch               Window
	DefaultAvailability Window
}

// DefaultGrid is Monday..Friday with 30 minute start granularity.
func DefaultGrid() Grid {
	return Grid{
		Days:                5,
		SlotMinutes:         30,
		Morning:             Window{Start: 7 * 60, End: 12 * 60},
		Afternoon:           Window{Start: 13 * 60, End: 17 * 60},
		Overload:            Window{Start: 17 * 60, End: 20 * 60},
		Lunch:               Window{Start: 12 * 60, End: 13 * 60},
		DefaultAvailability: Window{Start: 8 * 60, End: 20 * 60},
	}
}

func (g Grid) normalized() Grid {
	def := DefaultGrid()
	if g.Days <= 0 || g.Days > 7 {
		g.Days = def.Days
	}
	if g.SlotMinutes <= 0 {
		g.SlotMinutes = def.SlotMinutes
	}
	if g.Morning.Length() == 0 && g.Afternoon.Length() == 0 && g.Overload.Length() == 0 {
		g.Morning, g.Afternoon, g.Overload = def.Morning, def.Afternoon, def.Overload
	}
	if g.DefaultAvailability.Length() == 0 {
		g.DefaultAvailability = def.DefaultAvailability
	}
	return g
}

// Classify places [start, start+minutes) into exactly one bucket. Anything
// touching the lunch hour or straddling two windows is invalid.
func (g Grid) Classify(start, minutes int) TimeBucket {
	if minutes <= 0 {
		return BucketInvalid
	}
	if g.Lunch.Length() > 0 && g.Lunch.Overlaps(start, minutes) {
		return BucketInvalid
	}
	switch {
	case g.Morning.Length() > 0 && g.Morning.Contains(start, minutes):
		return BucketMorning
	case g.Afternoon.Length() > 0 && g.Afternoon.Contains(start, minutes):
		return BucketAfternoon
	case g.Overload.Length() > 0 && g.Overload.Contains(start, minutes):
		return BucketOverload
	default:
		return BucketInvalid
	}
}

// ValidStarts lists every start minute at which a task of the given length
// fits a single named window, in ascending order.
func (g Grid) ValidStarts(minutes int) []int {
	if minutes <= 0 {
		return nil
	}
	step := g.SlotMinutes
	if step <= 0 {
		step = DefaultGrid().SlotMinutes
	}
	var starts []int
	for _, w := range []Window{g.Morning, g.Afternoon, g.Overload} {
		for s := w.Start; s+minutes <= w.End; s += step {
			if g.Classify(s, minutes) != BucketInvalid {
				starts = append(starts, s)
			}
		}
	}
	starts = lo.Uniq(starts)
	sort.Ints(starts)
	return starts
}

// AvailabilityIndex holds per-instructor windows keyed by day (0=Monday).
type AvailabilityIndex map[string]map[int][]Window

// BuildAvailability indexes stored windows per instructor. Instructors with no
// stored windows are treated as available Monday..Friday for the grid's
// default availability window, unless RestrictedAvailability is set.
func BuildAvailability(instructors []Instructor, grid Grid) AvailabilityIndex {
	grid = grid.normalized()
	index := make(AvailabilityIndex, len(instructors))
	for _, instr := range instructors {
		days := make(map[int][]Window)
		if len(instr.Availability) == 0 && !instr.RestrictedAvailability {
			for day := 0; day < 5; day++ {
				days[day] = []Window{grid.DefaultAvailability}
			}
			index[instr.ID] = days
			continue
		}
		for _, w := range instr.Availability {
			if w.Day < 0 || w.Day > 6 || w.End <= w.Start {
				continue
			}
			days[w.Day] = append(days[w.Day], Window{Start: w.Start, End: w.End})
		}
		for day, windows := range days {
			days[day] = mergeWindows(windows)
		}
		index[instr.ID] = days
	}
	return index
}

// Available reports whether the instructor is free for [start, start+minutes) on day.
func (a AvailabilityIndex) Available(instructorID string, day, start, minutes int) bool {
	for _, w := range a[instructorID][day] {
		if w.Contains(start, minutes) {
			return true
		}
	}
	return false
}

// AvailableMinutes sums the instructor's windows over the first days of the week.
func (a AvailabilityIndex) AvailableMinutes(instructorID string, days int) int {
	total := 0
	for day := 0; day < days; day++ {
		for _, w := range a[instructorID][day] {
			total += w.Length()
		}
	}
	return total
}

func mergeWindows(windows []Window) []Window {
	if len(windows) < 2 {
		return windows
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if w.Start <= last.End {
			if w.End > last.End {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
