package timetable

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSemester is returned when a snapshot carries no semester id.
	ErrMissingSemester = errors.New("timetable: semester id is required")
	// ErrNoSections is returned when the semester has nothing to schedule.
	ErrNoSections = errors.New("timetable: semester has no sections")
	// ErrNoInstructors is returned when the instructor pool is empty.
	ErrNoInstructors = errors.New("timetable: no instructors available")
	// ErrNoTasks is returned when every section component has zero duration.
	ErrNoTasks = errors.New("timetable: sections produced no schedulable tasks")
	// ErrCancelled is returned when a solve is aborted before any task is placed.
	ErrCancelled = errors.New("timetable: solve cancelled")
)

// InfeasibleError reports that no task could be placed. Diagnostic explains
// which side of supply and demand is short.
type InfeasibleError struct {
	Diagnostic Diagnostic
}

func (e *InfeasibleError) Error() string {
	d := e.Diagnostic
	return fmt.Sprintf("timetable: no feasible assignment for %d tasks (supply %d min, demand %d min, %d blocked tasks)",
		d.TaskCount, d.SupplyMinutes, d.DemandMinutes, len(d.Blocked))
}
