package timetable

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// RoomTypeGap lists a required room type that no active room provides.
type RoomTypeGap struct {
	RequiredType   string   `json:"requiredType"`
	Tasks          int      `json:"tasks"`
	AvailableTypes []string `json:"availableTypes"`
}

// Diagnostic is the supply versus demand summary attached to solve results.
type Diagnostic struct {
	TaskCount int `json:"taskCount"`
	// SupplyMinutes is instructor availability inside the scheduling grid.
	SupplyMinutes int `json:"supplyMinutes"`
	// CapacityMinutes is the sum of normal load plus overload caps.
	CapacityMinutes int `json:"capacityMinutes"`
	// DemandMinutes is the total duration of every task, lectures and labs.
	DemandMinutes int `json:"demandMinutes"`
	// LectureDemandMinutes counts only minutes that consume teaching load.
	LectureDemandMinutes int `json:"lectureDemandMinutes"`
	SupplyDeficit        int `json:"supplyDeficit"`
	CapacityDeficit      int `json:"capacityDeficit"`

	RoomTypeGaps []RoomTypeGap `json:"roomTypeGaps,omitempty"`
	Blocked      []TaskIssue   `json:"blocked,omitempty"`
	Unplaced     []TaskIssue   `json:"unplaced,omitempty"`
}

// Short reports whether supply or load capacity falls below demand.
func (d Diagnostic) Short() bool {
	return d.SupplyDeficit > 0 || d.CapacityDeficit > 0 || len(d.RoomTypeGaps) > 0
}

// Diagnose computes the supply and demand summary for a model.
func Diagnose(m *Model) Diagnostic {
	d := Diagnostic{TaskCount: len(m.Tasks)}
	for _, instr := range m.Instructors {
		d.CapacityMinutes += instr.NormalMinutes + instr.OverloadCapMinutes
	}
	d.SupplyMinutes = lo.SumBy(m.Instructors, func(instr Instructor) int {
		return m.availability.AvailableMinutes(instr.ID, m.Grid.Days)
	})
	for _, task := range m.Tasks {
		d.DemandMinutes += task.Minutes
		d.LectureDemandMinutes += task.LectureMinutes()
	}
	if gap := d.DemandMinutes - d.SupplyMinutes; gap > 0 {
		d.SupplyDeficit = gap
	}
	if gap := d.LectureDemandMinutes - d.CapacityMinutes; gap > 0 {
		d.CapacityDeficit = gap
	}

	available := lo.Uniq(lo.FilterMap(m.Rooms, func(room Room, _ int) (string, bool) {
		t := strings.TrimSpace(room.Type)
		return t, t != ""
	}))
	sort.Strings(available)
	gaps := make(map[string]int)
	for t, task := range m.Tasks {
		if len(m.RoomDomain[t]) == 0 {
			gaps[task.RoomType]++
		}
	}
	for required, count := range gaps {
		d.RoomTypeGaps = append(d.RoomTypeGaps, RoomTypeGap{RequiredType: required, Tasks: count, AvailableTypes: available})
	}
	sort.Slice(d.RoomTypeGaps, func(i, j int) bool { return d.RoomTypeGaps[i].RequiredType < d.RoomTypeGaps[j].RequiredType })

	d.Blocked = append(d.Blocked, m.Issues...)
	return d
}
