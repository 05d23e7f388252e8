package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildModelPreconditions(t *testing.T) {
	instructors := []Instructor{{ID: "inst-1", NormalMinutes: 600}}
	sections := []Section{{ID: "sec-1", SubjectID: "math", LectureMinutes: 60}}

	_, err := BuildModel(Snapshot{Sections: sections, Instructors: instructors}, ModelOptions{})
	assert.ErrorIs(t, err, ErrMissingSemester)

	_, err = BuildModel(Snapshot{SemesterID: "sem-1", Instructors: instructors}, ModelOptions{})
	assert.ErrorIs(t, err, ErrNoSections)

	_, err = BuildModel(Snapshot{SemesterID: "sem-1", Sections: sections}, ModelOptions{})
	assert.ErrorIs(t, err, ErrNoInstructors)

	_, err = BuildModel(Snapshot{
		SemesterID:  "sem-1",
		Sections:    []Section{{ID: "sec-1", SubjectID: "math"}},
		Instructors: instructors,
	}, ModelOptions{})
	assert.ErrorIs(t, err, ErrNoTasks)
}

func TestBuildModelDomains(t *testing.T) {
	model, err := BuildModel(Snapshot{
		SemesterID: "sem-1",
		Sections: []Section{
			{ID: "sec-1", SubjectID: "chem", LectureMinutes: 60, RequiredRoomType: "lab"},
			{ID: "sec-2", SubjectID: "math", LectureMinutes: 360},
			{ID: "sec-3", SubjectID: "hist", LectureMinutes: 240},
		},
		Instructors: []Instructor{
			{ID: "inst-1", NormalMinutes: 120},
			{ID: "inst-2", NormalMinutes: 600, Availability: []AvailabilityWindow{{Day: 1, Start: 9 * 60, End: 10 * 60}}},
		},
		Rooms: []Room{
			{ID: "room-1", Type: "Lecture"},
			{ID: "lab-1", Type: "LAB"},
			{ID: "any-1"},
		},
	}, ModelOptions{})
	require.NoError(t, err)
	require.Len(t, model.Tasks, 3)
	assert.Equal(t, 3, model.RoomTBA)

	// typed subject: matching room (case-insensitive), untyped room, then TBA
	assert.Equal(t, []int{1, 2, 3}, model.RoomDomain[0])
	// untyped subject accepts every room
	assert.Equal(t, []int{0, 1, 2, 3}, model.RoomDomain[1])

	// six hours fits no window
	assert.Empty(t, model.Starts[1])
	// four hours exceeds inst-1's load limit and inst-2's availability
	assert.Nil(t, model.Allowed[2][0])
	assert.Nil(t, model.Allowed[2][1])

	reasons := map[string]string{}
	for _, issue := range model.Issues {
		reasons[issue.TaskID] = issue.Reason
	}
	assert.Equal(t, ReasonNoValidStart, reasons["sec-2-lec"])
	assert.Equal(t, ReasonNoEligibleInstructor, reasons["sec-3-lec"])

	// inst-2 only on Tuesday 09:00
	table := model.Allowed[0][1]
	require.NotNil(t, table)
	for day := 0; day < model.Grid.Days; day++ {
		for k, start := range model.Starts[0] {
			want := day == 1 && start == 9*60
			assert.Equal(t, want, model.allowedAt(0, 1, day, k), "day %d start %d", day, start)
		}
	}
}

func TestBuildModelTypedSubjectWithoutRoomHasEmptyDomain(t *testing.T) {
	model, err := BuildModel(Snapshot{
		SemesterID:  "sem-1",
		Sections:    []Section{{ID: "sec-1", SubjectID: "chem", LectureMinutes: 60, RequiredRoomType: "Lab"}},
		Instructors: []Instructor{{ID: "inst-1", NormalMinutes: 600}},
	}, ModelOptions{})
	require.NoError(t, err)
	assert.Empty(t, model.RoomDomain[0])
}

func TestModelScalesAffinity(t *testing.T) {
	model, err := BuildModel(Snapshot{
		SemesterID:  "sem-1",
		Sections:    []Section{{ID: "sec-1", SubjectID: "math", LectureMinutes: 60}},
		Instructors: []Instructor{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Affinity: map[AffinityKey]float64{
			{InstructorID: "a", SubjectID: "math"}: 0.456,
			{InstructorID: "b", SubjectID: "math"}: 1.7,
			{InstructorID: "c", SubjectID: "math"}: -0.3,
		},
	}, ModelOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{46, 100, 0}, model.Affinity[0])
}

func TestEvaluatePenalisesImbalance(t *testing.T) {
	model := &Model{
		Weights:     DefaultWeights(),
		Instructors: []Instructor{{ID: "a"}, {ID: "b"}},
	}
	imbalance, overload := model.penalty([]int{60, 0})
	assert.Equal(t, int64(120), imbalance)
	assert.Equal(t, int64(60), overload)

	imbalance, overload = model.penalty([]int{30, 30})
	assert.Equal(t, int64(0), imbalance)
	assert.Equal(t, int64(60), overload)
}

func TestWeightsOrdering(t *testing.T) {
	assert.True(t, DefaultWeights().Ordered())
	assert.False(t, Weights{Match: 1, RoomPriority: 10, LoadBalance: 5, Overload: 1}.Ordered())
	assert.Equal(t, DefaultWeights(), Weights{}.normalized())
}

func TestPlacementWeightDominatesSoftTerms(t *testing.T) {
	model, err := BuildModel(Snapshot{
		SemesterID:  "sem-1",
		Sections:    []Section{{ID: "sec-1", SubjectID: "math", LectureMinutes: 60}, {ID: "sec-2", SubjectID: "math", LectureMinutes: 60}},
		Instructors: []Instructor{{ID: "a", OverloadCapMinutes: 120}, {ID: "b", OverloadCapMinutes: 120}},
	}, ModelOptions{})
	require.NoError(t, err)

	// worst case soft swing: full match and room bonuses, maximal imbalance
	w := model.Weights
	swing := 2*(w.Match*100+w.RoomPriority) + w.LoadBalance*2*2*240 + w.Overload*240
	assert.Greater(t, model.placementWeight, swing)
}
