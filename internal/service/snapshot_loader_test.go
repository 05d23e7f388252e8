package service

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type semesterReaderStub struct {
	semesters map[string]models.Semester
}

func (s semesterReaderStub) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	sem, ok := s.semesters[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
	}
	return &sem, nil
}

type sectionReaderStub struct {
	sections []models.SectionDetail
	err      error
}

func (s sectionReaderStub) ListBySemester(ctx context.Context, semesterID string) ([]models.SectionDetail, error) {
	return s.sections, s.err
}

type instructorReaderStub struct {
	instructors  []models.InstructorDetail
	availability []models.InstructorAvailability
	history      []models.TeachingHistory
}

func (s instructorReaderStub) ListActive(ctx context.Context) ([]models.InstructorDetail, error) {
	return s.instructors, nil
}

func (s instructorReaderStub) ListAvailability(ctx context.Context) ([]models.InstructorAvailability, error) {
	return s.availability, nil
}

func (s instructorReaderStub) ListTeachingHistory(ctx context.Context) ([]models.TeachingHistory, error) {
	return s.history, nil
}

type roomReaderStub struct {
	rooms []models.Room
}

func (s roomReaderStub) ListActive(ctx context.Context) ([]models.Room, error) {
	return s.rooms, nil
}

type genEdReaderStub struct {
	blocks []models.GenEdBlock
}

func (s genEdReaderStub) ListBySemester(ctx context.Context, semesterID string) ([]models.GenEdBlock, error) {
	return s.blocks, nil
}

type affinitySourceStub struct {
	scores map[timetable.AffinityKey]float64
	err    error
}

func (s affinitySourceStub) LatestScoreMap(ctx context.Context) (map[timetable.AffinityKey]float64, error) {
	return s.scores, s.err
}

func loaderFixture(affinity affinityScoreSource) *SnapshotLoader {
	return NewSnapshotLoader(
		semesterReaderStub{semesters: map[string]models.Semester{"sem-1": {ID: "sem-1", Name: "First", AcademicYear: "2026-2027"}}},
		sectionReaderStub{sections: []models.SectionDetail{
			{ID: "sec-1", SubjectID: "subj-1", Units: 3, LectureMinutes: 90, YearLevel: 1},
			{ID: "sec-2", SubjectID: "subj-2", Units: 1, LabMinutes: 180, HasLab: true, RoomType: lo.ToPtr("LAB"), RoomPriority: true},
		}},
		instructorReaderStub{
			instructors: []models.InstructorDetail{
				{ID: "instr-1", Name: "Ana", EmploymentType: models.EmploymentFullTime, NormalLoadHours: lo.ToPtr(20.0)},
				{ID: "instr-2", Name: "Ben", EmploymentType: models.EmploymentFullTime, RankNormalLoadHours: lo.ToPtr(21.0), DesignationReleaseHours: lo.ToPtr(3.0), OverloadUnits: lo.ToPtr(2)},
				{ID: "instr-3", Name: "Cora", EmploymentType: models.EmploymentPartTime},
			},
			availability: []models.InstructorAvailability{
				{ID: "av-1", InstructorID: "instr-1", DayOfWeek: "MONDAY", StartTime: "08:00:00", EndTime: "12:00:00"},
				{ID: "av-2", InstructorID: "instr-1", DayOfWeek: "Funday", StartTime: "08:00:00", EndTime: "12:00:00"},
				{ID: "av-3", InstructorID: "instr-1", DayOfWeek: "TUESDAY", StartTime: "13:00:00", EndTime: "09:00:00"},
				{ID: "av-4", InstructorID: "instr-3", DayOfWeek: "MONDAY", StartTime: "late", EndTime: "12:00:00"},
			},
		},
		roomReaderStub{rooms: []models.Room{{ID: "room-1", Name: "R101", Capacity: 40}, {ID: "lab-1", Name: "L1", RoomType: lo.ToPtr("LAB")}}},
		genEdReaderStub{blocks: []models.GenEdBlock{
			{ID: "ge-1", SemesterID: "sem-1", DayOfWeek: "WEDNESDAY", StartTime: "10:00", EndTime: "12:00"},
			{ID: "ge-2", SemesterID: "sem-1", DayOfWeek: "WEDNESDAY", StartTime: "bad", EndTime: "12:00"},
		}},
		affinity,
		timetable.DefaultLoadPolicy(),
		nil,
	)
}

func TestSnapshotLoaderBuildsSnapshot(t *testing.T) {
	key := timetable.AffinityKey{InstructorID: "instr-1", SubjectID: "subj-1"}
	loader := loaderFixture(affinitySourceStub{scores: map[timetable.AffinityKey]float64{key: 0.8}})

	snap, err := loader.Load(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Equal(t, "sem-1", snap.SemesterID)
	require.Len(t, snap.Sections, 2)
	assert.Equal(t, "LAB", snap.Sections[1].RequiredRoomType)
	assert.Empty(t, snap.Sections[0].RequiredRoomType)
	require.Len(t, snap.Rooms, 2)
	assert.Equal(t, "LAB", snap.Rooms[1].Type)

	require.Len(t, snap.Instructors, 3)
	ana := snap.Instructors[0]
	assert.Equal(t, 20*60, ana.NormalMinutes)
	assert.Equal(t, 6*60, ana.OverloadCapMinutes)
	assert.Equal(t, []timetable.AvailabilityWindow{{Day: 0, Start: 8 * 60, End: 12 * 60}}, ana.Availability)

	ben := snap.Instructors[1]
	assert.Equal(t, 18*60, ben.NormalMinutes)
	assert.Equal(t, 2*60, ben.OverloadCapMinutes)
	assert.Empty(t, ben.Availability)
	assert.False(t, ben.RestrictedAvailability)
	assert.True(t, ana.RestrictedAvailability)

	cora := snap.Instructors[2]
	assert.Empty(t, cora.Availability)
	assert.True(t, cora.RestrictedAvailability)
	index := timetable.BuildAvailability(snap.Instructors, timetable.DefaultGrid())
	assert.False(t, index.Available("instr-3", 0, 8*60, 60))
	assert.True(t, index.Available("instr-2", 0, 8*60, 60))

	assert.Equal(t, []timetable.GenEdBlock{{Day: 2, Start: 10 * 60, End: 12 * 60}}, snap.GenEdBlocks)
	assert.Equal(t, 0.8, snap.Affinity[key])
}

func TestSnapshotLoaderToleratesMissingAffinity(t *testing.T) {
	loader := loaderFixture(affinitySourceStub{err: errors.New("redis down")})
	snap, err := loader.Load(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.NotNil(t, snap.Affinity)
	assert.Empty(t, snap.Affinity)

	loader = loaderFixture(nil)
	snap, err = loader.Load(context.Background(), "sem-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Affinity)
}

func TestSnapshotLoaderErrors(t *testing.T) {
	loader := loaderFixture(nil)

	_, err := loader.Load(context.Background(), "  ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = loader.Load(context.Background(), "sem-404")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	loader.sections = sectionReaderStub{err: errors.New("connection refused")}
	_, err = loader.Load(context.Background(), "sem-1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
