package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type semesterReader interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type sectionReader interface {
	ListBySemester(ctx context.Context, semesterID string) ([]models.SectionDetail, error)
}

type instructorReader interface {
	ListActive(ctx context.Context) ([]models.InstructorDetail, error)
	ListAvailability(ctx context.Context) ([]models.InstructorAvailability, error)
}

type roomReader interface {
	ListActive(ctx context.Context) ([]models.Room, error)
}

type genEdReader interface {
	ListBySemester(ctx context.Context, semesterID string) ([]models.GenEdBlock, error)
}

type affinityScoreSource interface {
	LatestScoreMap(ctx context.Context) (map[timetable.AffinityKey]float64, error)
}

// SnapshotLoader reads everything a solve needs into an immutable snapshot.
type SnapshotLoader struct {
	semesters   semesterReader
	sections    sectionReader
	instructors instructorReader
	rooms       roomReader
	genEd       genEdReader
	affinity    affinityScoreSource
	load        timetable.LoadPolicy
	logger      *zap.Logger
}

// NewSnapshotLoader constructs a SnapshotLoader. A nil affinity source
// yields an empty score map.
func NewSnapshotLoader(semesters semesterReader, sections sectionReader, instructors instructorReader, rooms roomReader, genEd genEdReader, affinity affinityScoreSource, load timetable.LoadPolicy, logger *zap.Logger) *SnapshotLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotLoader{
		semesters:   semesters,
		sections:    sections,
		instructors: instructors,
		rooms:       rooms,
		genEd:       genEd,
		affinity:    affinity,
		load:        load,
		logger:      logger,
	}
}

// Load fetches the semester inputs concurrently.
func (l *SnapshotLoader) Load(ctx context.Context, semesterID string) (timetable.Snapshot, error) {
	semesterID = strings.TrimSpace(semesterID)
	if semesterID == "" {
		return timetable.Snapshot{}, appErrors.Clone(appErrors.ErrValidation, "semester id is required")
	}

	var (
		sections     []models.SectionDetail
		instructors  []models.InstructorDetail
		availability []models.InstructorAvailability
		rooms        []models.Room
		blocks       []models.GenEdBlock
		scores       map[timetable.AffinityKey]float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := l.semesters.FindByID(gctx, semesterID)
		return err
	})
	g.Go(func() (err error) {
		sections, err = l.sections.ListBySemester(gctx, semesterID)
		return err
	})
	g.Go(func() (err error) {
		instructors, err = l.instructors.ListActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		availability, err = l.instructors.ListAvailability(gctx)
		return err
	})
	g.Go(func() (err error) {
		rooms, err = l.rooms.ListActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		blocks, err = l.genEd.ListBySemester(gctx, semesterID)
		return err
	})
	g.Go(func() error {
		scores = l.latestScores(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return timetable.Snapshot{}, appErr
		}
		return timetable.Snapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduling snapshot")
	}

	snap := timetable.Snapshot{
		SemesterID:  semesterID,
		Sections:    lo.Map(sections, func(s models.SectionDetail, _ int) timetable.Section { return toSection(s) }),
		Instructors: l.toInstructors(instructors, availability),
		Rooms:       lo.Map(rooms, func(r models.Room, _ int) timetable.Room { return toRoom(r) }),
		GenEdBlocks: l.toGenEdBlocks(semesterID, blocks),
		Affinity:    scores,
	}
	l.logger.Info("scheduling snapshot loaded",
		zap.String("semester_id", semesterID),
		zap.Int("sections", len(snap.Sections)),
		zap.Int("instructors", len(snap.Instructors)),
		zap.Int("rooms", len(snap.Rooms)),
		zap.Int("gened_blocks", len(snap.GenEdBlocks)),
		zap.Int("affinity_scores", len(snap.Affinity)))
	return snap, nil
}

func (l *SnapshotLoader) latestScores(ctx context.Context) map[timetable.AffinityKey]float64 {
	if l.affinity == nil {
		return map[timetable.AffinityKey]float64{}
	}
	scores, err := l.affinity.LatestScoreMap(ctx)
	if err != nil {
		if !errors.Is(err, appErrors.ErrNotFound) {
			l.logger.Warn("affinity scores unavailable, solving without match preferences", zap.Error(err))
		}
		return map[timetable.AffinityKey]float64{}
	}
	return scores
}

func (l *SnapshotLoader) toInstructors(rows []models.InstructorDetail, availability []models.InstructorAvailability) []timetable.Instructor {
	byInstructor := lo.GroupBy(availability, func(a models.InstructorAvailability) string { return a.InstructorID })
	result := make([]timetable.Instructor, 0, len(rows))
	for _, row := range rows {
		normal, capMinutes := l.load.Resolve(timetable.LoadProfile{
			EmploymentType:          row.EmploymentType,
			NormalLoadHours:         row.NormalLoadHours,
			RankNormalLoadHours:     row.RankNormalLoadHours,
			DesignationReleaseHours: row.DesignationReleaseHours,
			OverloadUnits:           row.OverloadUnits,
			AttainmentOverloadUnits: row.AttainmentOverloadUnits,
		})
		instr := timetable.Instructor{
			ID:                 row.ID,
			Name:               row.Name,
			NormalMinutes:      normal,
			OverloadCapMinutes: capMinutes,
		}
		stored := byInstructor[row.ID]
		instr.RestrictedAvailability = len(stored) > 0
		for _, window := range stored {
			day, start, end, ok := parseDayRange(window.DayOfWeek, window.StartTime, window.EndTime)
			if !ok {
				l.logger.Warn("skipping malformed availability window",
					zap.String("instructor_id", row.ID),
					zap.String("availability_id", window.ID),
					zap.String("day", window.DayOfWeek),
					zap.String("start", window.StartTime),
					zap.String("end", window.EndTime))
				continue
			}
			instr.Availability = append(instr.Availability, timetable.AvailabilityWindow{Day: day, Start: start, End: end})
		}
		if instr.RestrictedAvailability && len(instr.Availability) == 0 {
			l.logger.Error("no usable availability window, instructor will not be scheduled",
				zap.String("instructor_id", row.ID),
				zap.Int("stored_windows", len(stored)))
		}
		result = append(result, instr)
	}
	return result
}

func (l *SnapshotLoader) toGenEdBlocks(semesterID string, rows []models.GenEdBlock) []timetable.GenEdBlock {
	result := make([]timetable.GenEdBlock, 0, len(rows))
	for _, row := range rows {
		day, start, end, ok := parseDayRange(row.DayOfWeek, row.StartTime, row.EndTime)
		if !ok {
			l.logger.Warn("skipping malformed gened block",
				zap.String("semester_id", semesterID),
				zap.String("block_id", row.ID))
			continue
		}
		result = append(result, timetable.GenEdBlock{Day: day, Start: start, End: end})
	}
	return result
}

func parseDayRange(dayName, startRaw, endRaw string) (day, start, end int, ok bool) {
	day = timetable.DayIndex(dayName)
	if day < 0 {
		return 0, 0, 0, false
	}
	start, err := timetable.ParseClock(startRaw)
	if err != nil {
		return 0, 0, 0, false
	}
	end, err = timetable.ParseClock(endRaw)
	if err != nil || end <= start {
		return 0, 0, 0, false
	}
	return day, start, end, true
}

func toSection(s models.SectionDetail) timetable.Section {
	return timetable.Section{
		ID:               s.ID,
		SubjectID:        s.SubjectID,
		LectureMinutes:   s.LectureMinutes,
		LabMinutes:       s.LabMinutes,
		HasLab:           s.HasLab,
		Units:            s.Units,
		YearLevel:        s.YearLevel,
		IsGenEd:          s.IsGenEd,
		RequiredRoomType: lo.FromPtr(s.RoomType),
		RoomPriority:     s.RoomPriority,
	}
}

func toRoom(r models.Room) timetable.Room {
	return timetable.Room{
		ID:       r.ID,
		Name:     r.Name,
		Building: r.Building,
		Type:     lo.FromPtr(r.RoomType),
		Capacity: r.Capacity,
	}
}
