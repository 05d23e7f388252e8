package service

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type scheduleWriter interface {
	ArchiveActive(ctx context.Context, exec sqlx.ExtContext, semesterID string) (int64, error)
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, schedules []models.Schedule) error
}

type sectionResolver interface {
	FindByIDs(ctx context.Context, exec sqlx.QueryerContext, semesterID string, ids []string) (map[string]models.SectionDetail, error)
}

// SkippedTask is a placement left out of materialization.
type SkippedTask struct {
	TaskID    string `json:"taskId"`
	SectionID string `json:"sectionId"`
	Reason    string `json:"reason"`
}

// MaterializeResult summarizes one archive-then-insert run.
type MaterializeResult struct {
	Archived int64         `json:"archived"`
	Created  int           `json:"created"`
	Skipped  []SkippedTask `json:"skipped,omitempty"`
}

// ScheduleMaterializer replaces a semester's active schedules with an assignment.
type ScheduleMaterializer struct {
	tx        txProvider
	schedules scheduleWriter
	sections  sectionResolver
	logger    *zap.Logger
}

// NewScheduleMaterializer wires materializer dependencies.
func NewScheduleMaterializer(tx txProvider, schedules scheduleWriter, sections sectionResolver, logger *zap.Logger) *ScheduleMaterializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleMaterializer{tx: tx, schedules: schedules, sections: sections, logger: logger}
}

// Materialize archives the active schedules of the semester and inserts one
// row per placement in a single transaction. Placements whose section no
// longer resolves to the same subject are skipped and logged.
func (m *ScheduleMaterializer) Materialize(ctx context.Context, semesterID, batchID string, placements []timetable.Placement) (result *MaterializeResult, err error) {
	tx, err := m.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sectionIDs := lo.Uniq(lo.Map(placements, func(p timetable.Placement, _ int) string { return p.SectionID }))
	sections, err := m.sections.FindByIDs(ctx, tx, semesterID, sectionIDs)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve sections")
		return nil, err
	}

	result = &MaterializeResult{}
	rows := make([]models.Schedule, 0, len(placements))
	for _, p := range placements {
		section, ok := sections[p.SectionID]
		reason := ""
		switch {
		case !ok:
			reason = "section not found"
		case section.SubjectID != p.SubjectID:
			reason = "section subject changed"
		}
		if reason != "" {
			m.logger.Warn("skipping placement during materialization",
				zap.String("semester_id", semesterID),
				zap.String("batch_id", batchID),
				zap.String("task_id", p.TaskID),
				zap.String("section_id", p.SectionID),
				zap.String("reason", reason))
			result.Skipped = append(result.Skipped, SkippedTask{TaskID: p.TaskID, SectionID: p.SectionID, Reason: reason})
			continue
		}
		var roomID *string
		if p.RoomID != "" {
			roomID = lo.ToPtr(p.RoomID)
		}
		rows = append(rows, models.Schedule{
			SemesterID:   semesterID,
			BatchID:      batchID,
			SectionID:    section.ID,
			SubjectID:    section.SubjectID,
			InstructorID: p.InstructorID,
			RoomID:       roomID,
			DayOfWeek:    p.DayName,
			StartTime:    timetable.FormatClock(p.Start),
			EndTime:      timetable.FormatClock(p.End),
			TaskKind:     string(p.Kind),
			IsOvertime:   p.Overtime,
			Status:       models.ScheduleStatusActive,
		})
	}
	if len(rows) == 0 {
		err = appErrors.Clone(appErrors.ErrDataIntegrity, "no placement could be resolved to a section")
		return nil, err
	}

	archived, err := m.schedules.ArchiveActive(ctx, tx, semesterID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive active schedules")
		return nil, err
	}
	if err = m.schedules.BulkCreate(ctx, tx, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert schedules")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedules")
		return nil, err
	}

	result.Archived = archived
	result.Created = len(rows)
	m.logger.Info("schedules materialized",
		zap.String("semester_id", semesterID),
		zap.String("batch_id", batchID),
		zap.Int64("archived", archived),
		zap.Int("created", result.Created),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}
