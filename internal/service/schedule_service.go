package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type scheduleLister interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error)
}

// ScheduleService serves materialized schedules.
type ScheduleService struct {
	repo      scheduleLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(repo scheduleLister, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, validator: validate, logger: logger}
}

// List returns a page of schedules. Archived rows are only returned when
// requested explicitly.
func (s *ScheduleService) List(ctx context.Context, query dto.ScheduleQuery) ([]models.Schedule, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule query")
	}
	filter := models.ScheduleFilter{
		SemesterID:   query.SemesterID,
		InstructorID: query.InstructorID,
		RoomID:       query.RoomID,
		Status:       models.ScheduleStatus(query.Status),
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if query.DayOfWeek != "" {
		day := timetable.DayIndex(query.DayOfWeek)
		if day < 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid day of week")
		}
		filter.DayOfWeek = timetable.DayName(day)
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
