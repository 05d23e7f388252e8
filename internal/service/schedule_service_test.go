package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type scheduleListerStub struct {
	filter models.ScheduleFilter
	rows   []models.Schedule
	total  int
}

func (s *scheduleListerStub) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	s.filter = filter
	return s.rows, s.total, nil
}

func TestScheduleServiceList(t *testing.T) {
	repo := &scheduleListerStub{rows: []models.Schedule{{ID: "sch-1"}}, total: 31}
	svc := NewScheduleService(repo, nil, nil)

	rows, page, err := svc.List(context.Background(), dto.ScheduleQuery{SemesterID: "sem-1", DayOfWeek: "tue", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, models.Pagination{Page: 2, PageSize: 10, TotalCount: 31}, *page)
	assert.Equal(t, "TUESDAY", repo.filter.DayOfWeek)
	assert.Equal(t, models.ScheduleStatus(""), repo.filter.Status)
}

func TestScheduleServiceListDefaultsPaging(t *testing.T) {
	repo := &scheduleListerStub{}
	svc := NewScheduleService(repo, nil, nil)

	_, page, err := svc.List(context.Background(), dto.ScheduleQuery{SemesterID: "sem-1", Status: "archived"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.Equal(t, models.ScheduleStatusArchived, repo.filter.Status)
}

func TestScheduleServiceListValidation(t *testing.T) {
	svc := NewScheduleService(&scheduleListerStub{}, nil, nil)

	_, _, err := svc.List(context.Background(), dto.ScheduleQuery{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), dto.ScheduleQuery{SemesterID: "sem-1", DayOfWeek: "someday"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), dto.ScheduleQuery{SemesterID: "sem-1", Status: "deleted"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
