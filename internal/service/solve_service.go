package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type solveBatchStore interface {
	Create(ctx context.Context, batch *models.SolveBatch) error
	FindByID(ctx context.Context, id string) (*models.SolveBatch, error)
	FindActiveBySemester(ctx context.Context, semesterID string) (*models.SolveBatch, error)
	ListBySemester(ctx context.Context, semesterID string, limit int) ([]models.SolveBatch, error)
	ListByStatus(ctx context.Context, status models.BatchStatus, limit int) ([]models.SolveBatch, error)
	MarkRunning(ctx context.Context, id string) (bool, error)
	UpdateProgress(ctx context.Context, id string, progress int, message string) error
	Finish(ctx context.Context, id string, status models.BatchStatus, message string, summary models.SolveSummary) error
}

type progressStore interface {
	PublishProgress(ctx context.Context, progress models.BatchProgress, ttl time.Duration) error
	Progress(ctx context.Context, batchID string) (*models.BatchProgress, error)
}

type solveDispatcher interface {
	Enqueue(job jobs.Job) error
	Cancel(jobID string) bool
	Forget(jobID string)
}

type solveRunner interface {
	Solve(ctx context.Context, semesterID string, timeBudget time.Duration, progress timetable.ProgressFunc) (*SolveOutcome, error)
}

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

// SolveServiceConfig governs solve requests.
type SolveServiceConfig struct {
	Enabled       bool
	TimeBudget    time.Duration
	MaxTimeBudget time.Duration
	ProgressTTL   time.Duration
}

// SolveService manages solve batches: one queued or running batch per semester.
type SolveService struct {
	batches   solveBatchStore
	progress  progressStore
	runner    solveRunner
	queue     solveDispatcher
	cacheObs  cacheObserver
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SolveServiceConfig

	mu sync.Mutex
}

// NewSolveService constructs the service.
func NewSolveService(batches solveBatchStore, progress progressStore, runner solveRunner, queue solveDispatcher, cacheObs cacheObserver, validate *validator.Validate, logger *zap.Logger, cfg SolveServiceConfig) *SolveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = 30 * time.Second
	}
	if cfg.MaxTimeBudget < cfg.TimeBudget {
		cfg.MaxTimeBudget = cfg.TimeBudget
	}
	if cfg.ProgressTTL <= 0 {
		cfg.ProgressTTL = 24 * time.Hour
	}
	return &SolveService{
		batches:   batches,
		progress:  progress,
		runner:    runner,
		queue:     queue,
		cacheObs:  cacheObs,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Enqueue creates a queued batch and dispatches it to the worker queue.
func (s *SolveService) Enqueue(ctx context.Context, req dto.SolveRequest) (*models.SolveBatch, error) {
	budget, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	semesterID := strings.TrimSpace(req.SemesterID)

	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.batches.FindActiveBySemester(ctx, semesterID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active batches")
	}
	if active != nil {
		return nil, appErrors.WithDetails(appErrors.ErrSolveInProgress, map[string]string{"batch_id": active.ID})
	}

	batch := &models.SolveBatch{
		SemesterID:        semesterID,
		Status:            models.BatchStatusQueued,
		Message:           "queued",
		TimeBudgetSeconds: int(budget / time.Second),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create solve batch")
	}
	s.publish(ctx, batch, batch.Status, 0, batch.Message)

	if err := s.queue.Enqueue(jobs.Job{ID: batch.ID, Type: "solve"}); err != nil {
		msg := "failed to enqueue solve"
		if finishErr := s.batches.Finish(ctx, batch.ID, models.BatchStatusError, msg, models.SolveSummary{}); finishErr != nil {
			s.logger.Warn("failed to mark batch errored", zap.String("batch_id", batch.ID), zap.Error(finishErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue solve batch")
	}
	s.logger.Info("solve batch queued",
		zap.String("batch_id", batch.ID),
		zap.String("semester_id", semesterID),
		zap.Duration("time_budget", budget))
	return batch, nil
}

// Preview solves synchronously without persisting anything.
func (s *SolveService) Preview(ctx context.Context, req dto.SolveRequest) (*dto.SolvePreviewResponse, error) {
	budget, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	outcome, err := s.runner.Solve(ctx, strings.TrimSpace(req.SemesterID), budget, nil)
	if err != nil {
		return nil, err
	}
	res := outcome.Result
	return &dto.SolvePreviewResponse{
		SemesterID: outcome.Model.SemesterID,
		Status:     res.Status,
		Placements: res.Placements,
		Unplaced:   res.Unplaced,
		Objective:  res.Objective,
		Breakdown:  res.Breakdown,
		Diagnostic: res.Diagnostic,
		ElapsedMS:  res.Elapsed.Milliseconds(),
	}, nil
}

// Cancel stops a queued or running batch. A running batch finishes as
// cancelled once the solver observes the signal.
func (s *SolveService) Cancel(ctx context.Context, batchID string) (*models.SolveBatch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "solve batch already finished")
	}

	running := s.queue.Cancel(batch.ID)
	if !running && batch.Status == models.BatchStatusQueued {
		if err := s.batches.Finish(ctx, batch.ID, models.BatchStatusCancelled, "cancelled before start", models.SolveSummary{}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel solve batch")
		}
		s.publish(ctx, batch, models.BatchStatusCancelled, batch.Progress, "cancelled before start")
	} else if !running {
		// No queued job will consume the mark.
		s.queue.Forget(batch.ID)
	}
	s.logger.Info("solve batch cancellation requested", zap.String("batch_id", batch.ID), zap.Bool("running", running))
	return s.batches.FindByID(ctx, batch.ID)
}

// Status returns the latest progress snapshot, preferring the cache.
func (s *SolveService) Status(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	progress, err := s.progress.Progress(ctx, batchID)
	if err == nil {
		s.observeCache(true)
		return progress, nil
	}
	s.observeCache(false)
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("progress cache read failed", zap.String("batch_id", batchID), zap.Error(err))
	}

	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	updated := batch.CreatedAt
	if batch.FinishedAt != nil {
		updated = *batch.FinishedAt
	} else if batch.StartedAt != nil {
		updated = *batch.StartedAt
	}
	return &models.BatchProgress{
		BatchID:    batch.ID,
		SemesterID: batch.SemesterID,
		Status:     batch.Status,
		Progress:   batch.Progress,
		Message:    batch.Message,
		UpdatedAt:  updated,
	}, nil
}

// Get returns one batch.
func (s *SolveService) Get(ctx context.Context, batchID string) (*models.SolveBatch, error) {
	return s.batches.FindByID(ctx, batchID)
}

// List returns the recent batches of a semester.
func (s *SolveService) List(ctx context.Context, semesterID string, limit int) ([]models.SolveBatch, error) {
	if strings.TrimSpace(semesterID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester_id is required")
	}
	batches, err := s.batches.ListBySemester(ctx, semesterID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list solve batches")
	}
	return batches, nil
}

// Recover fails batches left running by a previous process and re-dispatches
// queued ones.
func (s *SolveService) Recover(ctx context.Context) error {
	running, err := s.batches.ListByStatus(ctx, models.BatchStatusRunning, 100)
	if err != nil {
		return err
	}
	for _, batch := range running {
		if err := s.batches.Finish(ctx, batch.ID, models.BatchStatusError, "interrupted by restart", batch.Summary); err != nil {
			s.logger.Warn("failed to close interrupted batch", zap.String("batch_id", batch.ID), zap.Error(err))
		}
	}
	queued, err := s.batches.ListByStatus(ctx, models.BatchStatusQueued, 100)
	if err != nil {
		return err
	}
	for _, batch := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: batch.ID, Type: "solve"}); err != nil {
			s.logger.Warn("failed to requeue solve batch", zap.String("batch_id", batch.ID), zap.Error(err))
		}
	}
	if len(running)+len(queued) > 0 {
		s.logger.Info("solve batches recovered", zap.Int("interrupted", len(running)), zap.Int("requeued", len(queued)))
	}
	return nil
}

func (s *SolveService) validate(req dto.SolveRequest) (time.Duration, error) {
	if !s.cfg.Enabled {
		return 0, appErrors.ErrServiceDisabled
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid solve request")
	}
	budget := s.cfg.TimeBudget
	if req.TimeBudgetSeconds > 0 {
		budget = time.Duration(req.TimeBudgetSeconds) * time.Second
	}
	if budget > s.cfg.MaxTimeBudget {
		return 0, appErrors.Clone(appErrors.ErrValidation, "time budget exceeds the configured maximum")
	}
	return budget, nil
}

func (s *SolveService) publish(ctx context.Context, batch *models.SolveBatch, status models.BatchStatus, percent int, message string) {
	snapshot := models.BatchProgress{
		BatchID:    batch.ID,
		SemesterID: batch.SemesterID,
		Status:     status,
		Progress:   percent,
		Message:    message,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.progress.PublishProgress(ctx, snapshot, s.cfg.ProgressTTL); err != nil {
		s.logger.Warn("failed to publish batch progress", zap.String("batch_id", batch.ID), zap.Error(err))
	}
}

func (s *SolveService) observeCache(hit bool) {
	if s.cacheObs != nil {
		s.cacheObs.RecordCacheOperation(hit)
	}
}
