package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type solveMaterializer interface {
	Materialize(ctx context.Context, semesterID, batchID string, placements []timetable.Placement) (*MaterializeResult, error)
}

// SolveWorker runs queued solve batches end to end.
type SolveWorker struct {
	batches      solveBatchStore
	progress     progressStore
	runner       solveRunner
	materializer solveMaterializer
	progressTTL  time.Duration
	logger       *zap.Logger
}

// NewSolveWorker constructs a worker.
func NewSolveWorker(batches solveBatchStore, progress progressStore, runner solveRunner, materializer solveMaterializer, progressTTL time.Duration, logger *zap.Logger) *SolveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if progressTTL <= 0 {
		progressTTL = 24 * time.Hour
	}
	return &SolveWorker{
		batches:      batches,
		progress:     progress,
		runner:       runner,
		materializer: materializer,
		progressTTL:  progressTTL,
		logger:       logger,
	}
}

// Handle processes a queue job whose ID is a solve batch id.
func (w *SolveWorker) Handle(ctx context.Context, job jobs.Job) error {
	// Bookkeeping runs detached so a cancel racing the start still leaves a terminal status.
	base := context.WithoutCancel(ctx)
	batch, err := w.batches.FindByID(base, job.ID)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return w.abandon(ctx, batch)
	}
	started, err := w.batches.MarkRunning(base, batch.ID)
	if err != nil {
		return err
	}
	if !started {
		w.logger.Info("solve batch no longer queued, skipping", zap.String("batch_id", batch.ID))
		return nil
	}
	logger := w.logger.With(zap.String("batch_id", batch.ID), zap.String("semester_id", batch.SemesterID))
	w.publish(ctx, batch, models.BatchStatusRunning, 0, "loading snapshot")

	relay := newProgressRelay(w, batch)
	outcome, solveErr := w.runner.Solve(ctx, batch.SemesterID, time.Duration(batch.TimeBudgetSeconds)*time.Second, relay.report)
	relay.close()

	// Terminal writes must land even when the job context was cancelled.
	final := context.WithoutCancel(ctx)

	if solveErr != nil {
		return w.finishFailed(final, logger, batch, solveErr)
	}

	res := outcome.Result
	summary := models.SolveSummary{
		SolverStatus: string(res.Status),
		Placed:       res.Placed(),
		Unplaced:     len(res.Unplaced),
		Objective:    res.Objective,
		ElapsedMS:    res.Elapsed.Milliseconds(),
		Diagnostic:   encodeDiagnostic(logger, res.Diagnostic),
	}

	if res.Status == timetable.StatusCancelled {
		msg := fmt.Sprintf("cancelled with %d of %d tasks placed; schedules left unchanged", summary.Placed, summary.Placed+summary.Unplaced)
		w.finish(final, logger, batch, models.BatchStatusCancelled, msg, summary)
		return nil
	}

	w.publish(final, batch, models.BatchStatusRunning, 99, "writing schedules")
	written, err := w.materializer.Materialize(final, batch.SemesterID, batch.ID, res.Placements)
	if err != nil {
		logger.Error("materialization failed", zap.Error(err))
		w.finish(final, logger, batch, models.BatchStatusError, "failed to write schedules", summary)
		return err
	}
	summary.Archived = written.Archived
	summary.Skipped = len(written.Skipped)

	msg := fmt.Sprintf("%s: %d placed, %d unplaced", res.Status, summary.Placed, summary.Unplaced)
	w.finish(final, logger, batch, models.BatchStatusCompleted, msg, summary)
	return nil
}

// abandon settles a batch whose job context ended before it started. A
// cancelled job is finished as cancelled; on shutdown the batch stays queued
// for Recover.
func (w *SolveWorker) abandon(ctx context.Context, batch *models.SolveBatch) error {
	if !errors.Is(context.Cause(ctx), jobs.ErrJobCancelled) {
		return ctx.Err()
	}
	if batch.Status == models.BatchStatusQueued {
		logger := w.logger.With(zap.String("batch_id", batch.ID), zap.String("semester_id", batch.SemesterID))
		summary := models.SolveSummary{SolverStatus: string(timetable.StatusCancelled)}
		w.finish(context.WithoutCancel(ctx), logger, batch, models.BatchStatusCancelled, "cancelled before start", summary)
	}
	return nil
}

func (w *SolveWorker) finishFailed(ctx context.Context, logger *zap.Logger, batch *models.SolveBatch, err error) error {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		appErr = appErrors.FromError(err)
	}
	summary := models.SolveSummary{}
	if appErr.Details != nil {
		summary.Diagnostic = encodeDiagnostic(logger, appErr.Details)
	}
	switch {
	case errors.Is(err, appErrors.ErrCancelled):
		summary.SolverStatus = string(timetable.StatusCancelled)
		w.finish(ctx, logger, batch, models.BatchStatusCancelled, "cancelled before any task was placed", summary)
		return nil
	case errors.Is(err, appErrors.ErrInfeasible):
		summary.SolverStatus = string(timetable.StatusInfeasible)
		w.finish(ctx, logger, batch, models.BatchStatusError, appErr.Error(), summary)
		return nil
	case errors.Is(err, appErrors.ErrPreconditionFailed), errors.Is(err, appErrors.ErrNotFound):
		w.finish(ctx, logger, batch, models.BatchStatusError, appErr.Message, summary)
		return nil
	default:
		logger.Error("solve batch failed", zap.Error(err))
		w.finish(ctx, logger, batch, models.BatchStatusError, "internal error", summary)
		return err
	}
}

func (w *SolveWorker) finish(ctx context.Context, logger *zap.Logger, batch *models.SolveBatch, status models.BatchStatus, message string, summary models.SolveSummary) {
	if err := w.batches.Finish(ctx, batch.ID, status, message, summary); err != nil {
		logger.Warn("failed to finish solve batch", zap.String("status", string(status)), zap.Error(err))
	}
	percent := 100
	if status != models.BatchStatusCompleted {
		percent = batch.Progress
	}
	w.publish(ctx, batch, status, percent, message)
	logger.Info("solve batch finished", zap.String("status", string(status)), zap.String("message", message))
}

func (w *SolveWorker) publish(ctx context.Context, batch *models.SolveBatch, status models.BatchStatus, percent int, message string) {
	snapshot := models.BatchProgress{
		BatchID:    batch.ID,
		SemesterID: batch.SemesterID,
		Status:     status,
		Progress:   percent,
		Message:    message,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := w.progress.PublishProgress(ctx, snapshot, w.progressTTL); err != nil {
		w.logger.Warn("failed to publish batch progress", zap.String("batch_id", batch.ID), zap.Error(err))
	}
}

func encodeDiagnostic(logger *zap.Logger, diagnostic interface{}) json.RawMessage {
	raw, err := json.Marshal(diagnostic)
	if err != nil {
		logger.Warn("failed to encode diagnostic", zap.Error(err))
		return nil
	}
	return raw
}

type progressUpdate struct {
	percent int
	message string
}

// progressRelay decouples solver callbacks from cache and database writes.
// Updates arriving while a write is in flight replace the pending one.
type progressRelay struct {
	updates chan progressUpdate
	done    chan struct{}
}

func newProgressRelay(w *SolveWorker, batch *models.SolveBatch) *progressRelay {
	r := &progressRelay{
		updates: make(chan progressUpdate, 1),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		ctx := context.Background()
		for u := range r.updates {
			batch.Progress = u.percent
			w.publish(ctx, batch, models.BatchStatusRunning, u.percent, u.message)
			if err := w.batches.UpdateProgress(ctx, batch.ID, u.percent, u.message); err != nil {
				w.logger.Warn("failed to persist batch progress", zap.String("batch_id", batch.ID), zap.Error(err))
			}
		}
	}()
	return r
}

func (r *progressRelay) report(percent int, message string) {
	u := progressUpdate{percent: percent, message: message}
	select {
	case r.updates <- u:
		return
	default:
	}
	select {
	case <-r.updates:
	default:
	}
	select {
	case r.updates <- u:
	default:
	}
}

func (r *progressRelay) close() {
	close(r.updates)
	<-r.done
}
