package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type snapshotSource interface {
	Load(ctx context.Context, semesterID string) (timetable.Snapshot, error)
}

type solveMetrics interface {
	ObserveSolve(status string, duration time.Duration, placed, unplaced int)
}

// SolveOutcome pairs a solve result with the model it was computed on.
type SolveOutcome struct {
	Model  *timetable.Model
	Result *timetable.Result
}

// SolveRunner turns a semester id into a solved assignment.
type SolveRunner struct {
	snapshots snapshotSource
	settings  SchedulerSettings
	metrics   solveMetrics
	logger    *zap.Logger
}

// NewSolveRunner wires runner dependencies. Metrics may be nil.
func NewSolveRunner(snapshots snapshotSource, settings SchedulerSettings, metrics solveMetrics, logger *zap.Logger) *SolveRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolveRunner{snapshots: snapshots, settings: settings, metrics: metrics, logger: logger}
}

// Solve loads a fresh snapshot, builds the model and searches within
// timeBudget (zero uses the configured default). Core errors are returned as
// app errors: preconditions as ErrPreconditionFailed, infeasibility as
// ErrInfeasible carrying the diagnostic, cancellation as ErrCancelled.
func (r *SolveRunner) Solve(ctx context.Context, semesterID string, timeBudget time.Duration, progress timetable.ProgressFunc) (*SolveOutcome, error) {
	snap, err := r.snapshots.Load(ctx, semesterID)
	if err != nil {
		return nil, err
	}

	model, err := timetable.BuildModel(snap, timetable.ModelOptions{
		Grid:    r.settings.Grid,
		Weights: r.settings.Weights,
		Logger:  r.logger,
	})
	if err != nil {
		return nil, translateSolveError(err)
	}

	opts := r.settings.Options
	if timeBudget > 0 {
		opts.TimeLimit = timeBudget
	}
	opts.Progress = progress
	opts.Logger = r.logger

	started := time.Now()
	result, err := timetable.Solve(ctx, model, opts)
	elapsed := time.Since(started)
	if err != nil {
		status := string(timetable.StatusInfeasible)
		if errors.Is(err, timetable.ErrCancelled) {
			status = string(timetable.StatusCancelled)
		}
		if r.metrics != nil {
			r.metrics.ObserveSolve(status, elapsed, 0, len(model.Tasks))
		}
		r.logger.Warn("solve failed",
			zap.String("semester_id", semesterID),
			zap.String("status", status),
			zap.Error(err))
		return nil, translateSolveError(err)
	}

	if r.metrics != nil {
		r.metrics.ObserveSolve(string(result.Status), elapsed, result.Placed(), len(result.Unplaced))
	}
	r.logger.Info("solve finished",
		zap.String("semester_id", semesterID),
		zap.String("status", string(result.Status)),
		zap.Int("placed", result.Placed()),
		zap.Int("unplaced", len(result.Unplaced)),
		zap.Int64("objective", result.Objective),
		zap.Duration("elapsed", elapsed))
	return &SolveOutcome{Model: model, Result: result}, nil
}

func translateSolveError(err error) error {
	var infeasible *timetable.InfeasibleError
	switch {
	case errors.As(err, &infeasible):
		return appErrors.WithDetails(appErrors.Wrap(err, appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status, appErrors.ErrInfeasible.Message), infeasible.Diagnostic)
	case errors.Is(err, timetable.ErrCancelled):
		return appErrors.Wrap(err, appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
	case errors.Is(err, timetable.ErrMissingSemester),
		errors.Is(err, timetable.ErrNoSections),
		errors.Is(err, timetable.ErrNoInstructors),
		errors.Is(err, timetable.ErrNoTasks):
		return appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "solve failed")
	}
}
