package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// SolveBatchRepository persists solve batches.
type SolveBatchRepository struct {
	db *sqlx.DB
}

// NewSolveBatchRepository builds the repository.
func NewSolveBatchRepository(db *sqlx.DB) *SolveBatchRepository {
	return &SolveBatchRepository{db: db}
}

const solveBatchColumns = `id, semester_id, status, progress, message, time_budget_seconds, summary, created_at, started_at, finished_at`

// Create inserts a queued batch.
func (r *SolveBatchRepository) Create(ctx context.Context, batch *models.SolveBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusQueued
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO solve_batches (id, semester_id, status, progress, message, time_budget_seconds, summary, created_at)
VALUES (:id, :semester_id, :status, :progress, :message, :time_budget_seconds, :summary, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create solve batch: %w", err)
	}
	return nil
}

// FindByID returns one batch or appErrors.ErrNotFound.
func (r *SolveBatchRepository) FindByID(ctx context.Context, id string) (*models.SolveBatch, error) {
	query := `SELECT ` + solveBatchColumns + ` FROM solve_batches WHERE id = $1`
	var batch models.SolveBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "solve batch not found")
		}
		return nil, fmt.Errorf("find solve batch: %w", err)
	}
	return &batch, nil
}

// FindActiveBySemester returns the queued or running batch of a semester, or nil.
func (r *SolveBatchRepository) FindActiveBySemester(ctx context.Context, semesterID string) (*models.SolveBatch, error) {
	query := `SELECT ` + solveBatchColumns + ` FROM solve_batches
WHERE semester_id = $1 AND status IN ('queued', 'running') ORDER BY created_at DESC LIMIT 1`
	var batch models.SolveBatch
	if err := r.db.GetContext(ctx, &batch, query, semesterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active solve batch: %w", err)
	}
	return &batch, nil
}

// ListBySemester returns batches of a semester newest first.
func (r *SolveBatchRepository) ListBySemester(ctx context.Context, semesterID string, limit int) ([]models.SolveBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + solveBatchColumns + ` FROM solve_batches WHERE semester_id = $1 ORDER BY created_at DESC LIMIT $2`
	var batches []models.SolveBatch
	if err := r.db.SelectContext(ctx, &batches, query, semesterID, limit); err != nil {
		return nil, fmt.Errorf("list solve batches: %w", err)
	}
	return batches, nil
}

// MarkRunning moves a queued batch to running. It reports false when the
// batch was no longer queued.
func (r *SolveBatchRepository) MarkRunning(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE solve_batches SET status = 'running', started_at = $2, message = 'running' WHERE id = $1 AND status = 'queued'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark solve batch running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark solve batch running: %w", err)
	}
	return affected == 1, nil
}

// UpdateProgress stores the latest progress of a running batch.
func (r *SolveBatchRepository) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	const query = `UPDATE solve_batches SET progress = $2, message = $3 WHERE id = $1 AND status = 'running'`
	if _, err := r.db.ExecContext(ctx, query, id, progress, message); err != nil {
		return fmt.Errorf("update solve batch progress: %w", err)
	}
	return nil
}

// Finish records a terminal status with its summary. Terminal batches are
// left untouched.
func (r *SolveBatchRepository) Finish(ctx context.Context, id string, status models.BatchStatus, message string, summary models.SolveSummary) error {
	progress := 0
	if status == models.BatchStatusCompleted {
		progress = 100
	}
	const query = `UPDATE solve_batches SET status = $2, message = $3, summary = $4, progress = GREATEST(progress, $5), finished_at = $6
WHERE id = $1 AND status IN ('queued', 'running')`
	if _, err := r.db.ExecContext(ctx, query, id, status, message, summary, progress, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish solve batch: %w", err)
	}
	return nil
}

// ListByStatus returns batches in the given status, oldest first.
func (r *SolveBatchRepository) ListByStatus(ctx context.Context, status models.BatchStatus, limit int) ([]models.SolveBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + solveBatchColumns + ` FROM solve_batches WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var batches []models.SolveBatch
	if err := r.db.SelectContext(ctx, &batches, query, status, limit); err != nil {
		return nil, fmt.Errorf("list solve batches by status: %w", err)
	}
	return batches, nil
}
