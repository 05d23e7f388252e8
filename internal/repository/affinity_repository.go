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

// AffinityRepository persists affinity batches and their append-only scores.
type AffinityRepository struct {
	db *sqlx.DB
}

// NewAffinityRepository builds the repository.
func NewAffinityRepository(db *sqlx.DB) *AffinityRepository {
	return &AffinityRepository{db: db}
}

func (r *AffinityRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts a running batch.
func (r *AffinityRepository) CreateBatch(ctx context.Context, batch *models.AffinityBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.AffinityBatchRunning
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO affinity_batches (id, model_version, strategy, status, pairs, message, created_at, finished_at)
VALUES (:id, :model_version, :strategy, :status, :pairs, :message, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create affinity batch: %w", err)
	}
	return nil
}

// FinishBatch records the terminal status of a batch.
func (r *AffinityRepository) FinishBatch(ctx context.Context, exec sqlx.ExtContext, id string, status models.AffinityBatchStatus, pairs int, message *string) error {
	const query = `UPDATE affinity_batches SET status = $2, pairs = $3, message = $4, finished_at = $5 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, pairs, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish affinity batch: %w", err)
	}
	return nil
}

// InsertScores appends the scores of a batch.
func (r *AffinityRepository) InsertScores(ctx context.Context, exec sqlx.ExtContext, scores []models.InstructorSubjectAffinity) error {
	if len(scores) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `INSERT INTO instructor_subject_affinity (id, batch_id, model_version, instructor_id, subject_id, score, created_at)
VALUES (:id, :batch_id, :model_version, :instructor_id, :subject_id, :score, :created_at)`
	for i := range scores {
		score := &scores[i]
		if score.ID == "" {
			score.ID = uuid.NewString()
		}
		if score.CreatedAt.IsZero() {
			score.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, score); err != nil {
			return fmt.Errorf("insert affinity score: %w", err)
		}
	}
	return nil
}

// LatestCompletedBatch returns the newest completed batch or appErrors.ErrNotFound.
func (r *AffinityRepository) LatestCompletedBatch(ctx context.Context) (*models.AffinityBatch, error) {
	const query = `SELECT id, model_version, strategy, status, pairs, message, created_at, finished_at
FROM affinity_batches WHERE status = 'completed' ORDER BY created_at DESC LIMIT 1`
	var batch models.AffinityBatch
	if err := r.db.GetContext(ctx, &batch, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no completed affinity batch")
		}
		return nil, fmt.Errorf("latest affinity batch: %w", err)
	}
	return &batch, nil
}

// ListBatches returns batches newest first.
func (r *AffinityRepository) ListBatches(ctx context.Context, limit int) ([]models.AffinityBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, model_version, strategy, status, pairs, message, created_at, finished_at
FROM affinity_batches ORDER BY created_at DESC LIMIT $1`
	var batches []models.AffinityBatch
	if err := r.db.SelectContext(ctx, &batches, query, limit); err != nil {
		return nil, fmt.Errorf("list affinity batches: %w", err)
	}
	return batches, nil
}

// ListScores returns every score written by the batch.
func (r *AffinityRepository) ListScores(ctx context.Context, batchID string) ([]models.InstructorSubjectAffinity, error) {
	const query = `SELECT id, batch_id, model_version, instructor_id, subject_id, score, created_at
FROM instructor_subject_affinity WHERE batch_id = $1 ORDER BY instructor_id ASC, subject_id ASC`
	var scores []models.InstructorSubjectAffinity
	if err := r.db.SelectContext(ctx, &scores, query, batchID); err != nil {
		return nil, fmt.Errorf("list affinity scores: %w", err)
	}
	return scores, nil
}
