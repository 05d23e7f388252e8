package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable/internal/affinity"
	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	"github.com/noah-isme/sma-timetable/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type subjectCatalog interface {
	ListAll(ctx context.Context) ([]models.Subject, error)
}

type instructorEvidenceReader interface {
	ListActive(ctx context.Context) ([]models.InstructorDetail, error)
	ListTeachingHistory(ctx context.Context) ([]models.TeachingHistory, error)
}

type affinityStore interface {
	CreateBatch(ctx context.Context, batch *models.AffinityBatch) error
	FinishBatch(ctx context.Context, exec sqlx.ExtContext, id string, status models.AffinityBatchStatus, pairs int, message *string) error
	InsertScores(ctx context.Context, exec sqlx.ExtContext, scores []models.InstructorSubjectAffinity) error
	LatestCompletedBatch(ctx context.Context) (*models.AffinityBatch, error)
	ListBatches(ctx context.Context, limit int) ([]models.AffinityBatch, error)
	ListScores(ctx context.Context, batchID string) ([]models.InstructorSubjectAffinity, error)
}

type jsonCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type affinityMetrics interface {
	ObserveAffinityBatch(strategy, status string)
	RecordCacheOperation(hit bool)
}

// AffinityServiceConfig tunes scoring batches.
type AffinityServiceConfig struct {
	Scoring            affinity.Config
	ModelVersionPrefix string
	CacheTTL           time.Duration
	Workers            int
}

// NewAffinityServiceConfig maps configuration onto scoring thresholds.
// Zero thresholds keep the defaults.
func NewAffinityServiceConfig(cfg config.AffinityConfig) AffinityServiceConfig {
	scoring := affinity.DefaultConfig()
	if cfg.ColdStartScore > 0 {
		scoring.ColdStartScore = cfg.ColdStartScore
	}
	if cfg.AugmentedMinLabels > 0 {
		scoring.AugmentedMinLabels = cfg.AugmentedMinLabels
	}
	if cfg.ClassifierMinLabels > 0 {
		scoring.ClassifierMinLabels = cfg.ClassifierMinLabels
	}
	return AffinityServiceConfig{
		Scoring:            scoring,
		ModelVersionPrefix: cfg.ModelVersionPrefix,
		CacheTTL:           cfg.CacheTTL,
		Workers:            cfg.Workers,
	}
}

// AffinityService scores every instructor against every subject and keeps
// the results append-only per batch.
type AffinityService struct {
	subjects    subjectCatalog
	instructors instructorEvidenceReader
	store       affinityStore
	tx          txProvider
	cache       jsonCache
	metrics     affinityMetrics
	logger      *zap.Logger
	cfg         AffinityServiceConfig
	now         func() time.Time
}

// NewAffinityService wires affinity dependencies.
func NewAffinityService(subjects subjectCatalog, instructors instructorEvidenceReader, store affinityStore, tx txProvider, cache jsonCache, metrics affinityMetrics, logger *zap.Logger, cfg AffinityServiceConfig) *AffinityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ModelVersionPrefix == "" {
		cfg.ModelVersionPrefix = "affinity"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	return &AffinityService{
		subjects:    subjects,
		instructors: instructors,
		store:       store,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// RunBatch collects evidence, selects a strategy by label volume, scores all
// pairs and persists them under a new batch.
func (s *AffinityService) RunBatch(ctx context.Context) (*models.AffinityBatch, error) {
	ev, err := s.loadEvidence(ctx)
	if err != nil {
		return nil, err
	}
	scorer, err := affinity.Select(ev, s.cfg.Scoring)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build affinity scorer")
	}

	batch := &models.AffinityBatch{
		ModelVersion: fmt.Sprintf("%s-%s-%s", s.cfg.ModelVersionPrefix, scorer.Strategy(), s.now().UTC().Format("20060102T150405Z")),
		Strategy:     scorer.Strategy(),
		Status:       models.AffinityBatchRunning,
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create affinity batch")
	}
	logger := s.logger.With(zap.String("batch_id", batch.ID), zap.String("strategy", batch.Strategy))

	instructorIDs := lo.Map(ev.Instructors, func(i affinity.InstructorEvidence, _ int) string { return i.ID })
	subjectIDs := lo.Map(ev.Subjects, func(p affinity.SubjectProfile, _ int) string { return p.ID })
	scores, err := affinity.ScoreMatrix(ctx, scorer, instructorIDs, subjectIDs, s.cfg.Workers)
	if err != nil {
		s.fail(ctx, logger, batch, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to score affinity pairs")
	}

	rows := lo.Map(scores, func(sc affinity.Score, _ int) models.InstructorSubjectAffinity {
		return models.InstructorSubjectAffinity{
			BatchID:      batch.ID,
			ModelVersion: batch.ModelVersion,
			InstructorID: sc.InstructorID,
			SubjectID:    sc.SubjectID,
			Score:        sc.Value,
		}
	})
	if err := s.persist(ctx, batch, rows); err != nil {
		s.fail(ctx, logger, batch, err)
		return nil, err
	}
	batch.Status = models.AffinityBatchCompleted
	batch.Pairs = len(rows)

	if err := s.cache.Set(ctx, repository.AffinityKey(batch.ID), scoreMap(rows), s.cfg.CacheTTL); err != nil {
		logger.Warn("failed to cache affinity scores", zap.Error(err))
	}
	s.observeBatch(batch.Strategy, string(batch.Status))
	logger.Info("affinity batch completed",
		zap.String("model_version", batch.ModelVersion),
		zap.Int("pairs", batch.Pairs),
		zap.Int("labels", ev.LabeledPairs()))
	return batch, nil
}

// Handle runs one scoring batch for a queue job.
func (s *AffinityService) Handle(ctx context.Context, job jobs.Job) error {
	_, err := s.RunBatch(ctx)
	if errors.Is(err, appErrors.ErrPreconditionFailed) {
		s.logger.Warn("affinity job skipped", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	return err
}

// LatestScoreMap returns the newest completed batch as a solver score map.
func (s *AffinityService) LatestScoreMap(ctx context.Context) (map[timetable.AffinityKey]float64, error) {
	batch, err := s.store.LatestCompletedBatch(ctx)
	if err != nil {
		return nil, err
	}

	var cached map[string]float64
	if err := s.cache.Get(ctx, repository.AffinityKey(batch.ID), &cached); err == nil {
		s.observeCache(true)
		return toAffinityKeys(cached), nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("affinity cache read failed", zap.String("batch_id", batch.ID), zap.Error(err))
	}
	s.observeCache(false)

	rows, err := s.store.ListScores(ctx, batch.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load affinity scores")
	}
	flat := scoreMap(rows)
	if err := s.cache.Set(ctx, repository.AffinityKey(batch.ID), flat, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache affinity scores", zap.String("batch_id", batch.ID), zap.Error(err))
	}
	return toAffinityKeys(flat), nil
}

// LatestScores returns the newest completed batch with its rows.
func (s *AffinityService) LatestScores(ctx context.Context) (*dto.AffinityScoreResponse, error) {
	batch, err := s.store.LatestCompletedBatch(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListScores(ctx, batch.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load affinity scores")
	}
	return &dto.AffinityScoreResponse{Batch: *batch, Scores: rows}, nil
}

// ListBatches returns recent batches newest first.
func (s *AffinityService) ListBatches(ctx context.Context, limit int) ([]models.AffinityBatch, error) {
	batches, err := s.store.ListBatches(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list affinity batches")
	}
	return batches, nil
}

func (s *AffinityService) loadEvidence(ctx context.Context) (affinity.Evidence, error) {
	var (
		subjects    []models.Subject
		instructors []models.InstructorDetail
		history     []models.TeachingHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subjects, err = s.subjects.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		instructors, err = s.instructors.ListActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.instructors.ListTeachingHistory(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return affinity.Evidence{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load affinity evidence")
	}
	if len(subjects) == 0 || len(instructors) == 0 {
		return affinity.Evidence{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "affinity scoring needs at least one subject and one instructor")
	}
	return BuildEvidence(subjects, instructors, history), nil
}

// BuildEvidence converts catalogue rows into scorer input.
func BuildEvidence(subjects []models.Subject, instructors []models.InstructorDetail, history []models.TeachingHistory) affinity.Evidence {
	byInstructor := lo.GroupBy(history, func(h models.TeachingHistory) string { return h.InstructorID })
	return affinity.Evidence{
		Subjects: lo.Map(subjects, func(sub models.Subject, _ int) affinity.SubjectProfile {
			return affinity.SubjectProfile{
				ID:          sub.ID,
				Code:        sub.Code,
				Name:        sub.Name,
				Description: sub.Description,
				Topics:      []string(sub.Topics),
			}
		}),
		Instructors: lo.Map(instructors, func(instr models.InstructorDetail, _ int) affinity.InstructorEvidence {
			return affinity.InstructorEvidence{
				ID:          instr.ID,
				Credentials: []string(instr.Credentials),
				Experience:  []string(instr.Experience),
				Preference:  instr.Preference,
				History: lo.Map(byInstructor[instr.ID], func(h models.TeachingHistory, _ int) affinity.HistoryEntry {
					return affinity.HistoryEntry{SubjectID: h.SubjectID, Times: h.Times}
				}),
			}
		}),
	}
}

func (s *AffinityService) persist(ctx context.Context, batch *models.AffinityBatch, rows []models.InstructorSubjectAffinity) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.store.InsertScores(ctx, tx, rows); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store affinity scores")
	}
	if err = s.store.FinishBatch(ctx, tx, batch.ID, models.AffinityBatchCompleted, len(rows), nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete affinity batch")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit affinity batch")
	}
	return nil
}

func (s *AffinityService) fail(ctx context.Context, logger *zap.Logger, batch *models.AffinityBatch, cause error) {
	msg := cause.Error()
	if err := s.store.FinishBatch(context.WithoutCancel(ctx), nil, batch.ID, models.AffinityBatchError, 0, &msg); err != nil {
		logger.Warn("failed to mark affinity batch errored", zap.Error(err))
	}
	s.observeBatch(batch.Strategy, string(models.AffinityBatchError))
	logger.Error("affinity batch failed", zap.Error(cause))
}

func (s *AffinityService) observeBatch(strategy, status string) {
	if s.metrics != nil {
		s.metrics.ObserveAffinityBatch(strategy, status)
	}
}

func (s *AffinityService) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

func scoreKey(instructorID, subjectID string) string {
	return instructorID + "|" + subjectID
}

func scoreMap(rows []models.InstructorSubjectAffinity) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[scoreKey(row.InstructorID, row.SubjectID)] = row.Score
	}
	return out
}

func toAffinityKeys(flat map[string]float64) map[timetable.AffinityKey]float64 {
	out := make(map[timetable.AffinityKey]float64, len(flat))
	for key, score := range flat {
		instructorID, subjectID, ok := strings.Cut(key, "|")
		if !ok {
			continue
		}
		out[timetable.AffinityKey{InstructorID: instructorID, SubjectID: subjectID}] = score
	}
	return out
}
