package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type batchStoreStub struct {
	mu       sync.Mutex
	batches  map[string]*models.SolveBatch
	seq      int
	progress []int
	findErr  error
}

func newBatchStoreStub(seed ...models.SolveBatch) *batchStoreStub {
	s := &batchStoreStub{batches: make(map[string]*models.SolveBatch)}
	for i := range seed {
		b := seed[i]
		s.batches[b.ID] = &b
	}
	return s
}

func (s *batchStoreStub) Create(ctx context.Context, batch *models.SolveBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	batch.ID = fmt.Sprintf("batch-%d", s.seq)
	batch.CreatedAt = time.Now().UTC()
	clone := *batch
	s.batches[batch.ID] = &clone
	return nil
}

func (s *batchStoreStub) FindByID(ctx context.Context, id string) (*models.SolveBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "solve batch not found")
	}
	clone := *b
	return &clone, nil
}

func (s *batchStoreStub) FindActiveBySemester(ctx context.Context, semesterID string) (*models.SolveBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, b := range s.batches {
		if b.SemesterID == semesterID && !b.Status.Terminal() {
			clone := *b
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *batchStoreStub) ListBySemester(ctx context.Context, semesterID string, limit int) ([]models.SolveBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SolveBatch
	for _, b := range s.batches {
		if b.SemesterID == semesterID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *batchStoreStub) ListByStatus(ctx context.Context, status models.BatchStatus, limit int) ([]models.SolveBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SolveBatch
	for _, b := range s.batches {
		if b.Status == status {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *batchStoreStub) MarkRunning(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok || b.Status != models.BatchStatusQueued {
		return false, nil
	}
	b.Status = models.BatchStatusRunning
	now := time.Now().UTC()
	b.StartedAt = &now
	return true, nil
}

func (s *batchStoreStub) UpdateProgress(ctx context.Context, id string, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.batches[id]; ok {
		b.Progress = progress
		b.Message = message
	}
	s.progress = append(s.progress, progress)
	return nil
}

func (s *batchStoreStub) Finish(ctx context.Context, id string, status models.BatchStatus, message string, summary models.SolveSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok || b.Status.Terminal() {
		return nil
	}
	b.Status = status
	b.Message = message
	b.Summary = summary
	if status == models.BatchStatusCompleted {
		b.Progress = 100
	}
	now := time.Now().UTC()
	b.FinishedAt = &now
	return nil
}

func (s *batchStoreStub) get(id string) models.SolveBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.batches[id]
}

type progressStoreStub struct {
	mu        sync.Mutex
	snapshots map[string]models.BatchProgress
}

func newProgressStoreStub() *progressStoreStub {
	return &progressStoreStub{snapshots: make(map[string]models.BatchProgress)}
}

func (p *progressStoreStub) PublishProgress(ctx context.Context, progress models.BatchProgress, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[progress.BatchID] = progress
	return nil
}

func (p *progressStoreStub) Progress(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, ok := p.snapshots[batchID]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return &snap, nil
}

type dispatcherStub struct {
	enqueued   []string
	running    map[string]bool
	cancelled  []string
	forgotten  []string
	enqueueErr error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.enqueueErr != nil {
		return d.enqueueErr
	}
	d.enqueued = append(d.enqueued, job.ID)
	return nil
}

func (d *dispatcherStub) Cancel(jobID string) bool {
	d.cancelled = append(d.cancelled, jobID)
	return d.running[jobID]
}

func (d *dispatcherStub) Forget(jobID string) {
	d.forgotten = append(d.forgotten, jobID)
}

type runnerStub struct {
	outcome  *SolveOutcome
	err      error
	progress []int
	semester string
	budget   time.Duration
}

func (r *runnerStub) Solve(ctx context.Context, semesterID string, timeBudget time.Duration, progress timetable.ProgressFunc) (*SolveOutcome, error) {
	r.semester = semesterID
	r.budget = timeBudget
	if progress != nil {
		for _, pct := range r.progress {
			progress(pct, "searching")
		}
	}
	return r.outcome, r.err
}

type cacheCounter struct {
	hits, misses int
}

func (c *cacheCounter) RecordCacheOperation(hit bool) {
	if hit {
		c.hits++
		return
	}
	c.misses++
}

func feasibleOutcome() *SolveOutcome {
	return &SolveOutcome{
		Model: &timetable.Model{SemesterID: "sem-1"},
		Result: &timetable.Result{
			Status:     timetable.StatusFeasible,
			Placements: samplePlacements(),
			Unplaced:   []timetable.TaskIssue{{TaskID: "sec-3:lab", SectionID: "sec-3", Reason: "no feasible start"}},
			Objective:  42,
			Elapsed:    1500 * time.Millisecond,
		},
	}
}

type solveFixture struct {
	service  *SolveService
	batches  *batchStoreStub
	progress *progressStoreStub
	queue    *dispatcherStub
	runner   *runnerStub
	cache    *cacheCounter
}

func newSolveFixture(cfg SolveServiceConfig, seed ...models.SolveBatch) solveFixture {
	f := solveFixture{
		batches:  newBatchStoreStub(seed...),
		progress: newProgressStoreStub(),
		queue:    &dispatcherStub{running: map[string]bool{}},
		runner:   &runnerStub{outcome: feasibleOutcome()},
		cache:    &cacheCounter{},
	}
	f.service = NewSolveService(f.batches, f.progress, f.runner, f.queue, f.cache, nil, zap.NewNop(), cfg)
	return f
}

func enabledSolveConfig() SolveServiceConfig {
	return SolveServiceConfig{Enabled: true, TimeBudget: 30 * time.Second, MaxTimeBudget: 120 * time.Second}
}

func TestSolveServiceEnqueueCreatesQueuedBatch(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig())

	batch, err := f.service.Enqueue(context.Background(), dto.SolveRequest{SemesterID: " sem-1 ", TimeBudgetSeconds: 60})
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusQueued, batch.Status)
	assert.Equal(t, "sem-1", batch.SemesterID)
	assert.Equal(t, 60, batch.TimeBudgetSeconds)
	assert.Equal(t, []string{batch.ID}, f.queue.enqueued)

	snap, err := f.progress.Progress(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusQueued, snap.Status)
}

func TestSolveServiceEnqueueRejectsSecondActiveBatch(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-running", SemesterID: "sem-1", Status: models.BatchStatusRunning})

	_, err := f.service.Enqueue(context.Background(), dto.SolveRequest{SemesterID: "sem-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSolveInProgress))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, map[string]string{"batch_id": "batch-running"}, appErr.Details)
	assert.Empty(t, f.queue.enqueued)
}

func TestSolveServiceEnqueueValidation(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig())

	_, err := f.service.Enqueue(context.Background(), dto.SolveRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.service.Enqueue(context.Background(), dto.SolveRequest{SemesterID: "sem-1", TimeBudgetSeconds: 600})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	disabled := newSolveFixture(SolveServiceConfig{})
	_, err = disabled.service.Enqueue(context.Background(), dto.SolveRequest{SemesterID: "sem-1"})
	assert.True(t, errors.Is(err, appErrors.ErrServiceDisabled))
}

func TestSolveServiceEnqueueFailureMarksBatchErrored(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig())
	f.queue.enqueueErr = errors.New("queue stopped")

	_, err := f.service.Enqueue(context.Background(), dto.SolveRequest{SemesterID: "sem-1"})
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusError, f.batches.get("batch-1").Status)
}

func TestSolveServicePreviewDoesNotPersist(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig())

	resp, err := f.service.Preview(context.Background(), dto.SolveRequest{SemesterID: "sem-1", TimeBudgetSeconds: 5})
	require.NoError(t, err)
	assert.Equal(t, timetable.StatusFeasible, resp.Status)
	assert.Len(t, resp.Placements, 2)
	assert.Len(t, resp.Unplaced, 1)
	assert.Equal(t, int64(1500), resp.ElapsedMS)
	assert.Equal(t, 5*time.Second, f.runner.budget)
	assert.Empty(t, f.batches.batches)
	assert.Empty(t, f.queue.enqueued)
}

func TestSolveServiceCancelQueuedBatch(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-q", SemesterID: "sem-1", Status: models.BatchStatusQueued})

	batch, err := f.service.Cancel(context.Background(), "batch-q")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusCancelled, batch.Status)
	assert.Equal(t, []string{"batch-q"}, f.queue.cancelled)
}

func TestSolveServiceCancelRunningBatchLeavesFinishToWorker(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-r", SemesterID: "sem-1", Status: models.BatchStatusRunning})
	f.queue.running["batch-r"] = true

	batch, err := f.service.Cancel(context.Background(), "batch-r")
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusRunning, batch.Status)
}

func TestSolveServiceCancelFinishedBatch(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-done", SemesterID: "sem-1", Status: models.BatchStatusCompleted})

	_, err := f.service.Cancel(context.Background(), "batch-done")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = f.service.Cancel(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSolveServiceStatusPrefersCache(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-1", SemesterID: "sem-1", Status: models.BatchStatusRunning, Progress: 10})
	require.NoError(t, f.progress.PublishProgress(context.Background(), models.BatchProgress{BatchID: "batch-1", Status: models.BatchStatusRunning, Progress: 55}, time.Minute))

	snap, err := f.service.Status(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 55, snap.Progress)
	assert.Equal(t, 1, f.cache.hits)
}

func TestSolveServiceStatusFallsBackToDatabase(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-1", SemesterID: "sem-1", Status: models.BatchStatusRunning, Progress: 10, Message: "searching"})

	snap, err := f.service.Status(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Progress)
	assert.Equal(t, "searching", snap.Message)
	assert.Equal(t, 1, f.cache.misses)
}

func TestSolveServiceRecover(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(),
		models.SolveBatch{ID: "batch-r", SemesterID: "sem-1", Status: models.BatchStatusRunning},
		models.SolveBatch{ID: "batch-q", SemesterID: "sem-2", Status: models.BatchStatusQueued},
	)

	require.NoError(t, f.service.Recover(context.Background()))
	assert.Equal(t, models.BatchStatusError, f.batches.get("batch-r").Status)
	assert.Equal(t, "interrupted by restart", f.batches.get("batch-r").Message)
	assert.Equal(t, []string{"batch-q"}, f.queue.enqueued)
}

func TestSolveServiceListRequiresSemester(t *testing.T) {
	f := newSolveFixture(enabledSolveConfig(), models.SolveBatch{ID: "batch-1", SemesterID: "sem-1", Status: models.BatchStatusCompleted})

	_, err := f.service.List(context.Background(), "", 10)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	batches, err := f.service.List(context.Background(), "sem-1", 10)
	require.NoError(t, err)
	assert.Len(t, batches, 1)
}

func TestSolveServiceCancelOrphanedRunningBatchForgetsMark(t *testing.T) {
	orphan := models.SolveBatch{ID: "batch-1", SemesterID: "sem-1", Status: models.BatchStatusRunning}
	f := newSolveFixture(enabledSolveConfig(), orphan)

	_, err := f.service.Cancel(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"batch-1"}, f.queue.cancelled)
	assert.Equal(t, []string{"batch-1"}, f.queue.forgotten)
}
