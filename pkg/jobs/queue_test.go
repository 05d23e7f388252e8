package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsJobs(t *testing.T) {
	done := make(chan string, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job.Payload.(string)
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Payload: "sem-1"}))
	select {
	case got := <-done:
		assert.Equal(t, "sem-1", got)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "1"}))
}

func TestQueueCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		finished <- context.Cause(ctx)
		return ctx.Err()
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "batch-1"}))
	<-started
	assert.True(t, q.Cancel("batch-1"))
	select {
	case cause := <-finished:
		assert.ErrorIs(t, cause, ErrJobCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled")
	}
}

func TestQueueSkipsJobCancelledWhileQueued(t *testing.T) {
	var runs int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}, QueueConfig{})
	assert.False(t, q.Cancel("batch-1"))
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "batch-1"}))
	require.NoError(t, q.Enqueue(Job{ID: "batch-2"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestQueueRetriesFailures(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "affinity-1"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestQueueCancelMarksExpire(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{CancelTTL: 10 * time.Millisecond})

	assert.False(t, q.Cancel("gone-1"))
	assert.Equal(t, 1, q.Pending())
	time.Sleep(30 * time.Millisecond)
	assert.False(t, q.Cancel("gone-2"))
	assert.Equal(t, 1, q.Pending())

	q.Forget("gone-2")
	assert.Zero(t, q.Pending())
}
