package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/pkg/cache"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

// CacheRepository stores batch progress snapshots and affinity score maps in Redis.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil client turns every
// read into a cache miss and every write into a no-op.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

// ProgressKey is the key of a solve batch progress snapshot.
func ProgressKey(batchID string) string {
	return cache.Key("batch", batchID, "progress")
}

// AffinityKey is the key of the cached score map of an affinity batch.
func AffinityKey(batchID string) string {
	return cache.Key("affinity", batchID)
}

// Get retrieves and unmarshals the cached value into dest.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// PublishProgress stores the snapshot for polling readers.
func (r *CacheRepository) PublishProgress(ctx context.Context, progress models.BatchProgress, ttl time.Duration) error {
	return r.Set(ctx, ProgressKey(progress.BatchID), progress, ttl)
}

// Progress returns the last published snapshot of a batch.
func (r *CacheRepository) Progress(ctx context.Context, batchID string) (*models.BatchProgress, error) {
	var progress models.BatchProgress
	if err := r.Get(ctx, ProgressKey(batchID), &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
