package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autograde/internal/common/cache"
	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

const (
	progressKeyPrefix = "gradepipe:progress:"
	latestRunKey      = progressKeyPrefix + "latest"
)

// ProgressRepository publishes pipeline run progress to the cache.
type ProgressRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewProgressRepository creates a new repository.
func NewProgressRepository(cacheClient cache.Cache, ttl time.Duration) *ProgressRepository {
	return &ProgressRepository{cache: cacheClient, TTL: ttl}
}

// Get returns the progress of one run.
func (r *ProgressRepository) Get(ctx context.Context, runID string) (model.Progress, error) {
	if runID == "" {
		return model.Progress{}, appErr.ValidationError("run_id", "required")
	}
	return r.load(ctx, progressKeyPrefix+runID)
}

// Latest returns the progress of the most recent run.
func (r *ProgressRepository) Latest(ctx context.Context) (model.Progress, error) {
	return r.load(ctx, latestRunKey)
}

func (r *ProgressRepository) load(ctx context.Context, key string) (model.Progress, error) {
	if r.cache == nil {
		return model.Progress{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, key)
	if err != nil || val == "" {
		return model.Progress{}, appErr.New(appErr.NotFound).WithMessage("run progress not found")
	}
	var p model.Progress
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return model.Progress{}, appErr.Wrapf(err, appErr.CacheError, "decode progress failed")
	}
	return p, nil
}

// Save persists progress under the run id and as the latest run.
func (r *ProgressRepository) Save(ctx context.Context, p model.Progress) error {
	if p.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress failed: %w", err)
	}
	for _, key := range []string{progressKeyPrefix + p.RunID, latestRunKey} {
		if err := r.cache.Set(ctx, key, string(data), r.TTL); err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "store progress failed")
		}
	}
	return nil
}
