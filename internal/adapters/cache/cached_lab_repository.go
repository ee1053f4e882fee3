package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

const (
	labByIDTTL = 5 * time.Minute
	labListTTL = 3 * time.Minute
)

const labListCacheKey = "labs:list"

func labCacheKey(id string) string {
	return fmt.Sprintf("lab:%s", id)
}

// CachedLabRepository wraps a LabRepository with a read-through cache
type CachedLabRepository struct {
	repo    repositories.LabRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

var _ repositories.LabRepository = (*CachedLabRepository)(nil)

// NewCachedLabRepository creates a new cached lab repository
func NewCachedLabRepository(repo repositories.LabRepository, cache providers.CacheProvider, metrics *observability.Metrics) *CachedLabRepository {
	return &CachedLabRepository{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
	}
}

// List retrieves all labs with caching
func (r *CachedLabRepository) List(ctx context.Context) ([]*entities.Lab, error) {
	var labs []*entities.Lab
	if r.readCache(ctx, labListCacheKey, "labs", &labs) {
		return labs, nil
	}

	labs, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	r.writeCache(ctx, labListCacheKey, labs, labListTTL)
	return labs, nil
}

// GetByID retrieves a lab by ID with caching
func (r *CachedLabRepository) GetByID(ctx context.Context, id string) (*entities.Lab, error) {
	key := labCacheKey(id)

	var lab entities.Lab
	if r.readCache(ctx, key, "lab", &lab) {
		return &lab, nil
	}

	fetched, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.writeCache(ctx, key, fetched, labByIDTTL)
	return fetched, nil
}

// Invalidate drops the cached list and the cached detail of one lab
func (r *CachedLabRepository) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return r.cache.Delete(ctx, labListCacheKey)
	}
	return r.cache.Delete(ctx, labListCacheKey, labCacheKey(id))
}

func (r *CachedLabRepository) readCache(ctx context.Context, key, keyspace string, out interface{}) bool {
	cached, err := r.cache.Get(ctx, key)
	if err != nil {
		observability.RecordCacheMiss(ctx, r.metrics, keyspace)
		return false
	}
	if err := json.Unmarshal(cached, out); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		observability.RecordCacheMiss(ctx, r.metrics, keyspace)
		return false
	}
	observability.RecordCacheHit(ctx, r.metrics, keyspace)
	return true
}

func (r *CachedLabRepository) writeCache(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := r.cache.Set(ctx, key, data, ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Failed to write cache entry")
	}
}
