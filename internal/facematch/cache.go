package facematch

import (
	"context"
	"log/slog"
	"time"

	"github.com/kozaktomas/lookout/internal/constants"
	"github.com/patrickmn/go-cache"
)

// FeatureStore persists feature vectors keyed by photo reference.
// Photos are immutable per reference, so a stored vector never goes stale.
type FeatureStore interface {
	// GetFeature returns the stored vector, or false if none is stored.
	GetFeature(ctx context.Context, photoRef string) (FeatureVector, bool, error)
	// SaveFeature stores the vector for a photo reference.
	SaveFeature(ctx context.Context, photoRef string, v FeatureVector) error
}

// FeatureCache is a two-level vector cache: an in-process TTL cache in front
// of an optional FeatureStore. Store errors degrade to a miss.
type FeatureCache struct {
	mem    *cache.Cache
	store  FeatureStore
	logger *slog.Logger
}

// NewFeatureCache creates a cache with the given TTL. store may be nil.
func NewFeatureCache(ttl time.Duration, store FeatureStore, logger *slog.Logger) *FeatureCache {
	if ttl <= 0 {
		ttl = constants.DefaultFeatureCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureCache{
		mem:    cache.New(ttl, constants.FeatureCacheCleanupInterval),
		store:  store,
		logger: logger,
	}
}

// Get returns the cached vector for a photo reference.
func (c *FeatureCache) Get(ctx context.Context, photoRef string) (FeatureVector, bool) {
	if v, ok := c.mem.Get(photoRef); ok {
		return v.(FeatureVector), true
	}
	if c.store == nil {
		return nil, false
	}

	v, ok, err := c.store.GetFeature(ctx, photoRef)
	if err != nil {
		c.logger.Warn("feature store lookup failed", "photo_ref", photoRef, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.mem.Set(photoRef, v, cache.DefaultExpiration)
	return v, true
}

// Put caches a vector in memory and, when configured, in the store.
func (c *FeatureCache) Put(ctx context.Context, photoRef string, v FeatureVector) {
	c.mem.Set(photoRef, v, cache.DefaultExpiration)
	if c.store == nil {
		return
	}
	if err := c.store.SaveFeature(ctx, photoRef, v); err != nil {
		c.logger.Warn("feature store save failed", "photo_ref", photoRef, "error", err)
	}
}

// Len returns the number of vectors held in memory.
func (c *FeatureCache) Len() int {
	return c.mem.ItemCount()
}
