package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tariffmatch/backend/internal/model"
	"github.com/tariffmatch/backend/pkg/logger"
)

const (
	// frequentConfidence and defaultConfidence are the TTL tier boundaries.
	frequentConfidence = 0.95
	defaultConfidence  = 0.80

	counterTTL = time.Hour
)

type Config struct {
	DefaultTTL  time.Duration
	FrequentTTL time.Duration
	KeyPrefix   string
}

// Cache memoizes classification results in a TTL-bounded store. When the
// store is unreachable the cache runs disabled: every get is a miss, every
// put reports failure, and classification proceeds uncached. A cache outage
// must never become a classification outage.
type Cache struct {
	store       Store
	prefix      string
	defaultTTL  time.Duration
	frequentTTL time.Duration
	disabled    bool
}

func New(store Store, cfg Config) *Cache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.FrequentTTL <= 0 {
		cfg.FrequentTTL = 7 * 24 * time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "match"
	}

	c := &Cache{
		store:       store,
		prefix:      cfg.KeyPrefix,
		defaultTTL:  cfg.DefaultTTL,
		frequentTTL: cfg.FrequentTTL,
	}

	if store == nil {
		c.disabled = true
		logger.Warn("Cache store unavailable, running with caching disabled")
	}

	return c
}

func (c *Cache) Disabled() bool {
	return c.disabled
}

// Get returns the cached result for a query, or nil on a miss. Stored
// payloads that fail to deserialize count as a miss and are never raised.
func (c *Cache) Get(ctx context.Context, query model.ClassificationQuery) *model.ClassificationResult {
	if c.disabled {
		return nil
	}

	key := c.Key(query)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		c.countMiss(ctx)
		return nil
	}

	var result model.ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("Discarding malformed cache payload", zap.String("key", key), zap.Error(err))
		c.countMiss(ctx)
		return nil
	}

	c.countHit(ctx)
	logger.Debug("Cache hit", zap.String("key", key))
	return &result
}

// Put stores a result with a TTL derived from the primary candidate's
// confidence. Returns false on any store failure, never an error.
func (c *Cache) Put(ctx context.Context, query model.ClassificationQuery, result *model.ClassificationResult) bool {
	if c.disabled || result == nil {
		return false
	}

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn("Failed to serialize result for cache", zap.Error(err))
		return false
	}

	ttl := c.ttlForConfidence(result.Primary.Confidence)
	key := c.Key(query)

	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return false
	}

	logger.Debug("Result cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return true
}

// batchSlot pairs a cached slot with its query digest. The batch key is
// order-independent, so re-alignment to the caller's order needs the digest
// stored next to each slot.
type batchSlot struct {
	Digest string          `json:"digest"`
	Item   model.BatchItem `json:"item"`
}

// GetBatch returns the cached slots for a batch, re-aligned to the given
// queries' order, or nil on a miss. An entry that cannot be aligned to the
// request counts as a miss.
func (c *Cache) GetBatch(ctx context.Context, batchKey string, queries []model.ClassificationQuery) []model.BatchItem {
	if c.disabled {
		return nil
	}

	data, err := c.store.Get(ctx, batchKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("Batch cache lookup failed", zap.String("key", batchKey), zap.Error(err))
		}
		c.countMiss(ctx)
		return nil
	}

	var slots []batchSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		logger.Warn("Discarding malformed batch cache payload", zap.String("key", batchKey), zap.Error(err))
		c.countMiss(ctx)
		return nil
	}

	if len(slots) != len(queries) {
		c.countMiss(ctx)
		return nil
	}

	byDigest := make(map[string]model.BatchItem, len(slots))
	for _, slot := range slots {
		byDigest[slot.Digest] = slot.Item
	}

	items := make([]model.BatchItem, len(queries))
	for i, query := range queries {
		item, ok := byDigest[queryDigest(query)]
		if !ok {
			c.countMiss(ctx)
			return nil
		}
		items[i] = item
	}

	c.countHit(ctx)
	return items
}

func (c *Cache) PutBatch(ctx context.Context, batchKey string, queries []model.ClassificationQuery, items []model.BatchItem) bool {
	if c.disabled || len(items) == 0 || len(items) != len(queries) {
		return false
	}

	slots := make([]batchSlot, len(items))
	for i := range items {
		slots[i] = batchSlot{Digest: queryDigest(queries[i]), Item: items[i]}
	}

	data, err := json.Marshal(slots)
	if err != nil {
		logger.Warn("Failed to serialize batch for cache", zap.Error(err))
		return false
	}

	// Batch entries take the most conservative tier present in the batch.
	ttl := c.frequentTTL
	for _, item := range items {
		if item.Result == nil {
			continue
		}
		if t := c.ttlForConfidence(item.Result.Primary.Confidence); t < ttl {
			ttl = t
		}
	}

	if err := c.store.Set(ctx, batchKey, data, ttl); err != nil {
		logger.Warn("Batch cache write failed", zap.String("key", batchKey), zap.Error(err))
		return false
	}

	return true
}

// InvalidatePattern removes every key under prefix matching the glob
// pattern and returns the number removed. Zero matches is not an error.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) int64 {
	if c.disabled {
		return 0
	}

	removed, err := c.store.DeletePattern(ctx, c.prefix+":"+pattern)
	if err != nil {
		logger.Warn("Cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}

	if removed > 0 {
		logger.Info("Cache entries invalidated",
			zap.String("pattern", pattern),
			zap.Int64("removed", removed),
		)
	}

	return removed
}

// Statistics reads the hit/miss counters and the store's size and memory
// metadata. On store failure it reports Available=false instead of raising.
func (c *Cache) Statistics(ctx context.Context) model.CacheStatistics {
	if c.disabled {
		return model.CacheStatistics{Available: false}
	}

	hits, hitsErr := c.store.GetCounter(ctx, c.counterKey("hits"))
	misses, missesErr := c.store.GetCounter(ctx, c.counterKey("misses"))
	if hitsErr != nil || missesErr != nil {
		logger.Warn("Cache statistics unavailable", zap.Error(errors.Join(hitsErr, missesErr)))
		return model.CacheStatistics{Available: false}
	}

	stats := model.CacheStatistics{
		Hits:      hits,
		Misses:    misses,
		Available: true,
	}
	if total := hits + misses; total > 0 {
		stats.HitRatioPercent = float64(hits) / float64(total) * 100
	}

	if entries, err := c.store.TotalKeys(ctx); err == nil {
		stats.TotalEntries = entries
	}
	if batches, err := c.store.CountPattern(ctx, c.prefix+":batch:*"); err == nil {
		stats.BatchEntries = batches
	}
	if bytes, err := c.store.MemoryUsageBytes(ctx); err == nil {
		stats.MemoryUsageMB = float64(bytes) / (1024 * 1024)
	}

	return stats
}

// Warm seeds the cache from a list of frequent queries, invoking classify
// only for items not already cached.
func (c *Cache) Warm(ctx context.Context, queries []model.ClassificationQuery, classify func(context.Context, model.ClassificationQuery) (*model.ClassificationResult, error)) model.WarmReport {
	var report model.WarmReport

	for _, query := range queries {
		if c.Get(ctx, query) != nil {
			report.AlreadyCached++
			continue
		}

		result, err := classify(ctx, query)
		if err != nil {
			logger.Warn("Cache warm classification failed",
				zap.String("description", query.Description),
				zap.Error(err),
			)
			report.Failed++
			continue
		}

		c.Put(ctx, query, result)
		report.Warmed++
	}

	logger.Info("Cache warm completed",
		zap.Int("already_cached", report.AlreadyCached),
		zap.Int("warmed", report.Warmed),
		zap.Int("failed", report.Failed),
	)

	return report
}

// Healthy pings the backing store.
func (c *Cache) Healthy(ctx context.Context) bool {
	if c.disabled {
		return false
	}
	return c.store.Ping(ctx) == nil
}

func (c *Cache) ttlForConfidence(confidence float64) time.Duration {
	switch {
	case confidence >= frequentConfidence:
		return c.frequentTTL
	case confidence >= defaultConfidence:
		return c.defaultTTL
	default:
		return c.defaultTTL / 2
	}
}

func (c *Cache) counterKey(name string) string {
	return c.prefix + ":stats:" + name
}

func (c *Cache) countHit(ctx context.Context) {
	if err := c.store.Increment(ctx, c.counterKey("hits"), counterTTL); err != nil {
		logger.Debug("Failed to increment hit counter", zap.Error(err))
	}
}

func (c *Cache) countMiss(ctx context.Context) {
	if err := c.store.Increment(ctx, c.counterKey("misses"), counterTTL); err != nil {
		logger.Debug("Failed to increment miss counter", zap.Error(err))
	}
}
