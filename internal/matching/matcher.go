package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tariffmatch/backend/internal/cache"
	"github.com/tariffmatch/backend/internal/classifier"
	"github.com/tariffmatch/backend/internal/metrics"
	"github.com/tariffmatch/backend/internal/model"
	"github.com/tariffmatch/backend/pkg/logger"
	"github.com/tariffmatch/backend/pkg/retry"
)

type Options struct {
	MaxConcurrency  int
	MaxBatchSize    int
	MaxAlternatives int
	Retry           retry.Config
}

func DefaultOptions() Options {
	retryCfg := retry.DefaultConfig()
	retryCfg.Retryable = model.IsRetryable
	retryCfg.Logger = logger.GetLogger()

	return Options{
		MaxConcurrency:  5,
		MaxBatchSize:    100,
		MaxAlternatives: 3,
		Retry:           retryCfg,
	}
}

// Matcher serves single and batch classification requests: cache first,
// classifier on miss, bounded concurrency and per-slot failure isolation
// for batches.
type Matcher struct {
	cache    *cache.Cache
	registry *classifier.Registry
	opts     Options
}

func New(resultCache *cache.Cache, registry *classifier.Registry, opts Options) *Matcher {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 5
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 100
	}
	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = 3
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = model.IsRetryable
	}

	return &Matcher{
		cache:    resultCache,
		registry: registry,
		opts:     opts,
	}
}

// MatchSingle resolves one query. Validation errors surface immediately;
// classifier failures surface as typed errors after retries are exhausted.
func (m *Matcher) MatchSingle(ctx context.Context, query model.ClassificationQuery) (*model.ClassificationResult, error) {
	query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	if cached := m.cache.Get(ctx, query); cached != nil {
		metrics.CacheHits.WithLabelValues("single").Inc()
		cached.Cached = true
		cached.ProcessingTimeMS = time.Since(start).Milliseconds()
		m.observe("single", "hit", start, cached.Primary.Confidence)
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("single").Inc()

	result, err := m.classify(ctx, query, start)
	if err != nil {
		metrics.MatchTotal.WithLabelValues("single", "error").Inc()
		return nil, err
	}

	m.cache.Put(ctx, query, result)
	m.observe("single", "success", start, result.Primary.Confidence)

	return result, nil
}

// MatchBatch resolves an ordered batch. The returned slice always has one
// slot per input query, in input order; a slot either carries a result or
// its own failure, and one slot's failure never touches its siblings.
func (m *Matcher) MatchBatch(ctx context.Context, req model.BatchRequest) ([]model.BatchItem, error) {
	if len(req.Queries) > m.opts.MaxBatchSize {
		return nil, model.NewValidationError("queries",
			fmt.Sprintf("batch size %d exceeds limit of %d", len(req.Queries), m.opts.MaxBatchSize))
	}
	if len(req.Queries) == 0 {
		return []model.BatchItem{}, nil
	}

	queries := make([]model.ClassificationQuery, len(req.Queries))
	copy(queries, req.Queries)
	for i := range queries {
		queries[i].Normalize()
	}

	metrics.BatchSize.Observe(float64(len(queries)))

	batchKey := m.cache.BatchKey(queries)
	if items := m.cache.GetBatch(ctx, batchKey, queries); items != nil {
		metrics.CacheHits.WithLabelValues("batch").Inc()
		metrics.MatchTotal.WithLabelValues("batch", "hit").Inc()
		return items, nil
	}
	metrics.CacheMisses.WithLabelValues("batch").Inc()

	concurrency := req.MaxConcurrency
	if concurrency <= 0 {
		concurrency = m.opts.MaxConcurrency
	}

	results := make([]model.BatchItem, len(queries))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i := range queries {
		i := i
		g.Go(func() error {
			results[i] = m.matchSlot(ctx, queries[i])
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for _, item := range results {
		if item.Failure != nil {
			failures++
		}
	}

	// Only fully-resolved batches are written back; a batch with failed
	// slots must not pin those failures until the TTL expires.
	if failures == 0 {
		m.cache.PutBatch(ctx, batchKey, queries, results)
	}

	logger.Info("Batch processed",
		zap.Int("queries", len(queries)),
		zap.Int("failures", failures),
		zap.Int("concurrency", concurrency),
	)
	metrics.MatchTotal.WithLabelValues("batch", "success").Inc()

	return results, nil
}

func (m *Matcher) matchSlot(ctx context.Context, query model.ClassificationQuery) model.BatchItem {
	result, err := m.MatchSingle(ctx, query)
	if err != nil {
		metrics.BatchSlotFailures.Inc()
		logger.Warn("Batch slot failed",
			zap.String("description", query.Description),
			zap.Error(err),
		)
		return model.BatchItem{
			Failure: &model.BatchItemFailure{
				Query: query.Description,
				Error: err.Error(),
				Kind:  string(model.ClassificationKind(err)),
			},
		}
	}
	return model.BatchItem{Result: result}
}

// classify runs the retried classifier call and applies the selection rule:
// highest confidence wins the primary slot, the remainder is ordered by
// descending confidence with ties kept in the classifier's original order.
func (m *Matcher) classify(ctx context.Context, query model.ClassificationQuery, start time.Time) (*model.ClassificationResult, error) {
	client := m.registry.For(query.Country)

	attempt := 0
	candidates, err := retry.DoWithResult(ctx, m.opts.Retry, func() ([]model.MatchCandidate, error) {
		attempt++
		if attempt > 1 {
			metrics.ClassifierRetries.Inc()
		}
		cands, err := client.Classify(ctx, query.Description)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			return nil, model.NewClassificationError(model.KindMalformed, errors.New("classifier returned no candidates"))
		}
		return cands, nil
	})
	if err != nil {
		return nil, err
	}

	model.SortCandidates(candidates)

	result := &model.ClassificationResult{
		Primary:          candidates[0],
		Query:            query.Description,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}

	if query.IncludeAlternatives {
		for _, candidate := range candidates[1:] {
			if candidate.Confidence < query.ConfidenceThreshold {
				continue
			}
			result.Alternatives = append(result.Alternatives, candidate)
			if len(result.Alternatives) >= m.opts.MaxAlternatives {
				break
			}
		}
	}

	return result, nil
}

// Warm seeds the cache with a fixed list of frequent product descriptions,
// classifying only the ones not already cached.
func (m *Matcher) Warm(ctx context.Context, queries []model.ClassificationQuery) model.WarmReport {
	if len(queries) == 0 {
		queries = CommonQueries()
	}
	for i := range queries {
		queries[i].Normalize()
	}

	return m.cache.Warm(ctx, queries, func(ctx context.Context, q model.ClassificationQuery) (*model.ClassificationResult, error) {
		return m.classify(ctx, q, time.Now())
	})
}

func (m *Matcher) Invalidate(ctx context.Context, pattern string) int64 {
	removed := m.cache.InvalidatePattern(ctx, pattern)
	metrics.CacheInvalidations.Add(float64(removed))
	return removed
}

func (m *Matcher) Statistics(ctx context.Context) model.CacheStatistics {
	return m.cache.Statistics(ctx)
}

// Health composes classifier reachability latency with cache availability.
// A down cache degrades the status but never fails it: classification
// still works uncached.
func (m *Matcher) Health(ctx context.Context) model.HealthStatus {
	status := model.HealthStatus{
		CacheAvailable: m.cache.Healthy(ctx),
	}

	rtt, err := m.registry.For(model.DefaultCountry).Ping(ctx)
	if err != nil {
		status.Status = "unhealthy"
		status.ClassifierDetail = err.Error()
		return status
	}

	status.ClassifierOK = true
	status.ClassifierRTT = rtt
	status.ClassifierRTTMS = rtt.Milliseconds()
	if status.CacheAvailable {
		status.Status = "healthy"
	} else {
		status.Status = "degraded"
	}

	return status
}

func (m *Matcher) observe(mode, status string, start time.Time, confidence float64) {
	metrics.MatchDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	metrics.MatchTotal.WithLabelValues(mode, status).Inc()
	metrics.ConfidenceScore.Observe(confidence)
}
