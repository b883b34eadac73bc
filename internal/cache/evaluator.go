package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/jwebster45206/quest-engine/pkg/condition"
)

// Evaluator wraps condition evaluation with the two-tier cache.
// Deterministic conditions are computed at most once per TTL window per
// actor; non-deterministic conditions bypass the cache entirely.
type Evaluator struct {
	cache    *ConditionCache
	logger   *slog.Logger
	computes atomic.Int64
}

func NewEvaluator(cache *ConditionCache, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		cache:  cache,
		logger: logger,
	}
}

// Evaluate returns the condition result for the context's actor, consulting
// the cache for deterministic conditions. tags become invalidation tags on
// the cached entry.
func (e *Evaluator) Evaluate(ctx context.Context, cond condition.Condition, ec *condition.Context, tags ...string) bool {
	if !cond.Deterministic() || ec.Actor() == nil {
		e.computes.Add(1)
		return cond.Evaluate(ctx, ec)
	}

	key, err := condition.CacheKey(cond, ec.Actor().ID())
	if err != nil {
		e.logger.Warn("Failed to derive cache key, computing directly", "error", err)
		e.computes.Add(1)
		return cond.Evaluate(ctx, ec)
	}

	if v, ok := e.cache.Lookup(ctx, key); ok {
		return v
	}

	e.computes.Add(1)
	v := cond.Evaluate(ctx, ec)

	// Cancelled evaluations fail closed and must not poison the cache:
	// a partial result is never stored.
	if ctx.Err() != nil {
		return v
	}

	if err := e.cache.Store(ctx, cond, key, v, tags...); err != nil {
		e.logger.Warn("Failed to store condition result", "key", key, "error", err)
	}
	return v
}

// Computes reports how many evaluations reached the underlying condition,
// as opposed to being served from cache.
func (e *Evaluator) Computes() int64 {
	return e.computes.Load()
}
