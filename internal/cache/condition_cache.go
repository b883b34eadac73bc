package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/quest-engine/pkg/condition"
)

// ErrNotCacheable is returned when a caller tries to cache a
// non-deterministic condition result. Enforced here at the cache boundary
// rather than trusted to callers.
var ErrNotCacheable = errors.New("condition result is not cacheable")

const (
	keyIndexKey = "condcache:keys"
	tagPrefix   = "condcache:tag:"
)

// Options sizes the two tiers. Tier 1 is the hot in-process cache with a
// TTL measured in seconds; tier 2 is the shared backend with a TTL
// measured in minutes.
type Options struct {
	Tier1TTL      time.Duration
	Tier2TTL      time.Duration
	Tier1Capacity int
}

func (o Options) withDefaults() Options {
	if o.Tier1TTL <= 0 {
		o.Tier1TTL = 5 * time.Second
	}
	if o.Tier2TTL <= 0 {
		o.Tier2TTL = 5 * time.Minute
	}
	return o
}

// ConditionCache is the two-tier keyed result cache for condition
// evaluation. The read path checks tier 1, then tier 2, and a compute
// writes back into both. Tag indexes in both tiers support invalidating
// many cached results at once when progress changes.
type ConditionCache struct {
	tier1  *Memory
	tier2  Cache
	opts   Options
	logger *slog.Logger
}

// NewConditionCache builds a two-tier cache. tier2 may be nil for a
// memory-only deployment (tests, single process).
func NewConditionCache(tier2 Cache, opts Options, logger *slog.Logger) *ConditionCache {
	opts = opts.withDefaults()
	return &ConditionCache{
		tier1:  NewMemory(opts.Tier1Capacity),
		tier2:  tier2,
		opts:   opts,
		logger: logger,
	}
}

// Lookup returns a cached result for the key, promoting tier-2 hits into
// tier 1. Misses are not errors.
func (cc *ConditionCache) Lookup(ctx context.Context, key string) (bool, bool) {
	if v, ok := cc.tier1.Get(key); ok {
		return v, true
	}

	if cc.tier2 == nil {
		return false, false
	}

	raw, err := cc.tier2.Get(ctx, key)
	if err != nil {
		// A tier-2 fault degrades to a miss; callers recompute.
		cc.logger.Warn("Tier-2 cache lookup failed", "key", key, "error", err)
		return false, false
	}
	switch raw {
	case "1":
		cc.tier1.Set(key, true, cc.opts.Tier1TTL)
		return true, true
	case "0":
		cc.tier1.Set(key, false, cc.opts.Tier1TTL)
		return false, true
	default:
		return false, false
	}
}

// Store caches a computed result in both tiers. Non-deterministic
// conditions are refused regardless of what the caller asked for.
func (cc *ConditionCache) Store(ctx context.Context, cond condition.Condition, key string, value bool, tags ...string) error {
	if !cond.Deterministic() {
		return ErrNotCacheable
	}

	cc.tier1.Set(key, value, cc.opts.Tier1TTL, tags...)

	if cc.tier2 == nil {
		return nil
	}

	raw := "0"
	if value {
		raw = "1"
	}
	if err := cc.tier2.Set(ctx, key, raw, cc.opts.Tier2TTL); err != nil {
		return fmt.Errorf("failed to store condition result: %w", err)
	}
	if err := cc.tier2.AddToSet(ctx, keyIndexKey, key); err != nil {
		return err
	}
	for _, tag := range tags {
		if err := cc.tier2.AddToSet(ctx, tagPrefix+tag, key); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate removes a single key from both tiers.
func (cc *ConditionCache) Invalidate(ctx context.Context, key string) error {
	cc.tier1.Delete(key)
	if cc.tier2 == nil {
		return nil
	}
	return cc.tier2.Del(ctx, key)
}

// InvalidateAll removes every cached condition result.
func (cc *ConditionCache) InvalidateAll(ctx context.Context) error {
	cc.tier1.Flush()
	if cc.tier2 == nil {
		return nil
	}

	keys, err := cc.tier2.SetMembers(ctx, keyIndexKey)
	if err != nil {
		return err
	}
	if err := cc.tier2.Del(ctx, append(keys, keyIndexKey)...); err != nil {
		return err
	}
	return nil
}

// InvalidateByTag removes every cached result carrying the tag, e.g. all
// conditions depending on one objective's progress.
func (cc *ConditionCache) InvalidateByTag(ctx context.Context, tag string) error {
	cc.tier1.DeleteByTag(tag)
	if cc.tier2 == nil {
		return nil
	}

	setKey := tagPrefix + tag
	keys, err := cc.tier2.SetMembers(ctx, setKey)
	if err != nil {
		return err
	}
	// Entries promoted from tier 2 carry no tags in tier 1, so the tag
	// sweep above misses them. Remove the indexed keys explicitly.
	cc.tier1.Delete(keys...)
	if err := cc.tier2.Del(ctx, append(keys, setKey)...); err != nil {
		return err
	}
	return nil
}
