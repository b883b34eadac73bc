package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/pkg/condition"
)

type testActor struct{ id string }

func (a *testActor) ID() string              { return a.id }
func (a *testActor) Stat(string) (int, bool) { return 0, false }
func (a *testActor) CountItem(string) int    { return 0 }
func (a *testActor) Faction() string         { return "" }

func evalContext(actorID string) *condition.Context {
	var actor condition.ActorView
	if actorID != "" {
		actor = &testActor{id: actorID}
	}
	return condition.NewContext(actor, time.Now(), nil)
}

func TestEvaluatorCachesDeterministic(t *testing.T) {
	cc := NewConditionCache(nil, Options{}, quietLogger())
	ev := NewEvaluator(cc, quietLogger())
	cond := &stubCondition{kind: "stub", result: true, deterministic: true}
	ec := evalContext("p1")

	assert.True(t, ev.Evaluate(context.Background(), cond, ec))
	assert.True(t, ev.Evaluate(context.Background(), cond, ec))
	assert.True(t, ev.Evaluate(context.Background(), cond, ec))

	assert.Equal(t, int32(1), cond.calls.Load(), "repeat evaluations within the TTL are served from cache")
	assert.Equal(t, int64(1), ev.Computes())
}

func TestEvaluatorNeverCachesNonDeterministic(t *testing.T) {
	cc := NewConditionCache(nil, Options{}, quietLogger())
	ev := NewEvaluator(cc, quietLogger())
	cond := &stubCondition{kind: "chance", result: true, deterministic: false}
	ec := evalContext("p1")

	for i := 0; i < 3; i++ {
		ev.Evaluate(context.Background(), cond, ec)
	}
	assert.Equal(t, int32(3), cond.calls.Load(), "non-deterministic conditions bypass the cache")
}

func TestEvaluatorBypassesWithoutActor(t *testing.T) {
	cc := NewConditionCache(nil, Options{}, quietLogger())
	ev := NewEvaluator(cc, quietLogger())
	cond := &stubCondition{kind: "stub", result: true, deterministic: true}
	ec := evalContext("")

	ev.Evaluate(context.Background(), cond, ec)
	ev.Evaluate(context.Background(), cond, ec)
	assert.Equal(t, int32(2), cond.calls.Load(), "cache keys are per actor; no actor means no caching")
}

func TestEvaluatorKeysPerActor(t *testing.T) {
	cc := NewConditionCache(nil, Options{}, quietLogger())
	ev := NewEvaluator(cc, quietLogger())
	cond := &stubCondition{kind: "stub", result: true, deterministic: true}

	ev.Evaluate(context.Background(), cond, evalContext("p1"))
	ev.Evaluate(context.Background(), cond, evalContext("p2"))
	assert.Equal(t, int32(2), cond.calls.Load(), "distinct actors do not share entries")

	ev.Evaluate(context.Background(), cond, evalContext("p1"))
	assert.Equal(t, int32(2), cond.calls.Load())
}

func TestEvaluatorCancelledComputeNotStored(t *testing.T) {
	cc := NewConditionCache(nil, Options{}, quietLogger())
	ev := NewEvaluator(cc, quietLogger())
	cond := &stubCondition{kind: "stub", result: true, deterministic: true}
	ec := evalContext("p1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, ev.Evaluate(ctx, cond, ec), "the stub ignores cancellation; real leaves fail closed")

	// The cancelled result must not have been cached.
	ev.Evaluate(context.Background(), cond, ec)
	assert.Equal(t, int32(2), cond.calls.Load())
}

func TestEvaluatorTagsFlowToCache(t *testing.T) {
	cc := NewConditionCache(nil, Options{}, quietLogger())
	ev := NewEvaluator(cc, quietLogger())
	cond := &stubCondition{kind: "stub", result: true, deterministic: true}
	ec := evalContext("p1")

	ev.Evaluate(context.Background(), cond, ec, "progress:collect_iron_ore:p1")
	require.Equal(t, int32(1), cond.calls.Load())

	require.NoError(t, cc.InvalidateByTag(context.Background(), "progress:collect_iron_ore:p1"))

	ev.Evaluate(context.Background(), cond, ec)
	assert.Equal(t, int32(2), cond.calls.Load(), "tag invalidation forces a recompute")
}
