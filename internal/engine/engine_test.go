package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/internal/cache"
	"github.com/jwebster45206/quest-engine/internal/store"
	"github.com/jwebster45206/quest-engine/pkg/condition"
	"github.com/jwebster45206/quest-engine/pkg/event"
	"github.com/jwebster45206/quest-engine/pkg/objective"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testActor struct{ id string }

func (a *testActor) ID() string              { return a.id }
func (a *testActor) Stat(string) (int, bool) { return 0, false }
func (a *testActor) CountItem(string) int    { return 0 }
func (a *testActor) Faction() string         { return "" }

func newTestEngine(t *testing.T, opts Options) (*Engine, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	cc := cache.NewConditionCache(nil, cache.Options{}, testLogger())
	return New(opts, st, cc, nil, testLogger()), st
}

func registerCounter(t *testing.T, e *Engine, id string, target int) objective.Objective {
	t.Helper()
	obj, err := objective.NewCounter(id, "item_collected", target,
		map[string]any{"item": "iron_ore"}, nil)
	require.NoError(t, err)
	require.NoError(t, e.RegisterObjective(obj))
	return obj
}

func oreEvent(actorID string, amount int) event.Event {
	payload := map[string]any{"item": "iron_ore"}
	if amount > 0 {
		payload["amount"] = amount
	}
	return event.New("item_collected", actorID, payload)
}

func TestEventFlowUpdatesProgress(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	obj := registerCounter(t, e, "collect_iron_ore", 10)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))

	require.NoError(t, e.Publish(ctx, oreEvent("p1", 3)))
	require.NoError(t, e.Publish(ctx, oreEvent("p1", 4)))
	require.NoError(t, e.Publish(ctx, oreEvent("p2", 1)))
	require.NoError(t, e.Stop(ctx))

	assert.Equal(t, 7, obj.Progress("p1").Current)
	assert.Equal(t, 1, obj.Progress("p2").Current)
}

func TestMismatchedEventsIgnored(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	obj := registerCounter(t, e, "collect_iron_ore", 10)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))

	require.NoError(t, e.Publish(ctx, event.New("block_mined", "p1", nil)))
	require.NoError(t, e.Publish(ctx, event.New("item_collected", "p1", map[string]any{"item": "coal"})))
	require.NoError(t, e.Stop(ctx))

	assert.Equal(t, 0, obj.Progress("p1").Current)
}

func TestRegisterDuplicates(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	registerCounter(t, e, "collect_iron_ore", 10)

	obj, err := objective.NewCounter("collect_iron_ore", "item_collected", 5, nil, nil)
	require.NoError(t, err)
	assert.Error(t, e.RegisterObjective(obj))

	reg := condition.NewRegistry()
	require.NoError(t, condition.RegisterBuiltins(reg))
	leaf, err := reg.NewLeaf(condition.KindFactionIs, map[string]any{"faction": "x"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, e.RegisterCondition("gate", leaf))
	assert.Error(t, e.RegisterCondition("gate", leaf))
}

func TestProgressChangeInvalidatesConditionCache(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	registerCounter(t, e, "collect_iron_ore", 5)

	reg := condition.NewRegistry()
	require.NoError(t, condition.RegisterBuiltins(reg))
	gate, err := reg.NewLeaf(condition.KindObjectiveComplete,
		map[string]any{"objective": "collect_iron_ore"}, nil, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))

	ec := condition.NewContext(&testActor{id: "p1"}, time.Now(), testLogger())

	// First evaluation caches false under the objective's progress tag.
	assert.False(t, e.EvaluateCondition(ctx, gate, ec))

	require.NoError(t, e.Publish(ctx, oreEvent("p1", 5)))
	require.NoError(t, e.Stop(ctx))

	// The cached false was invalidated when progress changed; a stale hit
	// would still report false here.
	assert.True(t, e.EvaluateCondition(ctx, gate, ec))
}

func TestObjectiveCompleteView(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	obj := registerCounter(t, e, "collect_iron_ore", 2)

	assert.False(t, e.ObjectiveComplete("collect_iron_ore", "p1"))
	assert.False(t, e.ObjectiveComplete("no_such_objective", "p1"))

	obj.Update("p1", oreEvent("p1", 2))
	assert.True(t, e.ObjectiveComplete("collect_iron_ore", "p1"))
}

func TestSnapshotFlushAndRestore(t *testing.T) {
	e, st := newTestEngine(t, Options{})
	registerCounter(t, e, "collect_iron_ore", 10)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Publish(ctx, oreEvent("p1", 4)))
	require.NoError(t, e.Stop(ctx))

	require.True(t, st.Saved("p1", "collect_iron_ore"), "shutdown flushes dirty progress")
	saved, err := st.LoadProgress(ctx, "p1", "collect_iron_ore")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 4, saved.Current)

	// A fresh engine against the same store picks the snapshot back up.
	cc := cache.NewConditionCache(nil, cache.Options{}, testLogger())
	e2 := New(Options{}, st, cc, nil, testLogger())
	obj := registerCounter(t, e2, "collect_iron_ore", 10)
	require.NoError(t, e2.Start(ctx))
	require.NoError(t, e2.Stop(ctx))

	assert.Equal(t, 4, obj.Progress("p1").Current)
}

func TestFlushRetriesFailedSaves(t *testing.T) {
	e, st := newTestEngine(t, Options{})
	obj := registerCounter(t, e, "collect_iron_ore", 10)

	obj.Update("p1", oreEvent("p1", 3))
	e.markDirty("p1", "collect_iron_ore")

	st.SaveErr = assert.AnError
	require.Error(t, e.FlushSnapshots(context.Background()))

	// The failed pair stays dirty and lands on the next flush.
	st.SaveErr = nil
	require.NoError(t, e.FlushSnapshots(context.Background()))
	assert.True(t, st.Saved("p1", "collect_iron_ore"))
}

func TestResetProgress(t *testing.T) {
	e, st := newTestEngine(t, Options{})
	obj := registerCounter(t, e, "collect_iron_ore", 5)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Publish(ctx, oreEvent("p1", 5)))
	require.NoError(t, e.Stop(ctx))

	require.True(t, obj.IsComplete("p1"))
	require.True(t, st.Saved("p1", "collect_iron_ore"))

	require.NoError(t, e.ResetProgress(ctx, "p1", "collect_iron_ore"))
	assert.Equal(t, 0, obj.Progress("p1").Current)
	assert.False(t, st.Saved("p1", "collect_iron_ore"))

	assert.Error(t, e.ResetProgress(ctx, "p1", "no_such_objective"))
}

func TestExpensiveConditionTimesOutFalse(t *testing.T) {
	e, _ := newTestEngine(t, Options{EvalTimeout: 50 * time.Millisecond, ExpensiveCost: 50})

	slow := &slowCondition{cost: 90}
	ec := condition.NewContext(&testActor{id: "p1"}, time.Now(), testLogger())

	start := time.Now()
	result := e.EvaluateCondition(context.Background(), slow, ec)
	assert.False(t, result, "a timed-out expensive evaluation fails closed")
	assert.Less(t, time.Since(start), time.Second)
}

func TestCheapConditionRunsInline(t *testing.T) {
	e, _ := newTestEngine(t, Options{EvalTimeout: 50 * time.Millisecond, ExpensiveCost: 50})

	reg := condition.NewRegistry()
	require.NoError(t, condition.RegisterBuiltins(reg))
	leaf, err := reg.NewLeaf(condition.KindFactionIs, map[string]any{"faction": "miners_guild"}, nil, nil)
	require.NoError(t, err)

	ec := condition.NewContext(&testActor{id: "p1"}, time.Now(), testLogger())
	assert.False(t, e.EvaluateCondition(context.Background(), leaf, ec))
}

// slowCondition blocks until its context is cancelled.
type slowCondition struct {
	cost int
}

func (s *slowCondition) Evaluate(ctx context.Context, _ *condition.Context) bool {
	<-ctx.Done()
	return false
}

func (s *slowCondition) Cost() int { return s.cost }

func (s *slowCondition) Deterministic() bool { return false }

func (s *slowCondition) Node() *condition.Node {
	return &condition.Node{Kind: "slow"}
}

func TestInvalidationTags(t *testing.T) {
	reg := condition.NewRegistry()
	require.NoError(t, condition.RegisterBuiltins(reg))

	a, err := reg.NewLeaf(condition.KindObjectiveComplete, map[string]any{"objective": "collect_iron_ore"}, nil, nil)
	require.NoError(t, err)
	b, err := reg.NewLeaf(condition.KindObjectiveComplete, map[string]any{"objective": "mine_coal"}, nil, nil)
	require.NoError(t, err)
	and, err := condition.NewAnd(a, b)
	require.NoError(t, err)

	ec := condition.NewContext(&testActor{id: "p1"}, time.Now(), testLogger())
	tags := invalidationTags(and, ec)

	assert.Contains(t, tags, "actor:p1")
	assert.Contains(t, tags, "progress:collect_iron_ore:p1")
	assert.Contains(t, tags, "progress:mine_coal:p1")

	noActor := condition.NewContext(nil, time.Now(), testLogger())
	assert.Nil(t, invalidationTags(and, noActor))
}
