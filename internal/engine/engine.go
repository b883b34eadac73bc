package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/quest-engine/internal/cache"
	"github.com/jwebster45206/quest-engine/internal/events"
	"github.com/jwebster45206/quest-engine/internal/pipeline"
	"github.com/jwebster45206/quest-engine/internal/scheduler"
	"github.com/jwebster45206/quest-engine/internal/store"
	"github.com/jwebster45206/quest-engine/pkg/condition"
	"github.com/jwebster45206/quest-engine/pkg/event"
	"github.com/jwebster45206/quest-engine/pkg/objective"
)

// Options sizes the engine's moving parts.
type Options struct {
	Pipeline pipeline.Config

	// PoolSize and EvalTimeout bound expensive condition evaluation.
	PoolSize    int
	EvalTimeout time.Duration

	// ExpensiveCost is the cost at or above which a condition evaluation
	// is routed through the bounded pool instead of running inline.
	ExpensiveCost int

	// SnapshotInterval is how often dirty progress is flushed to the
	// store. Zero disables the periodic flush (shutdown still flushes).
	SnapshotInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.PoolSize <= 0 {
		o.PoolSize = 4
	}
	if o.EvalTimeout <= 0 {
		o.EvalTimeout = time.Second
	}
	if o.ExpensiveCost <= 0 {
		o.ExpensiveCost = 50
	}
	return o
}

type dirtyKey struct {
	actorID     string
	objectiveID string
}

// Engine wires the dispatch pipeline, objectives, the condition cache and
// the progress store together: events flow in, per-actor progress updates
// atomically, dependent cached condition results are invalidated, and
// progress changes are broadcast and snapshotted.
type Engine struct {
	opts        Options
	logger      *slog.Logger
	pipeline    *pipeline.Pipeline
	evaluator   *cache.Evaluator
	condCache   *cache.ConditionCache
	store       store.Store
	broadcaster *events.Broadcaster
	pool        *scheduler.Pool
	flusher     *scheduler.Periodic

	mu         sync.RWMutex
	objectives map[string]objective.Objective
	conditions map[string]condition.Condition

	dirtyMu sync.Mutex
	dirty   map[dirtyKey]struct{}
}

// New creates an engine. broadcaster may be nil when no live observers are
// wanted (tests, embedded use).
func New(opts Options, st store.Store, condCache *cache.ConditionCache, broadcaster *events.Broadcaster, logger *slog.Logger) *Engine {
	opts = opts.withDefaults()

	e := &Engine{
		opts:        opts,
		logger:      logger,
		pipeline:    pipeline.New(opts.Pipeline, logger),
		evaluator:   cache.NewEvaluator(condCache, logger),
		condCache:   condCache,
		store:       st,
		broadcaster: broadcaster,
		pool:        scheduler.NewPool(opts.PoolSize, opts.EvalTimeout, logger),
		objectives:  make(map[string]objective.Objective),
		conditions:  make(map[string]condition.Condition),
		dirty:       make(map[dirtyKey]struct{}),
	}
	if opts.SnapshotInterval > 0 {
		e.flusher = scheduler.NewPeriodic("snapshot-flush", opts.SnapshotInterval, func(ctx context.Context) {
			if err := e.FlushSnapshots(ctx); err != nil {
				logger.Error("Snapshot flush failed", "error", err)
			}
		}, logger)
	}
	return e
}

// Ensure the engine can back objective_complete conditions.
var _ condition.ProgressView = (*Engine)(nil)

// RegisterObjective adds an objective and subscribes it to the pipeline.
func (e *Engine) RegisterObjective(obj objective.Objective) error {
	e.mu.Lock()
	if _, exists := e.objectives[obj.ID()]; exists {
		e.mu.Unlock()
		return fmt.Errorf("objective %q already registered", obj.ID())
	}
	e.objectives[obj.ID()] = obj
	e.mu.Unlock()

	e.pipeline.Subscribe(&objectiveConsumer{engine: e, obj: obj})
	return nil
}

// RegisterCondition adds a named condition (a quest gate).
func (e *Engine) RegisterCondition(name string, cond condition.Condition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.conditions[name]; exists {
		return fmt.Errorf("condition %q already registered", name)
	}
	e.conditions[name] = cond
	return nil
}

// Condition returns a registered condition by name.
func (e *Engine) Condition(name string) (condition.Condition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cond, ok := e.conditions[name]
	return cond, ok
}

// Objective returns a registered objective by ID.
func (e *Engine) Objective(id string) (objective.Objective, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	obj, ok := e.objectives[id]
	return obj, ok
}

// Objectives returns all registered objectives.
func (e *Engine) Objectives() []objective.Objective {
	e.mu.RLock()
	defer e.mu.RUnlock()
	objs := make([]objective.Objective, 0, len(e.objectives))
	for _, obj := range e.objectives {
		objs = append(objs, obj)
	}
	return objs
}

// ObjectiveComplete implements condition.ProgressView.
func (e *Engine) ObjectiveComplete(objectiveID string, actorID string) bool {
	obj, ok := e.Objective(objectiveID)
	if !ok {
		return false
	}
	return obj.IsComplete(actorID)
}

// Publish routes an event into the dispatch pipeline.
func (e *Engine) Publish(ctx context.Context, ev event.Event) error {
	return e.pipeline.Publish(ctx, ev)
}

// EvaluateCondition evaluates a condition for the context's actor through
// the cache. Conditions at or above the expensive-cost threshold run on
// the bounded pool with a timeout; a timed-out attempt evaluates false.
func (e *Engine) EvaluateCondition(ctx context.Context, cond condition.Condition, ec *condition.Context) bool {
	ec = ec.WithProgress(e)

	tags := invalidationTags(cond, ec)
	eval := func(ctx context.Context) bool {
		return e.evaluator.Evaluate(ctx, cond, ec, tags...)
	}

	if cond.Cost() >= e.opts.ExpensiveCost {
		return e.pool.Run(ctx, cond.Node().Kind, eval)
	}
	return eval(ctx)
}

// ResetProgress clears an actor's progress on an objective, in memory and
// in the store, and invalidates dependent cached results.
func (e *Engine) ResetProgress(ctx context.Context, actorID, objectiveID string) error {
	obj, ok := e.Objective(objectiveID)
	if !ok {
		return fmt.Errorf("unknown objective %q", objectiveID)
	}

	obj.Reset(actorID)
	if err := e.store.DeleteProgress(ctx, actorID, objectiveID); err != nil {
		return err
	}
	e.invalidateProgress(ctx, actorID, objectiveID)

	if e.broadcaster != nil {
		if err := e.broadcaster.PublishProgressReset(ctx, actorID, objectiveID); err != nil {
			e.logger.Error("Failed to publish reset event", "error", err)
		}
	}
	return nil
}

// LoadSnapshots restores persisted progress for every registered
// objective, typically at startup before the pipeline starts.
func (e *Engine) LoadSnapshots(ctx context.Context) error {
	for _, obj := range e.Objectives() {
		snapshots, err := e.store.LoadAll(ctx, obj.ID())
		if err != nil {
			return fmt.Errorf("failed to load snapshots for %q: %w", obj.ID(), err)
		}
		for actorID, p := range snapshots {
			obj.Restore(actorID, p)
		}
		if len(snapshots) > 0 {
			e.logger.Info("Restored progress snapshots",
				"objective_id", obj.ID(),
				"actors", len(snapshots))
		}
	}
	return nil
}

// FlushSnapshots persists progress for every actor+objective pair that
// changed since the last flush.
func (e *Engine) FlushSnapshots(ctx context.Context) error {
	e.dirtyMu.Lock()
	dirty := e.dirty
	e.dirty = make(map[dirtyKey]struct{})
	e.dirtyMu.Unlock()

	for key := range dirty {
		obj, ok := e.Objective(key.objectiveID)
		if !ok {
			continue
		}
		p := obj.Progress(key.actorID)
		if err := e.store.SaveProgress(ctx, key.actorID, key.objectiveID, p); err != nil {
			// Put the pair back so the next flush retries it.
			e.dirtyMu.Lock()
			e.dirty[key] = struct{}{}
			e.dirtyMu.Unlock()
			return fmt.Errorf("failed to save progress for %s/%s: %w", key.objectiveID, key.actorID, err)
		}
	}
	return nil
}

// Start restores snapshots, starts the pipeline and begins periodic
// snapshot flushing.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.LoadSnapshots(ctx); err != nil {
		return err
	}
	if err := e.pipeline.Start(); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Start(ctx)
	}
	return nil
}

// Stop drains the pipeline, stops the flusher and persists a final
// snapshot of all dirty progress.
func (e *Engine) Stop(ctx context.Context) error {
	if err := e.pipeline.Stop(ctx); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Stop()
	}
	return e.FlushSnapshots(ctx)
}

// PipelineState exposes the pipeline lifecycle state for health reporting.
func (e *Engine) PipelineState() pipeline.State {
	return e.pipeline.State()
}

func (e *Engine) markDirty(actorID, objectiveID string) {
	e.dirtyMu.Lock()
	e.dirty[dirtyKey{actorID: actorID, objectiveID: objectiveID}] = struct{}{}
	e.dirtyMu.Unlock()
}

func (e *Engine) invalidateProgress(ctx context.Context, actorID, objectiveID string) {
	tag := progressTag(objectiveID, actorID)
	if err := e.condCache.InvalidateByTag(ctx, tag); err != nil {
		e.logger.Error("Cache invalidation failed", "tag", tag, "error", err)
	}
}

// onProgressChanged runs after an objective accepted an event for an
// actor: dependent cached condition results are dropped, the pair is
// marked for snapshotting, and observers are notified.
func (e *Engine) onProgressChanged(ctx context.Context, actorID string, obj objective.Objective) {
	e.invalidateProgress(ctx, actorID, obj.ID())
	e.markDirty(actorID, obj.ID())

	if e.broadcaster == nil {
		return
	}
	p := obj.Progress(actorID)
	if err := e.broadcaster.PublishProgressUpdated(ctx, actorID, obj.ID(), p); err != nil {
		e.logger.Error("Failed to publish progress event", "error", err)
	}
	if p.Complete() {
		if err := e.broadcaster.PublishObjectiveCompleted(ctx, actorID, obj.ID()); err != nil {
			e.logger.Error("Failed to publish completion event", "error", err)
		}
	}
}

// objectiveConsumer adapts an objective to the pipeline consumer
// interface. Mismatched and replayed events return false from Update and
// are silently ignored here.
type objectiveConsumer struct {
	engine *Engine
	obj    objective.Objective
}

func (oc *objectiveConsumer) HandleEvent(ctx context.Context, ev event.Event) {
	if !oc.obj.Update(ev.ActorID, ev) {
		return
	}
	oc.engine.onProgressChanged(ctx, ev.ActorID, oc.obj)
}

// progressTag is the invalidation tag for one actor's progress on one
// objective.
func progressTag(objectiveID, actorID string) string {
	return fmt.Sprintf("progress:%s:%s", objectiveID, actorID)
}

// invalidationTags derives the tags a cached result must carry: one per
// objective the condition tree references (scoped to the actor), plus a
// catch-all actor tag.
func invalidationTags(cond condition.Condition, ec *condition.Context) []string {
	if ec.Actor() == nil {
		return nil
	}
	actorID := ec.Actor().ID()

	tags := []string{"actor:" + actorID}
	for _, objectiveID := range referencedObjectives(cond.Node()) {
		tags = append(tags, progressTag(objectiveID, actorID))
	}
	return tags
}

// referencedObjectives walks a condition tree collecting the objective IDs
// of objective_complete leaves.
func referencedObjectives(n *condition.Node) []string {
	if n == nil {
		return nil
	}
	var ids []string
	if n.Kind == condition.KindObjectiveComplete {
		if id, ok := n.Params["objective"].(string); ok {
			ids = append(ids, id)
		}
	}
	for _, child := range n.Children {
		ids = append(ids, referencedObjectives(child)...)
	}
	return ids
}
