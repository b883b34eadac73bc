package objective

import (
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/quest-engine/pkg/event"
)

// seenLimit bounds the per-actor replay window. Events older than the last
// seenLimit applied identities can no longer be de-duplicated; the
// dispatch pipeline's per-actor ordering keeps replays close to the
// original delivery in practice.
const seenLimit = 1024

// amountKey is the payload field carrying the progress increment.
const amountKey = "amount"

// Counter is an objective that counts matching events per actor, capped at
// a target ("collect 10 iron ore"). Matching is by event type plus
// payload field equality. Updates are idempotent by event identity.
type Counter struct {
	id        string
	eventType string
	match     map[string]any
	target    int
	metadata  map[string]any

	mu     sync.RWMutex
	actors map[string]*actorProgress
}

// actorProgress is the only mutable state, one per actor, guarded by its
// own mutex so actors never block each other.
type actorProgress struct {
	mu      sync.Mutex
	current int
	seen    map[uuid.UUID]struct{}
	order   []uuid.UUID
}

// NewCounter builds a counter objective. match lists payload fields that
// must equal the given values for an event to count; metadata is carried
// into progress snapshots.
func NewCounter(id, eventType string, target int, match map[string]any, metadata map[string]any) (*Counter, error) {
	if id == "" {
		return nil, fmt.Errorf("objective id must not be empty")
	}
	if eventType == "" {
		return nil, fmt.Errorf("objective %q: event type must not be empty", id)
	}
	if target <= 0 {
		return nil, fmt.Errorf("objective %q: target must be positive, got %d", id, target)
	}

	c := &Counter{
		id:        id,
		eventType: eventType,
		target:    target,
		actors:    make(map[string]*actorProgress),
	}
	if len(match) > 0 {
		c.match = maps.Clone(match)
	}
	if len(metadata) > 0 {
		c.metadata = maps.Clone(metadata)
	}
	return c, nil
}

func (c *Counter) ID() string {
	return c.id
}

func (c *Counter) EventType() string {
	return c.eventType
}

func (c *Counter) Target() int {
	return c.target
}

// Update applies an event. The read-modify-write for a single actor is a
// single critical section under that actor's lock, so concurrent updates
// for the same actor never lose increments.
func (c *Counter) Update(actorID string, ev event.Event) bool {
	if ev.Type != c.eventType {
		return false
	}
	for key, want := range c.match {
		got, ok := ev.Payload[key]
		if !ok || !matchValues(got, want) {
			return false
		}
	}

	delta := 1
	if n, ok := ev.Int(amountKey); ok {
		delta = n
	}
	if delta <= 0 {
		return false
	}

	st := c.actorState(actorID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, replayed := st.seen[ev.ID]; replayed {
		return false
	}
	st.remember(ev.ID)

	next := st.current + delta
	if next > c.target {
		next = c.target
	}
	changed := next != st.current
	st.current = next
	return changed
}

func (c *Counter) Progress(actorID string) Progress {
	p := Progress{Target: c.target}.withMetadata(c.metadata)

	c.mu.RLock()
	st, ok := c.actors[actorID]
	c.mu.RUnlock()
	if !ok {
		return p
	}

	st.mu.Lock()
	p.Current = st.current
	st.mu.Unlock()
	return p
}

func (c *Counter) IsComplete(actorID string) bool {
	return c.Progress(actorID).Complete()
}

func (c *Counter) Reset(actorID string) {
	c.mu.Lock()
	delete(c.actors, actorID)
	c.mu.Unlock()
}

func (c *Counter) Actors() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.actors))
	for id := range c.actors {
		ids = append(ids, id)
	}
	return ids
}

// Restore seeds progress from a persisted snapshot, clamped to the target.
// Replay identities are not persisted; the store is only consulted across
// restarts where the delivery window has moved on anyway.
func (c *Counter) Restore(actorID string, p Progress) {
	st := c.actorState(actorID)
	st.mu.Lock()
	defer st.mu.Unlock()

	current := p.Current
	if current > c.target {
		current = c.target
	}
	if current < 0 {
		current = 0
	}
	st.current = current
}

// actorState returns the per-actor state, creating it on first use.
func (c *Counter) actorState(actorID string) *actorProgress {
	c.mu.RLock()
	st, ok := c.actors[actorID]
	c.mu.RUnlock()
	if ok {
		return st
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok = c.actors[actorID]; ok {
		return st
	}
	st = &actorProgress{seen: make(map[uuid.UUID]struct{})}
	c.actors[actorID] = st
	return st
}

// remember records an applied event identity, evicting the oldest entry
// once the window is full. Caller holds the actor lock.
func (st *actorProgress) remember(id uuid.UUID) {
	if len(st.order) >= seenLimit {
		oldest := st.order[0]
		st.order = st.order[1:]
		delete(st.seen, oldest)
	}
	st.seen[id] = struct{}{}
	st.order = append(st.order, id)
}

// matchValues compares a payload value against the configured matcher,
// tolerating the int/float64 skew a JSON round trip introduces.
func matchValues(got, want any) bool {
	if got == want {
		return true
	}
	gi, gok := toInt(got)
	wi, wok := toInt(want)
	return gok && wok && gi == wi
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
