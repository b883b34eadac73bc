package objective

import "github.com/jwebster45206/quest-engine/pkg/event"

// Objective tracks per-actor progress toward a goal as events stream in.
// The objective definition is immutable after construction; only progress,
// keyed by actor, is mutated. Implementations must be safe for concurrent
// use and must never let updates for one actor block another's.
type Objective interface {
	// ID identifies the objective for persistence and cache tagging.
	ID() string

	// EventType is the event type this objective tracks.
	EventType() string

	// Update applies an event to the actor's progress. It returns true
	// iff the stored value changed: mismatched events, replayed event
	// identities and already-capped progress all return false.
	Update(actorID string, ev event.Event) bool

	// Progress returns an immutable snapshot for the actor. An actor with
	// no recorded progress reports zero current.
	Progress(actorID string) Progress

	// IsComplete reports whether the actor has reached the target.
	IsComplete(actorID string) bool

	// Reset removes the actor's stored progress. Progress is not
	// resurrected until the next matching event.
	Reset(actorID string)

	// Actors lists actors with recorded progress, for snapshotting.
	Actors() []string

	// Restore seeds an actor's progress from a persisted snapshot.
	Restore(actorID string, p Progress)
}
