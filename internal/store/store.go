package store

import (
	"context"

	"github.com/jwebster45206/quest-engine/pkg/objective"
)

// Store is the durable snapshot boundary for objective progress. The
// engine does not implement durability itself; it loads at startup and
// saves on change and at shutdown.
type Store interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// LoadProgress returns the stored snapshot, or nil when none exists.
	LoadProgress(ctx context.Context, actorID, objectiveID string) (*objective.Progress, error)

	// LoadAll returns every stored snapshot for an objective, keyed by
	// actor, for restore at startup.
	LoadAll(ctx context.Context, objectiveID string) (map[string]objective.Progress, error)

	// SaveProgress stores a snapshot.
	SaveProgress(ctx context.Context, actorID, objectiveID string, p objective.Progress) error

	// DeleteProgress removes a stored snapshot.
	DeleteProgress(ctx context.Context, actorID, objectiveID string) error
}
