package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/pkg/objective"
)

// EventType represents the type of engine event being broadcast
type EventType string

const (
	EventTypeProgressUpdated    EventType = "progress.updated"
	EventTypeObjectiveCompleted EventType = "objective.completed"
	EventTypeProgressReset      EventType = "progress.reset"
)

// ChannelPrefix is the per-actor Pub/Sub channel prefix. Observers can
// PSubscribe to ChannelPrefix + "*" for all actors.
const ChannelPrefix = "quest-events:"

// Event represents a generic engine event structure
type Event struct {
	Type        EventType              `json:"type"`
	ActorID     string                 `json:"actor_id"`
	ObjectiveID string                 `json:"objective_id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster publishes engine events to Redis Pub/Sub for live observers
// (consoles, dashboards). Broadcast failures are logged, never fatal: the
// engine's own state does not depend on observers.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishProgressUpdated publishes a progress.updated event
func (b *Broadcaster) PublishProgressUpdated(ctx context.Context, actorID, objectiveID string, p objective.Progress) error {
	event := Event{
		Type:        EventTypeProgressUpdated,
		ActorID:     actorID,
		ObjectiveID: objectiveID,
		Data: map[string]interface{}{
			"current": p.Current,
			"target":  p.Target,
		},
	}
	return b.publishToActor(ctx, actorID, event)
}

// PublishObjectiveCompleted publishes an objective.completed event
func (b *Broadcaster) PublishObjectiveCompleted(ctx context.Context, actorID, objectiveID string) error {
	event := Event{
		Type:        EventTypeObjectiveCompleted,
		ActorID:     actorID,
		ObjectiveID: objectiveID,
		Data: map[string]interface{}{
			"status": "completed",
		},
	}
	return b.publishToActor(ctx, actorID, event)
}

// PublishProgressReset publishes a progress.reset event
func (b *Broadcaster) PublishProgressReset(ctx context.Context, actorID, objectiveID string) error {
	event := Event{
		Type:        EventTypeProgressReset,
		ActorID:     actorID,
		ObjectiveID: objectiveID,
	}
	return b.publishToActor(ctx, actorID, event)
}

// publishToActor publishes an event to the actor-specific channel
func (b *Broadcaster) publishToActor(ctx context.Context, actorID string, event Event) error {
	channel := ChannelPrefix + actorID

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"objective_id", event.ObjectiveID,
	)

	return nil
}
