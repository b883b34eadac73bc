package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/pkg/event"
)

// eventsKey is the global ingest list external producers push facts onto.
const eventsKey = "events"

// EventQueue is the ingest queue between external event sources and the
// dispatch pipeline. Events are JSON on a Redis list; BLPOP order is the
// publish order, which the pipeline preserves per actor.
type EventQueue struct {
	client *Client
}

func NewEventQueue(client *Client) *EventQueue {
	return &EventQueue{client: client}
}

// Enqueue adds an event to the end of the ingest queue.
func (q *EventQueue) Enqueue(ctx context.Context, ev event.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, eventsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// Dequeue removes and returns the next event. Returns ok=false when the
// queue is empty.
func (q *EventQueue) Dequeue(ctx context.Context) (event.Event, bool, error) {
	result, err := q.client.rdb.LPop(ctx, eventsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return event.Event{}, false, nil // Queue is empty
		}
		return event.Event{}, false, fmt.Errorf("failed to dequeue event: %w", err)
	}

	ev, err := event.FromJSON([]byte(result))
	if err != nil {
		return event.Event{}, false, fmt.Errorf("failed to parse event: %w", err)
	}
	return ev, true, nil
}

// BlockingDequeue waits up to timeout for an event. Returns ok=false on
// timeout.
func (q *EventQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (event.Event, bool, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, eventsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return event.Event{}, false, nil // Timeout, queue still empty
		}
		return event.Event{}, false, fmt.Errorf("failed to dequeue event: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return event.Event{}, false, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	ev, err := event.FromJSON([]byte(result[1]))
	if err != nil {
		return event.Event{}, false, fmt.Errorf("failed to parse event: %w", err)
	}
	return ev, true, nil
}

// Depth returns the number of queued events.
func (q *EventQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, eventsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
