package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a single timestamped fact about an actor ("item collected",
// "block mined", ...). Events are immutable once created; the ID is the
// event identity used for replay de-duplication downstream.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	ActorID   string         `json:"actor_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New creates an event with a fresh identity and the current time.
func New(eventType string, actorID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ToJSON converts the event to JSON bytes for queue transport.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON bytes.
func FromJSON(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Str returns the payload value for key if it is a string.
func (e Event) Str(key string) (string, bool) {
	v, ok := e.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int returns the payload value for key as an int. JSON decoding yields
// float64 for numbers, so both forms are accepted.
func (e Event) Int(key string) (int, bool) {
	v, ok := e.Payload[key]
	if !ok {
		return 0, false
	}
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
