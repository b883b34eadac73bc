package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/quest-engine/pkg/objective"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, logger), client, mr
}

func receiveEvent(t *testing.T, ch <-chan *redis.Message) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for broadcast event")
		return Event{}
	}
}

func TestPublishProgressUpdated(t *testing.T) {
	b, client, mr := setupBroadcaster(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, ChannelPrefix+"p1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := objective.Progress{Current: 7, Target: 10}
	require.NoError(t, b.PublishProgressUpdated(ctx, "p1", "collect_iron_ore", p))

	ev := receiveEvent(t, sub.Channel())
	assert.Equal(t, EventTypeProgressUpdated, ev.Type)
	assert.Equal(t, "p1", ev.ActorID)
	assert.Equal(t, "collect_iron_ore", ev.ObjectiveID)
	assert.Equal(t, float64(7), ev.Data["current"])
	assert.Equal(t, float64(10), ev.Data["target"])
}

func TestPublishObjectiveCompleted(t *testing.T) {
	b, client, mr := setupBroadcaster(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, ChannelPrefix+"p1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishObjectiveCompleted(ctx, "p1", "collect_iron_ore"))

	ev := receiveEvent(t, sub.Channel())
	assert.Equal(t, EventTypeObjectiveCompleted, ev.Type)
	assert.Equal(t, "completed", ev.Data["status"])
}

func TestPublishProgressReset(t *testing.T) {
	b, client, mr := setupBroadcaster(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, ChannelPrefix+"p1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishProgressReset(ctx, "p1", "collect_iron_ore"))

	ev := receiveEvent(t, sub.Channel())
	assert.Equal(t, EventTypeProgressReset, ev.Type)
	assert.Empty(t, ev.Data)
}

func TestChannelsAreScopedPerActor(t *testing.T) {
	b, client, mr := setupBroadcaster(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, ChannelPrefix+"p2")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishProgressUpdated(ctx, "p1", "collect_iron_ore", objective.Progress{Current: 1, Target: 2}))

	select {
	case msg := <-sub.Channel():
		t.Fatalf("p2 subscriber must not see p1 traffic, got %s", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}
