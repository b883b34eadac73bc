package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/internal/events"
)

// console is a live observer for the quest engine: it subscribes to the
// engine's Pub/Sub event channels and renders per-actor objective
// progress as events flow.
func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse Redis URL: %v\n", err)
		os.Exit(1)
	}
	client := redis.NewClient(opt)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to Redis: %v\n", err)
		os.Exit(1)
	}

	pubsub := client.PSubscribe(ctx, events.ChannelPrefix+"*")
	defer pubsub.Close()

	eventCh := make(chan events.Event, 64)
	go func() {
		defer close(eventCh)
		for msg := range pubsub.Channel() {
			var ev events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue // Malformed observer traffic is not fatal
			}
			eventCh <- ev
		}
	}()

	ui := NewConsoleUI(eventCh)
	p := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Console error: %v\n", err)
		os.Exit(1)
	}
}
