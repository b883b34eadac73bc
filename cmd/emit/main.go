package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/pkg/event"
)

// emit pushes a test event onto the engine's ingest queue.
func main() {
	redisURL := flag.String("redis", envOr("REDIS_URL", "redis://localhost:6379"), "Redis URL")
	actorID := flag.String("actor", "test-actor", "actor ID")
	eventType := flag.String("type", "item_collected", "event type")
	item := flag.String("item", "", "item payload field")
	amount := flag.Int("amount", 0, "amount payload field (0 omits it)")
	repeat := flag.Int("n", 1, "number of events to emit")
	flag.Parse()

	redisOpts, err := redis.ParseURL(*redisURL)
	if err != nil {
		log.Fatal("Failed to parse Redis URL:", err)
	}
	client := redis.NewClient(redisOpts)
	defer client.Close()

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	payload := map[string]any{}
	if *item != "" {
		payload["item"] = *item
	}
	if *amount > 0 {
		payload["amount"] = *amount
	}

	for i := 0; i < *repeat; i++ {
		ev := event.New(*eventType, *actorID, payload)
		data, err := ev.ToJSON()
		if err != nil {
			log.Fatal("Failed to marshal event:", err)
		}
		if err := client.RPush(ctx, "events", data).Err(); err != nil {
			log.Fatal("Failed to enqueue event:", err)
		}
		fmt.Printf("Enqueued event %s (%s for %s)\n", ev.ID, ev.Type, ev.ActorID)
	}

	depth, err := client.LLen(ctx, "events").Result()
	if err != nil {
		log.Fatal("Failed to get queue depth:", err)
	}
	fmt.Printf("\nQueue depth: %d events\n", depth)
	fmt.Println(strings.TrimSpace(`
Now start the engine to see it process these events:
  go run ./cmd/engine`))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
