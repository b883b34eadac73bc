package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/quest-engine/pkg/objective"
)

// RedisStore persists progress snapshots in Redis as JSON values under
// progress:<objective>:<actor> keys.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisStore{
		client: redis.NewClient(opt),
		logger: logger,
	}, nil
}

func progressKey(objectiveID, actorID string) string {
	return fmt.Sprintf("progress:%s:%s", objectiveID, actorID)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) LoadProgress(ctx context.Context, actorID, objectiveID string) (*objective.Progress, error) {
	key := progressKey(objectiveID, actorID)
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load progress", "key", key, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	var p objective.Progress
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		r.logger.Error("Failed to unmarshal progress", "key", key, "error", err)
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return &p, nil
}

func (r *RedisStore) LoadAll(ctx context.Context, objectiveID string) (map[string]objective.Progress, error) {
	prefix := fmt.Sprintf("progress:%s:", objectiveID)
	result := make(map[string]objective.Progress)

	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		actorID := strings.TrimPrefix(key, prefix)

		data, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Expired between scan and get
			}
			return nil, fmt.Errorf("failed to load progress for %s: %w", key, err)
		}

		var p objective.Progress
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			r.logger.Error("Skipping malformed progress snapshot", "key", key, "error", err)
			continue
		}
		result[actorID] = p
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan progress keys: %w", err)
	}
	return result, nil
}

func (r *RedisStore) SaveProgress(ctx context.Context, actorID, objectiveID string, p objective.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	key := progressKey(objectiveID, actorID)
	if err := r.client.Set(ctx, key, string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save progress", "key", key, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

func (r *RedisStore) DeleteProgress(ctx context.Context, actorID, objectiveID string) error {
	key := progressKey(objectiveID, actorID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logger.Error("Failed to delete progress", "key", key, "error", err)
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
