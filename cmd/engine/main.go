package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/quest-engine/internal/cache"
	"github.com/jwebster45206/quest-engine/internal/config"
	"github.com/jwebster45206/quest-engine/internal/engine"
	"github.com/jwebster45206/quest-engine/internal/events"
	"github.com/jwebster45206/quest-engine/internal/loader"
	"github.com/jwebster45206/quest-engine/internal/logger"
	"github.com/jwebster45206/quest-engine/internal/pipeline"
	"github.com/jwebster45206/quest-engine/internal/queue"
	"github.com/jwebster45206/quest-engine/internal/store"
	"github.com/jwebster45206/quest-engine/pkg/condition"
)

const dequeueTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Quest Engine",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"content_dir", cfg.ContentDir)

	// Leaf kinds must be registered before content decodes.
	registry := condition.NewRegistry()
	if err := condition.RegisterBuiltins(registry); err != nil {
		log.Error("Failed to register leaf kinds", "error", err)
		os.Exit(1)
	}

	content, err := loader.LoadDir(registry, cfg.ContentDir)
	if err != nil {
		log.Error("Failed to load content", "error", err)
		os.Exit(1)
	}
	log.Info("Content loaded",
		"objectives", len(content.Objectives),
		"conditions", len(content.Conditions))

	// Tier-2 cache
	redisCache, err := cache.NewRedisCache(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create cache client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			log.Error("Error closing cache client", "error", err)
		}
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer waitCancel()
	if err := redisCache.WaitForConnection(waitCtx); err != nil {
		log.Error("Failed to connect to cache", "error", err)
		os.Exit(1)
	}

	// Progress store
	progressStore, err := store.NewRedisStore(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create progress store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := progressStore.Close(); err != nil {
			log.Error("Error closing progress store", "error", err)
		}
	}()
	log.Info("Progress store initialized successfully")

	// Ingest queue and broadcaster share one client
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	eventQueue := queue.NewEventQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)

	condCache := cache.NewConditionCache(redisCache, cache.Options{
		Tier1TTL: cfg.CacheTier1TTL,
		Tier2TTL: cfg.CacheTier2TTL,
	}, log)

	eng := engine.New(engine.Options{
		Pipeline: pipeline.Config{
			Partitions:     cfg.Partitions,
			BufferSize:     cfg.BufferSize,
			PublishTimeout: cfg.PublishTimeout,
		},
		PoolSize:         cfg.PoolSize,
		EvalTimeout:      cfg.EvalTimeout,
		ExpensiveCost:    cfg.ExpensiveCost,
		SnapshotInterval: cfg.SnapshotInterval,
	}, progressStore, condCache, broadcaster, log)

	for _, obj := range content.Objectives {
		if err := eng.RegisterObjective(obj); err != nil {
			log.Error("Failed to register objective", "error", err)
			os.Exit(1)
		}
	}
	for name, cond := range content.Conditions {
		if err := eng.RegisterCondition(name, cond); err != nil {
			log.Error("Failed to register condition", "error", err)
			os.Exit(1)
		}
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if err := eng.Start(runCtx); err != nil {
		log.Error("Failed to start engine", "error", err)
		os.Exit(1)
	}

	// Ingest loop: external facts come in on the Redis events list and
	// go out through the pipeline, which owns per-actor ordering.
	go func() {
		for {
			ev, ok, err := eventQueue.BlockingDequeue(runCtx, dequeueTimeout)
			if err != nil {
				if runCtx.Err() != nil {
					return
				}
				log.Error("Error dequeuing event", "error", err)
				time.Sleep(time.Second)
				continue
			}
			if !ok {
				continue
			}

			// Retry on backpressure rather than re-enqueueing: putting
			// the event back on the queue tail would reorder it behind
			// later events for the same actor.
			for {
				err := eng.Publish(runCtx, ev)
				if err == nil {
					break
				}
				if errors.Is(err, pipeline.ErrBufferFull) {
					log.Warn("Pipeline backpressure, retrying publish",
						"event_id", ev.ID.String(),
						"actor_id", ev.ActorID)
					continue
				}
				if runCtx.Err() != nil {
					return
				}
				log.Error("Failed to publish event", "error", err)
				break
			}
		}
	}()

	log.Info("Engine started, waiting for events...")

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Engine shutdown signal received")

	runCancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := eng.Stop(stopCtx); err != nil {
		log.Error("Engine shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("Engine exited")
}
