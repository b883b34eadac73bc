package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/quest-engine/pkg/event"
)

var (
	// ErrNotRunning is returned when publishing to a pipeline that has
	// not been started.
	ErrNotRunning = errors.New("pipeline is not running")

	// ErrDraining is returned when publishing during shutdown. In-flight
	// events still complete.
	ErrDraining = errors.New("pipeline is draining")

	// ErrBufferFull is returned when a partition buffer stays full past
	// the publish timeout. The event is never silently dropped: the
	// caller gets the error and decides whether to retry. A synchronous
	// fallback on the calling goroutine was rejected because it would
	// break per-actor ordering while earlier events sit in the buffer.
	ErrBufferFull = errors.New("pipeline buffer full")
)

// State is the pipeline lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Consumer receives dispatched events. Delivery is at-least-once, so
// consumer logic must be idempotent per event identity.
type Consumer interface {
	HandleEvent(ctx context.Context, ev event.Event)
}

// Config holds pipeline sizing knobs.
type Config struct {
	// Partitions is the number of ordered lanes. Events are assigned by
	// actor ID hash, so all events for one actor share a lane.
	Partitions int

	// BufferSize is the per-partition buffer capacity.
	BufferSize int

	// PublishTimeout bounds how long Publish blocks on a full buffer
	// before returning ErrBufferFull.
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Partitions <= 0 {
		c.Partitions = 8
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

// Pipeline fans events out to subscribed consumers. All events for the
// same actor are processed in publish order relative to each other; events
// for different actors may be processed concurrently. One consumer
// goroutine per partition gives the per-actor ordering without any
// cross-partition coordination.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.RWMutex
	state      State
	partitions []chan event.Event
	wg         sync.WaitGroup

	consumerMu sync.RWMutex
	consumers  []Consumer
}

func New(cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg.withDefaults(),
		logger: logger,
		state:  StateStopped,
	}
}

// Subscribe registers a consumer. Subscribing while running is allowed;
// the consumer starts receiving events dispatched after registration.
func (p *Pipeline) Subscribe(c Consumer) {
	p.consumerMu.Lock()
	p.consumers = append(p.consumers, c)
	p.consumerMu.Unlock()
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Start moves the pipeline from Stopped to Running, spawning one consumer
// goroutine per partition.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStopped {
		return fmt.Errorf("cannot start pipeline in state %s", p.state)
	}
	p.state = StateStarting

	p.partitions = make([]chan event.Event, p.cfg.Partitions)
	for i := range p.partitions {
		p.partitions[i] = make(chan event.Event, p.cfg.BufferSize)
		p.wg.Add(1)
		go p.consume(i, p.partitions[i])
	}

	p.state = StateRunning
	p.logger.Info("Pipeline started",
		"partitions", p.cfg.Partitions,
		"buffer_size", p.cfg.BufferSize)
	return nil
}

// Publish routes an event to its actor's partition. It is non-blocking
// while the buffer has room; see ErrBufferFull for the backpressure
// policy.
func (p *Pipeline) Publish(ctx context.Context, ev event.Event) error {
	// The read lock is held across the send so Stop cannot close the
	// partition channels under an in-flight publish.
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch p.state {
	case StateRunning:
	case StateDraining:
		return ErrDraining
	default:
		return ErrNotRunning
	}

	ch := p.partitions[p.partition(ev.ActorID)]

	select {
	case ch <- ev:
		return nil
	default:
	}

	timer := time.NewTimer(p.cfg.PublishTimeout)
	defer timer.Stop()

	select {
	case ch <- ev:
		return nil
	case <-timer.C:
		p.logger.Warn("Publish timed out on full partition",
			"actor_id", ev.ActorID,
			"event_type", ev.Type)
		return ErrBufferFull
	case <-ctx.Done():
		return fmt.Errorf("publish cancelled: %w", ctx.Err())
	}
}

// Stop drains the pipeline: new publishes are rejected, in-flight events
// complete, then the state returns to Stopped. Stop blocks until the
// drain finishes or ctx expires.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return fmt.Errorf("cannot stop pipeline in state %s", p.state)
	}
	p.state = StateDraining
	for _, ch := range p.partitions {
		close(ch)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("pipeline drain interrupted: %w", ctx.Err())
	}

	p.mu.Lock()
	p.state = StateStopped
	p.partitions = nil
	p.mu.Unlock()

	p.logger.Info("Pipeline stopped")
	return nil
}

func (p *Pipeline) partition(actorID string) int {
	h := fnv.New32a()
	h.Write([]byte(actorID))
	return int(h.Sum32() % uint32(p.cfg.Partitions))
}

func (p *Pipeline) consume(partition int, ch <-chan event.Event) {
	defer p.wg.Done()

	for ev := range ch {
		p.dispatch(partition, ev)
	}
}

// dispatch invokes every consumer for the event. A faulting consumer is
// isolated: its panic is logged and the remaining consumers still run, so
// one bad handler never stalls other actors' events.
func (p *Pipeline) dispatch(partition int, ev event.Event) {
	p.consumerMu.RLock()
	consumers := p.consumers
	p.consumerMu.RUnlock()

	for _, c := range consumers {
		p.deliver(partition, c, ev)
	}
}

func (p *Pipeline) deliver(partition int, c Consumer, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Consumer panicked",
				"partition", partition,
				"event_id", ev.ID.String(),
				"event_type", ev.Type,
				"actor_id", ev.ActorID,
				"panic", r)
		}
	}()

	c.HandleEvent(context.Background(), ev)
}
