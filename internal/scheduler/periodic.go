package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Periodic runs a task on an interval until stopped. Tasks receive a
// context and are expected to return promptly on cancellation.
type Periodic struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPeriodic(name string, interval time.Duration, task func(ctx context.Context), logger *slog.Logger) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Start begins the periodic loop. Calling Start twice is a bug; the
// second loop would double-run the task.
func (p *Periodic) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.logger.Debug("Periodic task started", "name", p.name, "interval", p.interval)
		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Periodic task stopped", "name", p.name)
				return
			case <-ticker.C:
				p.task(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight task to finish.
func (p *Periodic) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
