package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Pool bounds concurrent expensive boolean evaluations. Each attempt gets
// a timeout; expiry evaluates to false (fail-closed) and logs rather than
// blocking the calling consumer indefinitely.
type Pool struct {
	sem     chan struct{}
	timeout time.Duration
	logger  *slog.Logger
}

func NewPool(size int, timeout time.Duration, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Pool{
		sem:     make(chan struct{}, size),
		timeout: timeout,
		logger:  logger,
	}
}

// Run executes fn on a bounded slot with a per-attempt timeout. Waiting
// for a slot counts against the timeout. fn must honor cancellation of
// the context it receives.
func (p *Pool) Run(ctx context.Context, label string, fn func(ctx context.Context) bool) bool {
	evalCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-evalCtx.Done():
		p.logger.Warn("Evaluation timed out waiting for worker slot", "label", label)
		return false
	}

	done := make(chan bool, 1)
	go func() {
		defer func() { <-p.sem }()
		done <- fn(evalCtx)
	}()

	select {
	case v := <-done:
		return v
	case <-evalCtx.Done():
		// The evaluation goroutine unwinds on its own: composite
		// conditions check cancellation between children.
		p.logger.Warn("Evaluation timed out",
			"label", label,
			"timeout", p.timeout)
		return false
	}
}
