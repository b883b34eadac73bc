package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicRunsTask(t *testing.T) {
	var runs atomic.Int32
	p := NewPeriodic("counter", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	}, testLogger())

	p.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	p.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(2), "task should have ticked several times")

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no ticks after Stop")
}

func TestPeriodicStopWaitsForTask(t *testing.T) {
	var finished atomic.Bool
	p := NewPeriodic("slow", 5*time.Millisecond, func(ctx context.Context) {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	}, testLogger())

	p.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	p.Stop()

	assert.True(t, finished.Load(), "Stop must wait for an in-flight task")
}

func TestPeriodicParentContextCancels(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPeriodic("cancellable", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	}, testLogger())

	p.Start(ctx)
	cancel()
	time.Sleep(30 * time.Millisecond)

	assert.LessOrEqual(t, runs.Load(), int32(1))
	p.Stop()
}
