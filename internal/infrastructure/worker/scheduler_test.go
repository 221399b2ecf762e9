package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu   sync.Mutex
	full int
	fast int
	err  error
}

func (c *countingRefresher) Refresh(_ context.Context, forceFull bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if forceFull {
		c.full++
	} else {
		c.fast++
	}
	return c.err
}

func (c *countingRefresher) counts() (full, fast int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.full, c.fast
}

func TestScheduler_RunsInitialFullCycle(t *testing.T) {
	t.Parallel()
	r := &countingRefresher{}
	s := &Scheduler{Refresher: r, FastEvery: time.Hour, SlowEvery: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()

	require.Eventually(t, func() bool {
		full, _ := r.counts()
		return full == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestScheduler_FastTicksAreIncremental(t *testing.T) {
	t.Parallel()
	r := &countingRefresher{}
	s := &Scheduler{Refresher: r, FastEvery: 20 * time.Millisecond, SlowEvery: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()

	require.Eventually(t, func() bool {
		_, fast := r.counts()
		return fast >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	full, _ := r.counts()
	require.Equal(t, 1, full) // only the warmup cycle was full
}

func TestScheduler_FailedCycleDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	r := &countingRefresher{err: errors.New("provider down")}
	s := &Scheduler{Refresher: r, FastEvery: 20 * time.Millisecond, SlowEvery: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { s.Start(ctx); close(done) }()

	require.Eventually(t, func() bool {
		_, fast := r.counts()
		return fast >= 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
