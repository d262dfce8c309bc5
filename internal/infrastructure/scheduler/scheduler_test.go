package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunner_Register(t *testing.T) {
	r := NewRunner(DefaultConfig(), zaptest.NewLogger(t))
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, r.Register(Job{Name: "", Interval: time.Second, Run: noop}), ErrInvalidConfig)
	assert.ErrorIs(t, r.Register(Job{Name: "a", Interval: 0, Run: noop}), ErrInvalidConfig)
	assert.ErrorIs(t, r.Register(Job{Name: "a", Interval: time.Second}), ErrInvalidConfig)

	require.NoError(t, r.Register(Job{Name: "a", Interval: time.Second, Run: noop}))
	assert.ErrorIs(t, r.Register(Job{Name: "a", Interval: time.Second, Run: noop}), ErrDuplicateJob)

	states := r.Snapshot()
	require.Len(t, states, 1)
	assert.Equal(t, JobStatusPending, states[0].Status)
}

func TestRunner_RunsJobsUntilCancelled(t *testing.T) {
	r := NewRunner(Config{JobTimeout: time.Second}, zaptest.NewLogger(t))

	var okRuns, failRuns atomic.Int32
	require.NoError(t, r.Register(Job{Name: "ok", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		okRuns.Add(1)
		return nil
	}}))
	require.NoError(t, r.Register(Job{Name: "fail", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		failRuns.Add(1)
		return errors.New("gateway down")
	}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return okRuns.Load() >= 3 && failRuns.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, r.Register(Job{Name: "late", Interval: time.Second, Run: func(context.Context) error { return nil }}), ErrRunnerStarted)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}

	states := r.Snapshot()
	require.Len(t, states, 2)
	assert.Equal(t, "ok", states[0].Name)
	assert.GreaterOrEqual(t, states[0].Runs, 3)
	assert.Zero(t, states[0].Failures)
	assert.Equal(t, "fail", states[1].Name)
	assert.Equal(t, states[1].Runs, states[1].Failures)
	assert.Equal(t, "gateway down", states[1].LastError)
}

func TestRunner_NeverOverlapsAJob(t *testing.T) {
	r := NewRunner(Config{JobTimeout: time.Second}, zaptest.NewLogger(t))

	var active, maxActive, runs atomic.Int32
	require.NoError(t, r.Register(Job{Name: "slow", Interval: time.Millisecond, Run: func(context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		runs.Add(1)
		return nil
	}}))

	startRunner(t, r)

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestRunner_TimeoutAndPanicAreContained(t *testing.T) {
	r := NewRunner(Config{JobTimeout: 20 * time.Millisecond}, zaptest.NewLogger(t))

	var timedOut, panicked atomic.Int32
	require.NoError(t, r.Register(Job{Name: "stuck", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		timedOut.Add(1)
		return ctx.Err()
	}}))
	require.NoError(t, r.Register(Job{Name: "panics", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		panicked.Add(1)
		panic("boom")
	}}))

	startRunner(t, r)

	require.Eventually(t, func() bool { return timedOut.Load() >= 2 && panicked.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	states := r.Snapshot()
	assert.Contains(t, states[1].LastError, "panic: boom")
}

// startRunner runs r until the test ends and waits for it to stop
func startRunner(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}
