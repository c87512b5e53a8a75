package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/qntx/rews/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRunsAfterDelay(t *testing.T) {
	t.Parallel()

	s := scheduler.New()
	t.Cleanup(func() { _ = s.Shutdown() })

	start := time.Now()
	fired := make(chan time.Duration, 1)

	require.NoError(t, s.Schedule(50*time.Millisecond, func() { fired <- time.Since(start) }))
	assert.Equal(t, 1, s.Pending())

	select {
	case elapsed := <-fired:
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}

	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTasksRunInOrder(t *testing.T) {
	t.Parallel()

	s := scheduler.New()
	t.Cleanup(func() { _ = s.Shutdown() })

	order := make(chan int, 3)
	for i := range 3 {
		require.NoError(t, s.Schedule(time.Millisecond, func() { order <- i }))
	}

	for want := range 3 {
		select {
		case got := <-order:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("task did not fire")
		}
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	s := scheduler.New()
	t.Cleanup(func() { _ = s.Shutdown() })

	var fired atomic.Int32

	require.NoError(t, s.Schedule(50*time.Millisecond, func() { fired.Add(1) }))
	require.NoError(t, s.Schedule(50*time.Millisecond, func() { fired.Add(1) }))
	s.CancelAll()
	assert.Equal(t, 0, s.Pending(), "cancelled tasks stop counting at once")

	// Tasks scheduled after the cancel still run.
	after := make(chan struct{})
	require.NoError(t, s.Schedule(10*time.Millisecond, func() { close(after) }))

	select {
	case <-after:
	case <-time.After(2 * time.Second):
		t.Fatal("task scheduled after CancelAll did not fire")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, 0, s.Pending())
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	s := scheduler.New(scheduler.WithJoinTimeout(time.Second))

	var fired atomic.Int32

	require.NoError(t, s.Schedule(50*time.Millisecond, func() { fired.Add(1) }))
	require.NoError(t, s.Shutdown())
	assert.True(t, s.Closed())

	require.ErrorIs(t, s.Schedule(0, func() { fired.Add(1) }), scheduler.ErrClosed)
	require.NoError(t, s.Shutdown(), "second shutdown is a no-op")

	s.CancelAll()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestShutdownJoinTimeout(t *testing.T) {
	t.Parallel()

	s := scheduler.New(scheduler.WithJoinTimeout(20 * time.Millisecond))

	running := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, s.Schedule(0, func() {
		close(running)
		<-release
	}))

	<-running
	require.ErrorIs(t, s.Shutdown(), scheduler.ErrJoinTimeout)
	close(release)
}

func TestQueueFull(t *testing.T) {
	t.Parallel()

	s := scheduler.New(scheduler.WithQueueSize(1))
	t.Cleanup(func() { _ = s.Shutdown() })

	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, s.Schedule(0, func() {
		close(started)
		<-block
	}))
	<-started

	require.NoError(t, s.Schedule(time.Minute, func() {}))
	require.ErrorIs(t, s.Schedule(time.Minute, func() {}), scheduler.ErrQueueFull)

	close(block)
}

func TestScheduleNilFunc(t *testing.T) {
	t.Parallel()

	s := scheduler.New()
	t.Cleanup(func() { _ = s.Shutdown() })

	require.NoError(t, s.Schedule(time.Millisecond, nil))
	assert.Equal(t, 0, s.Pending())
}
