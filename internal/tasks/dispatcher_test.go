package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsEnqueuedTasks(t *testing.T) {
	d := NewDispatcher(2, 8, time.Second, zerolog.Nop())
	defer d.Shutdown()

	var ran int32
	var wg sync.WaitGroup
	wg.Add(5)
	for i := 0; i < 5; i++ {
		err := d.Enqueue(Task{Name: "count", Run: func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			wg.Done()
			return nil
		}})
		require.NoError(t, err)
	}

	wg.Wait()
	require.EqualValues(t, 5, atomic.LoadInt32(&ran))
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(1, 1, time.Second, zerolog.Nop())
	defer d.Shutdown()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(Task{Name: "block", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	// Worker is busy; one more task fits the queue, the next is dropped.
	require.NoError(t, d.Enqueue(Task{Name: "queued", Run: func(ctx context.Context) error { return nil }}))
	err := d.Enqueue(Task{Name: "dropped", Run: func(ctx context.Context) error { return nil }})
	require.ErrorIs(t, err, ErrQueueFull)

	close(release)
}

func TestDispatcherAppliesTaskTimeout(t *testing.T) {
	d := NewDispatcher(1, 4, 20*time.Millisecond, zerolog.Nop())
	defer d.Shutdown()

	done := make(chan error, 1)
	require.NoError(t, d.Enqueue(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}}))

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("task context never expired")
	}
}

func TestDispatcherRecoversFromPanicingTask(t *testing.T) {
	d := NewDispatcher(1, 4, time.Second, zerolog.Nop())
	defer d.Shutdown()

	require.NoError(t, d.Enqueue(Task{Name: "boom", Run: func(ctx context.Context) error {
		panic("kaboom")
	}}))

	// The worker must survive the panic and keep draining the queue.
	done := make(chan struct{})
	require.NoError(t, d.Enqueue(Task{Name: "after", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive the panic")
	}
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(1, 4, time.Second, zerolog.Nop())

	completed := make(chan struct{})
	require.NoError(t, d.Enqueue(Task{Name: "inflight", Run: func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		close(completed)
		return nil
	}}))

	d.Shutdown()
	select {
	case <-completed:
	default:
		t.Fatal("shutdown must wait for in-flight tasks")
	}

	err := d.Enqueue(Task{Name: "late", Run: func(ctx context.Context) error { return errors.New("never runs") }})
	require.ErrorIs(t, err, ErrQueueFull)
}
