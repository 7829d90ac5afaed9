package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTask(t *testing.T) {
	p := NewPool(1, silentLog())
	defer p.Close()

	var got error
	done := make(chan struct{})
	task, err := p.Submit("ok", 0, func(context.Context) error { return nil }, func(err error) {
		got = err
		close(done)
	})
	require.NoError(t, err)
	require.NoError(t, task.Wait(context.Background()))
	<-done
	assert.NoError(t, got)
}

func TestPoolReportsFailureToHandler(t *testing.T) {
	p := NewPool(1, silentLog())
	defer p.Close()

	boom := errors.New("boom")
	handled := make(chan error, 1)
	task, err := p.Submit("fail", 0, func(context.Context) error { return boom }, func(err error) { handled <- err })
	require.NoError(t, err)

	<-task.Done()
	assert.ErrorIs(t, task.Err(), boom)
	assert.ErrorIs(t, <-handled, boom)
}

func TestPoolRecoversPanic(t *testing.T) {
	p := NewPool(1, silentLog())
	defer p.Close()

	task, err := p.Submit("panic", 0, func(context.Context) error { panic("oops") }, nil)
	require.NoError(t, err)
	<-task.Done()
	assert.ErrorContains(t, task.Err(), "oops")
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2, silentLog())
	defer p.Close()

	var running, peak atomic.Int32
	release := make(chan struct{})
	var tasks []*Task
	for i := 0; i < 5; i++ {
		task, err := p.Submit("work", 0, func(context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		}, nil)
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	for _, task := range tasks {
		require.NoError(t, task.Wait(context.Background()))
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolTaskTimeout(t *testing.T) {
	p := NewPool(1, silentLog())
	defer p.Close()

	task, err := p.Submit("slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(t, err)
	<-task.Done()
	assert.ErrorIs(t, task.Err(), context.DeadlineExceeded)
}

func TestPoolTaskCancel(t *testing.T) {
	p := NewPool(1, silentLog())
	defer p.Close()

	started := make(chan struct{})
	task, err := p.Submit("cancel me", 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(t, err)
	<-started
	task.Cancel()
	<-task.Done()
	assert.ErrorIs(t, task.Err(), context.Canceled)
}

func TestPoolCloseCancelsPendingAndRunning(t *testing.T) {
	p := NewPool(1, silentLog())

	started := make(chan struct{})
	running, err := p.Submit("running", 0, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	require.NoError(t, err)
	<-started

	var ran atomic.Bool
	queued, err := p.Submit("queued", 0, func(context.Context) error {
		ran.Store(true)
		return nil
	}, nil)
	require.NoError(t, err)

	p.Close()
	assert.ErrorIs(t, running.Err(), context.Canceled)
	assert.ErrorIs(t, queued.Err(), context.Canceled)
	assert.False(t, ran.Load())

	_, err = p.Submit("late", 0, func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrPoolClosed)
}
