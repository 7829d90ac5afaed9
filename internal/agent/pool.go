package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/nanoagent/internal/logging"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool runs background tasks with bounded concurrency. Failures are handed to
// the task's completion handler and logged; they never reach the submitter.
type Pool struct {
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool running at most workers tasks at once.
func NewPool(workers int, log *logging.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    make(chan struct{}, workers),
		ctx:    ctx,
		cancel: cancel,
		log:    log.Sub("pool"),
	}
}

// Task is a handle on submitted work.
type Task struct {
	Name   string
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Done is closed once the task and its completion handler have finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's result. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }

// Cancel cancels the task's context. A task still waiting for a worker slot
// never starts.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit schedules fn without blocking. timeout bounds the run (0 means no
// limit). onDone, if non-nil, receives the result, including recovered panics.
func (p *Pool) Submit(name string, timeout time.Duration, fn func(ctx context.Context) error, onDone func(error)) (*Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	ctx, cancel := context.WithCancel(p.ctx)
	t := &Task{Name: name, done: make(chan struct{}), cancel: cancel}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(t.done)
		defer cancel()

		t.err = p.run(ctx, timeout, fn)
		if t.err != nil {
			p.log.Warn().Err(t.err).Str("task", name).Msg("background task failed")
		}
		if onDone != nil {
			onDone(t.err)
		}
	}()
	return t, nil
}

func (p *Pool) run(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) (err error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Close cancels every pending and running task and waits for them to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
