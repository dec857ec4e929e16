// internal/worker/pool.go
//
// Bounded pool for blocking jobs.
//
// Context
// -------
// Schema migrations hold a database connection and run for seconds.  The
// provisioning pipeline hands them to a Pool so at most `size` run at once,
// no matter how many admin requests arrive together.  Each Submit returns a
// Future the caller waits on with its own context; giving up on the Future
// does not stop the job.
//
// Notes
// -----
// • Slots are a golang.org/x/sync semaphore; a job's goroutine starts
//   immediately and parks until a slot frees.
// • A panicking job resolves its Future with an error instead of crashing
//   the process.

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker: pool closed")

// Pool runs jobs with bounded concurrency.
type Pool struct {
	sem  *semaphore.Weighted
	size int
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New returns a Pool running at most size jobs concurrently.  size < 1 is
// treated as 1.
func New(size int, log *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.L()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size, log: log}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Future is the pending result of one job.
type Future struct {
	done chan struct{}
	err  error
}

// Done is closed when the job has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx ends.  In the latter case it
// returns ctx.Err() and the job keeps running.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues fn under name.  name only appears in logs.
func (p *Pool) Submit(name string, fn func() error) (*Future, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	f := &Future{done: make(chan struct{})}
	go func() {
		defer p.wg.Done()
		defer close(f.done)

		// Background never cancels, so Acquire only returns once a slot frees.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)

		f.err = run(fn)
		if f.err != nil {
			p.log.Error("job failed", zap.String("job", name), zap.Error(f.err))
		} else {
			p.log.Debug("job done", zap.String("job", name))
		}
	}()
	return f, nil
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: job panicked: %v", r)
		}
	}()
	return fn()
}

// Close stops accepting jobs and waits for submitted ones until ctx ends.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
