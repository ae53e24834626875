// Package dispatch serializes work per key. Jobs submitted for the same key
// run one at a time in submission order; jobs for different keys run in
// parallel. A caller waits a bounded time for its result, but a job that has
// been accepted always runs to completion even if its caller stops waiting.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrWaitTimeout means the caller stopped waiting. The job may still
	// complete server-side; the outcome is unknown, not rejected.
	ErrWaitTimeout = errors.New("timed out waiting for queued request")

	// ErrQueueFull means the per-key queue rejected the submission outright.
	ErrQueueFull = errors.New("request queue is full")

	// ErrClosed means the dispatcher is shutting down.
	ErrClosed = errors.New("dispatcher is closed")
)

type job struct {
	run func()
}

type queue struct {
	ch chan job
}

type Config struct {
	QueueLen    int           // per-key queue capacity
	Wait        time.Duration // how long a caller waits for its result
	WorkerIdle  time.Duration // idle time before a per-key worker retires
}

type Dispatcher struct {
	mu     sync.Mutex
	queues map[int64]*queue
	wg     sync.WaitGroup
	closed bool
	cfg    Config
}

func New(cfg Config) *Dispatcher {
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 64
	}

	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}

	if cfg.WorkerIdle <= 0 {
		cfg.WorkerIdle = 30 * time.Second
	}

	return &Dispatcher{
		queues: make(map[int64]*queue),
		cfg:    cfg,
	}
}

type result[T any] struct {
	val T
	err error
}

// Do enqueues fn on key's queue and waits for its result. The wait is bounded
// by the dispatcher's wait limit and by ctx; fn itself runs on a context
// detached from the caller's cancellation, so an admission that has entered
// its critical section is never cut short mid-flight.
func Do[T any](ctx context.Context, d *Dispatcher, key int64, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	done := make(chan result[T], 1)
	jobCtx := context.WithoutCancel(ctx)

	err := d.submit(key, func() {
		v, err := fn(jobCtx)
		done <- result[T]{val: v, err: err}
	})
	if err != nil {
		return zero, err
	}

	timer := time.NewTimer(d.cfg.Wait)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, ErrWaitTimeout
	}
}

func (d *Dispatcher) submit(key int64, run func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	q, ok := d.queues[key]
	if !ok {
		q = &queue{ch: make(chan job, d.cfg.QueueLen)}
		d.queues[key] = q
		d.wg.Add(1)
		go d.worker(key, q)
	}

	select {
	case q.ch <- job{run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// worker drains one key's queue in FIFO order. An idle worker retires and
// removes itself from the map; the removal re-checks the queue under the
// dispatcher lock so a submission racing the retirement is never lost.
func (d *Dispatcher) worker(key int64, q *queue) {
	defer d.wg.Done()

	idle := time.NewTimer(d.cfg.WorkerIdle)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-q.ch:
			if !ok {
				return
			}
			j.run()

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.cfg.WorkerIdle)
		case <-idle.C:
			d.mu.Lock()
			if len(q.ch) > 0 {
				d.mu.Unlock()
				idle.Reset(d.cfg.WorkerIdle)
				continue
			}
			if d.queues[key] == q {
				delete(d.queues, key)
			}
			d.mu.Unlock()
			return
		}
	}
}

// Close stops accepting work, lets queued jobs finish, and waits for all
// workers up to the context deadline.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	for key, q := range d.queues {
		close(q.ch)
		delete(d.queues, key)
	}
	queuesDrained := make(chan struct{})
	d.mu.Unlock()

	go func() {
		d.wg.Wait()
		close(queuesDrained)
	}()

	select {
	case <-queuesDrained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
