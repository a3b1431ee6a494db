// Package dispatch runs blocking operations off the interactive
// goroutine and delivers their results back to it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

type job struct {
	id   string
	name string
	run  func(ctx context.Context)
	fail func(err error)
}

// Dispatcher executes submitted jobs on a single worker goroutine,
// one at a time and in submission order. The queue is unbounded,
// so submitting never blocks. A running job can't be cancelled.
type Dispatcher struct {
	logger zerolog.Logger
	wake   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	queue   []job
	started bool
	stopped bool
}

// New creates a dispatcher. queueSize is only the initial capacity
// of the queue.
func New(logger zerolog.Logger, queueSize int) *Dispatcher {
	if queueSize < 0 {
		queueSize = 0
	}
	return &Dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		queue:  make([]job, 0, queueSize),
	}
}

// Start launches the worker. Jobs run with ctx, so cancelling it
// is visible to jobs that check it but doesn't stop the worker.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	if d.started {
		return fmt.Errorf("dispatcher is already running")
	}
	d.started = true

	go d.work(context.WithoutCancel(ctx))

	d.logger.Debug().Msg("started dispatcher")
	return nil
}

// Stop rejects new jobs and waits until the queued ones have run.
// If ctx is done first, jobs that haven't started are failed with
// ErrDispatcherStopped and the running one is left to finish on
// its own.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	if !d.started {
		queued := d.takeQueue()
		d.mu.Unlock()
		failAll(queued)
		return nil
	}
	d.mu.Unlock()
	d.signal()

	select {
	case <-d.done:
		d.logger.Debug().Msg("stopped dispatcher")
		return nil
	case <-ctx.Done():
	}

	d.mu.Lock()
	queued := d.takeQueue()
	d.mu.Unlock()
	failAll(queued)

	d.logger.Warn().
		Err(ctx.Err()).
		Int("abandoned", len(queued)).
		Msg("timed out waiting for queued jobs")
	return fmt.Errorf("abandoned %d queued jobs: %w", len(queued), ctx.Err())
}

// Done is closed once the worker has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// takeQueue must be called with mu held.
func (d *Dispatcher) takeQueue() []job {
	queued := d.queue
	d.queue = nil
	return queued
}

func failAll(jobs []job) {
	for _, j := range jobs {
		j.fail(ErrDispatcherStopped)
	}
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		j.fail(ErrDispatcherStopped)
		return
	}
	d.queue = append(d.queue, j)
	d.mu.Unlock()
	d.signal()
}

func (d *Dispatcher) next() (job, bool) {
	for {
		d.mu.Lock()
		if len(d.queue) > 0 {
			j := d.queue[0]
			d.queue[0] = job{}
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return j, true
		}
		stopped := d.stopped
		d.mu.Unlock()

		if stopped {
			return job{}, false
		}
		<-d.wake
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer close(d.done)
	for {
		j, ok := d.next()
		if !ok {
			return
		}

		start := time.Now()
		j.run(ctx)
		d.logger.Debug().
			Str("job_id", j.id).
			Str("job", j.name).
			Dur("took", time.Since(start)).
			Msg("finished job")
	}
}

// Submit queues fn and returns a future for its result.
func Submit[T any](d *Dispatcher, name string, fn func(ctx context.Context) (T, error)) *Future[T] {
	return submit(d, name, fn, nil)
}

// SubmitTo queues fn like Submit and, once it completes, posts
// onDone to loop from the worker goroutine. Callbacks therefore
// reach the loop in submission order.
func SubmitTo[T any](
	d *Dispatcher,
	loop *Loop,
	name string,
	fn func(ctx context.Context) (T, error),
	onDone func(T, error),
) *Future[T] {
	return submit(d, name, fn, func(f *Future[T]) {
		loop.Post(func() { onDone(f.value, f.err) })
	})
}

func submit[T any](
	d *Dispatcher,
	name string,
	fn func(ctx context.Context) (T, error),
	then func(f *Future[T]),
) *Future[T] {
	f := newFuture[T]()
	id := uuid.NewString()

	finish := func(value T, err error) {
		f.complete(value, err)
		if then != nil {
			then(f)
		}
	}

	d.enqueue(job{
		id:   id,
		name: name,
		run: func(ctx context.Context) {
			value, err := safeRun(ctx, fn)
			if err != nil {
				d.logger.Error().
					Err(err).
					Str("job_id", id).
					Str("job", name).
					Msg("job failed")
			}
			finish(value, err)
		},
		fail: func(err error) {
			var zero T
			finish(zero, err)
		},
	})
	return f
}

func safeRun[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}
