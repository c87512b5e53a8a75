// Package scheduler provides a single-worker delayed-task queue.
//
// A Scheduler owns one goroutine that runs tasks from a private FIFO queue,
// each after its own delay. All pending tasks can be cancelled in one call,
// and the worker is torn down exactly once by Shutdown.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qntx/rews/util"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultQueueSize is the capacity of the private task queue.
	DefaultQueueSize = 16
	// DefaultJoinTimeout bounds how long Shutdown waits for the worker to exit.
	DefaultJoinTimeout = 100 * time.Millisecond
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrClosed is returned when scheduling on a scheduler that was shut down.
	ErrClosed = errors.New("scheduler: closed")
	// ErrQueueFull is returned when the private queue has no free slot.
	ErrQueueFull = errors.New("scheduler: queue full")
	// ErrJoinTimeout is returned by Shutdown when the worker did not exit in time.
	ErrJoinTimeout = errors.New("scheduler: worker did not exit before join timeout")
)

// --------------------------------------------------------------------------------
// Types

type task struct {
	ctx   context.Context
	gen   uint64
	delay time.Duration
	fn    func()
}

// Scheduler runs delayed tasks one at a time on a dedicated goroutine.
//
// A task's delay starts when the worker picks it up. It is safe for
// concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	ctx     context.Context // Lifetime of the worker; cancelled by Shutdown.
	cancel  context.CancelFunc
	gen     context.Context // Current generation; cancelled by CancelAll.
	genStop context.CancelFunc
	genID   uint64
	closed  bool

	tasks       chan task
	pending     atomic.Int32
	done        chan struct{}
	joinTimeout time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithQueueSize sets the capacity of the task queue. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.tasks = make(chan task, n)
		}
	}
}

// WithJoinTimeout sets how long Shutdown waits for the worker.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.joinTimeout = d
		}
	}
}

// --------------------------------------------------------------------------------
// Initialization

// New starts a scheduler worker.
func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	gen, genStop := context.WithCancel(ctx)

	s := &Scheduler{
		ctx:         ctx,
		cancel:      cancel,
		gen:         gen,
		genStop:     genStop,
		tasks:       make(chan task, DefaultQueueSize),
		done:        make(chan struct{}),
		joinTimeout: DefaultJoinTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	go s.run()

	return s
}

// --------------------------------------------------------------------------------
// Public Methods

// Schedule queues fn to run after delay.
//
// Returns ErrClosed after Shutdown and ErrQueueFull when the queue is full.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) error {
	if fn == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.pending.Add(1)

	select {
	case s.tasks <- task{ctx: s.gen, gen: s.genID, delay: delay, fn: fn}:
		return nil
	default:
		s.pending.Add(-1)

		return ErrQueueFull
	}
}

// CancelAll drops every task scheduled before the call, including one that is
// currently waiting out its delay. A task already running is not interrupted.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genStop()
	s.genID++
	s.pending.Store(0)

	if !s.closed {
		s.gen, s.genStop = context.WithCancel(s.ctx)
	}
}

// Pending reports the number of tasks queued or waiting out their delay.
func (s *Scheduler) Pending() int {
	return int(s.pending.Load())
}

// Closed reports whether Shutdown has been called.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// Shutdown cancels all pending tasks and stops the worker. It waits up to the
// join timeout for the worker to exit. Calling it again is a no-op.
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil
	}

	s.closed = true
	s.genStop()
	s.genID++
	s.pending.Store(0)
	s.cancel()
	s.mu.Unlock()

	t := time.NewTimer(s.joinTimeout)
	defer t.Stop()

	select {
	case <-s.done:
		return nil
	case <-t.C:
		return ErrJoinTimeout
	}
}

// --------------------------------------------------------------------------------
// Private Methods

// run executes queued tasks until the scheduler is shut down.
func (s *Scheduler) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-s.tasks:
			s.exec(t)
		}
	}
}

// exec waits out the task's delay and runs it unless it was cancelled.
// A task stops counting as pending once it starts running. Cancelled
// generations were already dropped from the count by CancelAll.
func (s *Scheduler) exec(t task) {
	err := util.Sleep(t.ctx, t.delay)

	s.mu.Lock()
	if t.gen == s.genID {
		s.pending.Add(-1)
	}
	s.mu.Unlock()

	if err != nil || t.ctx.Err() != nil {
		return
	}

	t.fn()
}
