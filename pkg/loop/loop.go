// Package loop is a small cooperative event loop for hosting a hooks
// scheduler on one goroutine.
//
// Every iteration runs three phases in order:
//
//  1. tasks: callbacks handed in with Submit, each followed by a tick
//     barrier that drains ScheduleTick callbacks until none are left;
//  2. paint: OnPaint, when the tick barrier did any work;
//  3. idle: callbacks posted with ScheduleIdle before the phase started,
//     each followed by a tick barrier.
package loop

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	// ErrLoopRunning is returned when Run is called on a loop that is running.
	ErrLoopRunning = errors.New("loop: already running")

	// ErrLoopStopped is returned when work is handed to a stopped loop.
	ErrLoopStopped = errors.New("loop: stopped")
)

// Task is a unit of work run on the loop goroutine.
type Task func()

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for recovered panics.
func WithLogger(l zerolog.Logger) Option {
	return func(lp *Loop) {
		lp.log = l
	}
}

// WithPanicHandler replaces the default handling of a panicking callback,
// which is to log it and carry on.
func WithPanicHandler(fn func(recovered any)) Option {
	return func(lp *Loop) {
		lp.onPanic = fn
	}
}

// Loop runs tasks, tick callbacks and idle callbacks on a single goroutine.
// Submit is safe to call from any goroutine; the other methods belong to the
// goroutine that drives the loop.
type Loop struct {
	// OnPaint is called once per iteration in which tick callbacks ran,
	// between the tick barrier and the idle phase.
	OnPaint func()

	mu     sync.Mutex
	tasks  []Task
	ticks  []Task
	idle   []Task
	wakeCh chan struct{}

	log     zerolog.Logger
	onPanic func(recovered any)

	running atomic.Bool
	stopped atomic.Bool
	frames  atomic.Uint64
}

// New creates a loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		wakeCh: make(chan struct{}, 1),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues task for the next iteration.
func (l *Loop) Submit(task Task) error {
	if l.stopped.Load() {
		return ErrLoopStopped
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	l.wake()
	return nil
}

// ScheduleTick queues fn for the next tick barrier.
func (l *Loop) ScheduleTick(fn func()) {
	l.mu.Lock()
	l.ticks = append(l.ticks, fn)
	l.mu.Unlock()
	l.wake()
}

// ScheduleIdle queues fn for the idle phase of the next iteration.
func (l *Loop) ScheduleIdle(fn func()) {
	l.mu.Lock()
	l.idle = append(l.idle, fn)
	l.mu.Unlock()
	l.wake()
}

// Frames returns how many times OnPaint has been reached.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

// RunOnce performs one iteration and reports whether it ran anything.
func (l *Loop) RunOnce() bool {
	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	worked := len(tasks) > 0
	painted := l.drainTicks()
	for _, task := range tasks {
		l.safeExecute(task)
		if l.drainTicks() {
			painted = true
		}
	}

	if painted {
		worked = true
		l.frames.Add(1)
		if l.OnPaint != nil {
			l.safeExecute(l.OnPaint)
		}
	}

	l.mu.Lock()
	idle := l.idle
	l.idle = nil
	l.mu.Unlock()
	for _, fn := range idle {
		worked = true
		l.safeExecute(fn)
		l.drainTicks()
	}
	return worked
}

// RunUntilIdle runs iterations until one does nothing and returns how many
// did work.
func (l *Loop) RunUntilIdle() int {
	n := 0
	for l.RunOnce() {
		n++
	}
	return n
}

// Run drives the loop until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	for {
		if l.stopped.Load() {
			return ErrLoopStopped
		}
		l.RunUntilIdle()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wakeCh:
		}
	}
}

// Stop makes Run return after the current iteration and rejects new tasks.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.wake()
}

// drainTicks runs tick callbacks until the queue stays empty.
func (l *Loop) drainTicks() bool {
	ran := false
	for {
		l.mu.Lock()
		ticks := l.ticks
		l.ticks = nil
		l.mu.Unlock()
		if len(ticks) == 0 {
			return ran
		}
		ran = true
		for _, fn := range ticks {
			l.safeExecute(fn)
		}
	}
}

func (l *Loop) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if l.onPanic != nil {
				l.onPanic(r)
				return
			}
			l.log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("loop callback panicked")
		}
	}()
	fn()
}
