// Package mainloop provides the designated delivery context: a single
// goroutine that runs posted funcs one at a time, in post order.
//
// Anything that must not race with display state (bus fan-out, panel
// updates) is funnelled through a Loop, so those callbacks never need
// their own locking.
package mainloop

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	logx "eventflow/pkg/logx"
)

var ErrStopped = errors.New("mainloop stopped")

// Executor schedules fn on a delivery context.
// Post must not block; it reports false when fn will never run.
type Executor interface {
	Post(fn func()) bool
}

// ExecutorFunc adapts a func to Executor.
type ExecutorFunc func(fn func()) bool

func (f ExecutorFunc) Post(fn func()) bool { return f(fn) }

// Loop is an unbounded FIFO drained by Run.
//
// Post never blocks the caller: a slow task delays later tasks but never
// the poster.
type Loop struct {
	log logx.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	running bool

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once

	executed atomic.Uint64
	panics   atomic.Uint64
}

func New(log logx.Logger) *Loop {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loop{
		log:    log,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued, not yet started tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Executed returns the number of tasks run so far.
func (l *Loop) Executed() uint64 { return l.executed.Load() }

// Panics returns the number of tasks that panicked.
func (l *Loop) Panics() uint64 { return l.panics.Load() }

// Run drains the queue until ctx is done or Close is called.
// Tasks still queued at that point are dropped.
// Run must be called from a single goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("mainloop already running")
	}
	if l.closed {
		l.mu.Unlock()
		return ErrStopped
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.closed = true
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		l.stopOnce.Do(func() { close(l.stopCh) })
		if dropped > 0 {
			l.log.Debug("mainloop stopped with pending tasks", logx.Int("dropped", dropped))
		}
	}()

	for {
		// fast-exit so stop wins over queued work
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return nil
		default:
		}

		fn, ok := l.pop()
		if ok {
			l.exec(fn)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) exec(fn func()) {
	defer l.executed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error("mainloop task panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	fn()
}

// Flush blocks until every task posted before the call has run.
func (l *Loop) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if !l.Post(func() { close(done) }) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return ErrStopped
	}
}

// Close stops accepting tasks and makes Run return. Idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed once the loop stopped accepting work.
func (l *Loop) Done() <-chan struct{} { return l.stopCh }
