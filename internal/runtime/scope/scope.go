package scope

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	logx "eventflow/pkg/logx"
)

// Scope owns goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Optional cancel-on-first-error
// - Graceful stop with timeout-aware waiting
//
// Ending a scope (Cancel/Stop or parent cancellation) is how owners such as
// the store and the action producer cancel their pending work.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	// Best-effort operational counters.
	started uint64
	active  int64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}

	// mu orders wg.Add in Go against cancellation in Stop.
	mu sync.Mutex
	wg sync.WaitGroup
}

type Option func(*Scope)

// Counters exposes best-effort goroutine counters.
type Counters struct {
	Active  int64
	Started uint64
}

func WithLogger(log logx.Logger) Option {
	return func(s *Scope) { s.log = log }
}

// If enabled, the first non-nil error from any goroutine will cancel the scope context.
func WithCancelOnError(enabled bool) Option {
	return func(s *Scope) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scope) Context() context.Context { return s.ctx }

// Cancel ends the scope without waiting for goroutines to exit.
func (s *Scope) Cancel() { s.cancel() }

// Ended reports whether the scope context is done.
func (s *Scope) Ended() bool { return s.ctx.Err() != nil }

func (s *Scope) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

func (s *Scope) Counters() Counters {
	if s == nil {
		return Counters{}
	}
	return Counters{
		Active:  atomic.LoadInt64(&s.active),
		Started: atomic.LoadUint64(&s.started),
	}
}

// Go runs fn in a new goroutine owned by the scope.
// Returns false (and does not run fn) if the scope already ended.
func (s *Scope) Go(name string, fn func(ctx context.Context) error) bool {
	if fn == nil {
		return false
	}
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				if !s.log.IsZero() {
					s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				}
				s.setErr(err)
				if s.cancelOnErr {
					s.cancel()
				}
			}
		}()

		err := fn(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(fmt.Errorf("%s: %w", name, err))
			if s.cancelOnErr {
				s.cancel()
			}
		}
	}()
	return true
}

func (s *Scope) Go0(name string, fn func(ctx context.Context)) bool {
	if fn == nil {
		return false
	}
	return s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Stop ends the scope and waits for its goroutines (bounded by ctx).
func (s *Scope) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	return s.Wait(ctx)
}

func (s *Scope) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Scope) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() { s.firstErr.Store(err) })
}
