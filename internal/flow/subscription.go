package flow

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// Subscription is a live sequence of values from a Latest or Replay.
//
// Values are queued per subscription, so a slow reader never delays other
// subscribers (except through an emitter suspended under the Suspend
// policy). Close releases the subscription; after Close, queued values are
// dropped and Next returns ErrClosed.
type Subscription[T any] struct {
	mu      sync.Mutex
	queue   []T
	limit   int
	policy  Overflow
	closed  bool
	dropped uint64

	ready chan struct{} // queue became non-empty
	space chan struct{} // a value was taken
	done  chan struct{}

	detach    func()
	closeOnce sync.Once
}

func newSubscription[T any](limit int, policy Overflow, backlog []T) *Subscription[T] {
	if limit < 1 {
		limit = 1
	}
	s := &Subscription[T]{
		limit:  limit,
		policy: policy,
		ready:  make(chan struct{}, 1),
		space:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if len(backlog) > 0 {
		s.queue = append(make([]T, 0, len(backlog)), backlog...)
		notify(s.ready)
	}
	return s
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// offer queues v without blocking. It reports false only when the queue is
// full under the Suspend policy. A closed subscription accepts (and drops)
// everything.
func (s *Subscription[T]) offer(v T) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	if len(s.queue) < s.limit {
		s.queue = append(s.queue, v)
		s.mu.Unlock()
		notify(s.ready)
		return true
	}
	switch s.policy {
	case DropOldest:
		var zero T
		s.queue[0] = zero
		s.queue = append(s.queue[1:], v)
		s.dropped++
		s.mu.Unlock()
		notify(s.ready)
		return true
	case DropLatest:
		s.dropped++
		s.mu.Unlock()
		return true
	default:
		s.mu.Unlock()
		return false
	}
}

// deliver queues v, waiting for room under the Suspend policy.
// Closing the subscription releases a waiting emitter.
func (s *Subscription[T]) deliver(ctx context.Context, v T) error {
	for {
		if s.offer(v) {
			return nil
		}
		select {
		case <-s.space:
		case <-s.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscription[T]) take() (v T, ok bool, closed bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return v, false, true
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return v, false, false
	}
	v = s.queue[0]
	var zero T
	s.queue[0] = zero
	s.queue = s.queue[1:]
	more := len(s.queue) > 0
	s.mu.Unlock()

	notify(s.space)
	if more {
		notify(s.ready)
	}
	return v, true, false
}

// Next returns the next value, blocking until one is available, the
// subscription is closed (ErrClosed) or ctx ends.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		v, ok, closed := s.take()
		if closed {
			return zero, ErrClosed
		}
		if ok {
			return v, nil
		}
		select {
		case <-s.ready:
		case <-s.done:
			return zero, ErrClosed
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryNext returns the next queued value without blocking.
func (s *Subscription[T]) TryNext() (T, bool) {
	v, ok, _ := s.take()
	return v, ok
}

// All iterates values until the subscription closes or ctx ends.
func (s *Subscription[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			v, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Len returns the number of queued values.
func (s *Subscription[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Dropped returns how many values the overflow policy discarded for this
// subscription (coalesced values for a Latest subscription).
func (s *Subscription[T]) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Done is closed by Close.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Close detaches the subscription from its source. Idempotent.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		detach := s.detach
		s.detach = nil
		s.mu.Unlock()

		close(s.done)
		if detach != nil {
			detach()
		}
	})
}

// Collect calls fn for every value until the subscription closes (nil) or
// ctx ends (ctx.Err()).
func Collect[T any](ctx context.Context, s *Subscription[T], fn func(T)) error {
	for {
		v, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		fn(v)
	}
}

func removeSub[T any](subs []*Subscription[T], target *Subscription[T]) []*Subscription[T] {
	for i, s := range subs {
		if s == target {
			copy(subs[i:], subs[i+1:])
			subs[len(subs)-1] = nil
			return subs[:len(subs)-1]
		}
	}
	return subs
}
