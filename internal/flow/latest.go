package flow

import "sync"

// Latest holds one current value and pushes every change to subscribers.
//
// Each subscription has a single conflating slot: if several Sets happen
// before a subscriber reads, it only sees the most recent one. Set never
// blocks.
type Latest[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	equal   func(a, b T) bool
	subs    []*Subscription[T]
}

type LatestOption[T any] func(*Latest[T])

// WithEqual makes Set a no-op when eq(current, next) is true.
func WithEqual[T any](eq func(a, b T) bool) LatestOption[T] {
	return func(c *Latest[T]) { c.equal = eq }
}

// DistinctUntilChanged makes Set a no-op for a value equal to the current one.
func DistinctUntilChanged[T comparable]() LatestOption[T] {
	return WithEqual(func(a, b T) bool { return a == b })
}

func NewLatest[T any](initial T, opts ...LatestOption[T]) *Latest[T] {
	c := &Latest[T]{value: initial}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Latest[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Version counts accepted Sets.
func (c *Latest[T]) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Set replaces the current value. It reports false if the equality option
// suppressed the update.
func (c *Latest[T]) Set(v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(v)
}

// Update atomically replaces the current value with fn(current) and returns
// the value now held.
func (c *Latest[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(fn(c.value))
	return c.value
}

func (c *Latest[T]) setLocked(v T) bool {
	if c.equal != nil && c.equal(c.value, v) {
		return false
	}
	c.value = v
	c.version++
	for _, s := range c.subs {
		s.offer(v)
	}
	return true
}

// Subscribe returns a subscription whose first element is the current value.
func (c *Latest[T]) Subscribe() *Subscription[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := newSubscription(1, DropOldest, []T{c.value})
	s.detach = func() { c.remove(s) }
	c.subs = append(c.subs, s)
	return s
}

func (c *Latest[T]) remove(s *Subscription[T]) {
	c.mu.Lock()
	c.subs = removeSub(c.subs, s)
	c.mu.Unlock()
}

func (c *Latest[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
