package flow

import (
	"context"
	"fmt"
	"sync"
)

// ReplayConfig configures a Replay.
type ReplayConfig struct {
	// Replay is how many past values a new subscriber receives first.
	Replay int
	// ExtraBuffer adds per-subscriber queue room beyond Replay.
	ExtraBuffer int
	// Overflow applies when a subscriber's queue is full.
	Overflow Overflow
}

func (c ReplayConfig) Validate() error {
	if c.Replay < 0 {
		return fmt.Errorf("%w: replay must be >= 0, got %d", ErrInvalidConfig, c.Replay)
	}
	if c.ExtraBuffer < 0 {
		return fmt.Errorf("%w: extra buffer must be >= 0, got %d", ErrInvalidConfig, c.ExtraBuffer)
	}
	if !c.Overflow.valid() {
		return fmt.Errorf("%w: unknown overflow policy %s", ErrInvalidConfig, c.Overflow)
	}
	return nil
}

// queueLimit is the per-subscriber capacity. A zero-capacity config still
// gets one slot; there is no rendezvous hand-off.
func (c ReplayConfig) queueLimit() int {
	return max(1, c.Replay+c.ExtraBuffer)
}

// Replay broadcasts every emitted value to all subscribers, in emission
// order, and keeps the last Replay values for subscribers that join later.
//
// With the default Suspend policy Emit waits for each slow subscriber, so
// no subscriber ever misses a value emitted while it was subscribed.
type Replay[T any] struct {
	cfg ReplayConfig

	// emitMu serializes emitters so subscribers observe one order.
	emitMu sync.Mutex

	mu      sync.Mutex
	buf     []T
	subs    []*Subscription[T]
	emitted uint64
}

func NewReplay[T any](cfg ReplayConfig) (*Replay[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Replay[T]{
		cfg: cfg,
		buf: make([]T, 0, cfg.Replay),
	}, nil
}

// MustNewReplay is NewReplay that panics on invalid config.
func MustNewReplay[T any](cfg ReplayConfig) *Replay[T] {
	r, err := NewReplay[T](cfg)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Replay[T]) Config() ReplayConfig { return r.cfg }

// Emit records v in the replay buffer and delivers it to every current
// subscriber.
//
// Under Suspend, Emit blocks while a subscriber's queue is full. If ctx ends
// first, Emit returns ctx.Err() and subscribers not yet reached miss v; v
// stays in the replay buffer.
func (r *Replay[T]) Emit(ctx context.Context, v T) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	if r.cfg.Replay > 0 {
		if len(r.buf) == r.cfg.Replay {
			var zero T
			r.buf[0] = zero
			copy(r.buf, r.buf[1:])
			r.buf = r.buf[:len(r.buf)-1]
		}
		r.buf = append(r.buf, v)
	}
	r.emitted++
	subs := make([]*Subscription[T], len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		if err := s.deliver(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe returns a subscription that first yields the buffered replay
// values (oldest first), then every later emission.
func (r *Replay[T]) Subscribe() *Subscription[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := newSubscription(r.cfg.queueLimit(), r.cfg.Overflow, r.buf)
	s.detach = func() { r.remove(s) }
	r.subs = append(r.subs, s)
	return s
}

func (r *Replay[T]) remove(s *Subscription[T]) {
	r.mu.Lock()
	r.subs = removeSub(r.subs, s)
	r.mu.Unlock()
}

// ReplayCache returns a copy of the buffered values, oldest first.
func (r *Replay[T]) ReplayCache() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.buf...)
}

// ResetReplayCache empties the replay buffer. Subscribers are unaffected.
func (r *Replay[T]) ResetReplayCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.buf = r.buf[:0]
}

func (r *Replay[T]) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Emitted counts Emit calls.
func (r *Replay[T]) Emitted() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.emitted
}
