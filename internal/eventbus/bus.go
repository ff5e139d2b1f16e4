package eventbus

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"eventflow/internal/mainloop"
	logx "eventflow/pkg/logx"
)

var ErrStopped = errors.New("eventbus stopped")

// Listener handles dispatched actions on the bus delivery context.
//
// Listeners are registered and unregistered by identity, so register
// pointer values (or use ListenerFunc).
type Listener interface {
	OnAction(a Action) error
}

type funcListener struct {
	fn func(Action) error
}

func (l *funcListener) OnAction(a Action) error { return l.fn(a) }

// ListenerFunc wraps fn into a Listener with a stable identity.
func ListenerFunc(fn func(Action) error) Listener {
	return &funcListener{fn: fn}
}

// Bus fans actions out to registered listeners.
//
// Contract:
//   - Dispatch never blocks; delivery happens later on the executor.
//   - Fan-outs run one at a time, in dispatch order, and visit listeners in
//     registration order.
//   - The registry is read at delivery time: a listener released before its
//     turn is skipped, one registered before the fan-out starts is included.
//   - Registering the same listener twice delivers twice.
//   - A failing listener (error or panic) is reported to the FailureSink and
//     does not affect the others.
type Bus struct {
	exec mainloop.Executor
	sink FailureSink
	log  logx.Logger

	mu      sync.RWMutex
	entries []*entry

	seq        atomic.Uint64
	dispatched atomic.Uint64
}

type entry struct {
	id     uint64
	l      Listener
	active atomic.Bool
}

type Option func(*Bus)

func WithFailureSink(sink FailureSink) Option {
	return func(b *Bus) { b.sink = sink }
}

func WithLogger(log logx.Logger) Option {
	return func(b *Bus) { b.log = log }
}

// New returns a bus delivering on exec.
func New(exec mainloop.Executor, opts ...Option) *Bus {
	b := &Bus{exec: exec}
	for _, o := range opts {
		o(b)
	}
	if b.log.IsZero() {
		b.log = logx.Nop()
	}
	if b.sink == nil {
		b.sink = NewLogSink(b.log, 0)
	}
	return b
}

// Registration is the handle returned by Register.
// Release detaches exactly this registration; it is idempotent.
type Registration struct {
	bus  *Bus
	e    *entry
	once sync.Once
}

func (r *Registration) Release() {
	if r == nil || r.bus == nil {
		return
	}
	r.once.Do(func() { r.bus.remove(r.e) })
}

// Active reports whether the registration still receives actions.
func (r *Registration) Active() bool {
	return r != nil && r.e != nil && r.e.active.Load()
}

func (b *Bus) Register(l Listener) *Registration {
	if l == nil {
		return &Registration{}
	}
	e := &entry{id: b.seq.Add(1), l: l}
	e.active.Store(true)

	b.mu.Lock()
	b.entries = append(b.entries, e)
	n := len(b.entries)
	b.mu.Unlock()

	b.log.Debug("listener registered", logx.Uint64("id", e.id), logx.Int("listeners", n))
	return &Registration{bus: b, e: e}
}

// Unregister removes the earliest registration of l. No-op if absent.
// Lookup and removal happen under one lock, so concurrent calls each
// remove a distinct registration.
func (b *Bus) Unregister(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	var found *entry
	for _, e := range b.entries {
		if e.active.Load() && sameListener(e.l, l) {
			found = e
			break
		}
	}
	n := b.removeLocked(found)
	b.mu.Unlock()

	if found != nil {
		b.log.Debug("listener unregistered", logx.Uint64("id", found.id), logx.Int("listeners", n))
	}
}

func (b *Bus) remove(target *entry) {
	if target == nil {
		return
	}
	b.mu.Lock()
	n := b.removeLocked(target)
	b.mu.Unlock()

	b.log.Debug("listener unregistered", logx.Uint64("id", target.id), logx.Int("listeners", n))
}

// removeLocked deactivates target and splices it out. b.mu must be held.
// Deactivation makes an in-flight fan-out skip it even if it already took
// its snapshot.
func (b *Bus) removeLocked(target *entry) int {
	if target == nil {
		return len(b.entries)
	}
	target.active.Store(false)
	for i, e := range b.entries {
		if e == target {
			copy(b.entries[i:], b.entries[i+1:])
			b.entries[len(b.entries)-1] = nil
			b.entries = b.entries[:len(b.entries)-1]
			break
		}
	}
	return len(b.entries)
}

// Len returns the number of registrations.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Dispatched returns the number of accepted Dispatch calls.
func (b *Bus) Dispatched() uint64 { return b.dispatched.Load() }

// Dispatch schedules delivery of a to every registered listener and returns
// immediately.
func (b *Bus) Dispatch(a Action) error {
	if a == nil {
		return errors.New("eventbus: nil action")
	}
	if b.exec == nil || !b.exec.Post(func() { b.deliver(a) }) {
		b.log.Warn("dispatch refused; delivery context stopped", logx.String("action", a.ActionName()))
		return ErrStopped
	}
	b.dispatched.Add(1)
	return nil
}

func (b *Bus) deliver(a Action) {
	b.mu.RLock()
	snap := make([]*entry, len(b.entries))
	copy(snap, b.entries)
	b.mu.RUnlock()

	for _, e := range snap {
		if !e.active.Load() {
			continue
		}
		b.invoke(e, a)
	}
}

func (b *Bus) invoke(e *entry, a Action) {
	defer func() {
		if r := recover(); r != nil {
			b.sink.ReportFailure(Failure{
				Action:   a,
				Listener: e.l,
				Err:      fmt.Errorf("listener panicked: %v", r),
				Panic:    r,
				Stack:    string(debug.Stack()),
				At:       time.Now(),
			})
		}
	}()
	if err := e.l.OnAction(a); err != nil {
		b.sink.ReportFailure(Failure{
			Action:   a,
			Listener: e.l,
			Err:      err,
			At:       time.Now(),
		})
	}
}

// sameListener compares listener identities without panicking on
// uncomparable dynamic types.
func sameListener(a, b Listener) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
