package counter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"eventflow/internal/eventbus"
	"eventflow/internal/flow"
	"eventflow/internal/mainloop"
	"eventflow/internal/runtime/scope"
	logx "eventflow/pkg/logx"
)

// InitialCount is the sentinel held before the first action arrives.
const InitialCount = -99

type Config struct {
	Initial int
	Shared  flow.ReplayConfig
}

// DefaultConfig mirrors the demo: sentinel initial value, zero replay.
func DefaultConfig() Config {
	return Config{Initial: InitialCount}
}

type State int32

const (
	Active State = iota
	Cleared
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Cleared:
		return "cleared"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Store listens on the bus and mirrors the latest counter into its
// primitives:
//   - Live: latest value, every Set notifies
//   - State: latest value, equal values are not re-notified
//   - Shared: broadcast with configurable replay
//
// OnAction never blocks the delivery context: Shared emits are queued on
// the store's own serial emitter, so a subscriber suspended on Shared
// delays neither other bus listeners nor the latest-value cells.
//
// Store is ACTIVE from NewStore until Clear; Clear is terminal.
type Store struct {
	log logx.Logger

	live   *flow.Latest[int]
	state  *flow.Latest[int]
	shared *flow.Replay[int]

	// sc owns the emitter goroutine and bounds suspended emits; ended by Clear.
	sc      *scope.Scope
	emitter *mainloop.Loop

	regMu sync.Mutex
	reg   *eventbus.Registration

	st      atomic.Int32
	handled atomic.Uint64
}

func NewStore(bus *eventbus.Bus, cfg Config, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	shared, err := flow.NewReplay[int](cfg.Shared)
	if err != nil {
		return nil, fmt.Errorf("store shared flow: %w", err)
	}
	s := &Store{
		log:     log,
		live:    flow.NewLatest(cfg.Initial),
		state:   flow.NewLatest(cfg.Initial, flow.DistinctUntilChanged[int]()),
		shared:  shared,
		sc:      scope.New(context.Background(), scope.WithLogger(log)),
		emitter: mainloop.New(log.With(logx.String("loop", "store.emit"))),
	}
	s.sc.Go("store.emit", s.emitter.Run)
	s.st.Store(int32(Active))
	if bus != nil {
		s.reg = bus.Register(s)
	}
	s.log.Debug("store active",
		logx.Int("initial", cfg.Initial),
		logx.Int("replay", cfg.Shared.Replay),
		logx.Int("extra_buffer", cfg.Shared.ExtraBuffer),
		logx.String("overflow", cfg.Shared.Overflow.String()),
	)
	return s, nil
}

func (s *Store) Live() *flow.Latest[int]   { return s.live }
func (s *Store) State() *flow.Latest[int]  { return s.state }
func (s *Store) Shared() *flow.Replay[int] { return s.shared }

// Handled counts counter actions applied.
func (s *Store) Handled() uint64 { return s.handled.Load() }

func (s *Store) Lifecycle() State { return State(s.st.Load()) }

func (s *Store) Cleared() bool { return s.Lifecycle() == Cleared }

// OnAction implements eventbus.Listener.
func (s *Store) OnAction(a eventbus.Action) error {
	if s.Cleared() {
		return nil
	}
	switch act := a.(type) {
	case eventbus.CounterAction:
		n := act.Count
		s.live.Set(n)
		s.state.Set(n)
		ctx := s.sc.Context()
		if !s.emitter.Post(func() { s.emit(ctx, n) }) {
			return fmt.Errorf("emit count %d: %w", n, mainloop.ErrStopped)
		}
		s.handled.Add(1)
		s.log.Trace("count applied", logx.Int("count", n))
		return nil
	default:
		// unknown variants are ignored
		return nil
	}
}

func (s *Store) emit(ctx context.Context, n int) {
	if err := s.shared.Emit(ctx, n); err != nil && ctx.Err() == nil {
		s.log.Warn("shared emit failed", logx.Int("count", n), logx.Err(err))
	}
}

// Flush blocks until every Shared emit queued before the call completed.
func (s *Store) Flush(ctx context.Context) error { return s.emitter.Flush(ctx) }

// Clear unregisters from the bus and ends the store scope, releasing a
// suspended emit. Queued emits are dropped. Only the first call has an
// effect.
func (s *Store) Clear() {
	if !s.st.CompareAndSwap(int32(Active), int32(Cleared)) {
		return
	}
	s.regMu.Lock()
	reg := s.reg
	s.reg = nil
	s.regMu.Unlock()
	if reg != nil {
		reg.Release()
	}
	s.sc.Cancel()
	s.emitter.Close()
	s.log.Debug("store cleared", logx.Uint64("handled", s.handled.Load()))
}

// Wait blocks until the emitter goroutine exited (bounded by ctx).
func (s *Store) Wait(ctx context.Context) error { return s.sc.Wait(ctx) }
