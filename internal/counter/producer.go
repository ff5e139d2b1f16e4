package counter

import (
	"context"
	"sync/atomic"
	"time"

	"eventflow/internal/eventbus"
	"eventflow/internal/runtime/scope"
	logx "eventflow/pkg/logx"
)

// DefaultDelay is how long Execute waits before dispatching.
const DefaultDelay = time.Second

// Dispatcher is the part of the bus the producer needs.
type Dispatcher interface {
	Dispatch(a eventbus.Action) error
}

// Producer issues counter actions after a delay.
//
// Every Execute takes its own counter value up front, so values are
// distinct and increase in call order regardless of concurrency. Pending
// dispatches belong to the producer's scope: Close (or cancelling the
// parent context) drops them.
type Producer struct {
	log   logx.Logger
	bus   Dispatcher
	scope *scope.Scope

	counter atomic.Int64
	delay   atomic.Int64 // time.Duration
	pending atomic.Int64

	dispatched atomic.Uint64
	canceled   atomic.Uint64
}

func NewProducer(parent context.Context, bus Dispatcher, delay time.Duration, log logx.Logger) *Producer {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Producer{
		log:   log,
		bus:   bus,
		scope: scope.New(parent, scope.WithLogger(log)),
	}
	p.SetDelay(delay)
	return p
}

// SetDelay changes the delay for later Execute calls. Negative means zero.
func (p *Producer) SetDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.delay.Store(int64(d))
}

func (p *Producer) Delay() time.Duration { return time.Duration(p.delay.Load()) }

// Execute schedules one counter action and returns its count.
// It returns -1 if the producer scope already ended.
func (p *Producer) Execute() int {
	if p.scope.Ended() {
		return -1
	}
	n := int(p.counter.Add(1) - 1)
	delay := p.Delay()

	p.pending.Add(1)
	ok := p.scope.Go("producer.execute", func(ctx context.Context) error {
		defer p.pending.Add(-1)
		return p.dispatchAfter(ctx, n, delay)
	})
	if !ok {
		p.pending.Add(-1)
		p.canceled.Add(1)
		return -1
	}
	p.log.Debug("action scheduled", logx.Int("count", n), logx.Duration("delay", delay))
	return n
}

func (p *Producer) dispatchAfter(ctx context.Context, n int, delay time.Duration) error {
	if delay > 0 {
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			p.canceled.Add(1)
			p.log.Debug("action canceled", logx.Int("count", n))
			return nil
		case <-tmr.C:
		}
	}
	if ctx.Err() != nil {
		p.canceled.Add(1)
		return nil
	}
	if err := p.bus.Dispatch(eventbus.CounterAction{Count: n}); err != nil {
		p.log.Warn("dispatch failed", logx.Int("count", n), logx.Err(err))
		return err
	}
	p.dispatched.Add(1)
	return nil
}

// Pending returns the number of actions waiting for their delay.
func (p *Producer) Pending() int { return int(p.pending.Load()) }

// Dispatched returns the number of actions handed to the bus.
func (p *Producer) Dispatched() uint64 { return p.dispatched.Load() }

// Canceled returns the number of actions dropped because the scope ended.
func (p *Producer) Canceled() uint64 { return p.canceled.Load() }

// Close ends the producer scope, dropping pending actions, and waits for
// its goroutines (bounded by ctx).
func (p *Producer) Close(ctx context.Context) error {
	return p.scope.Stop(ctx)
}
