package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	logx "eventflow/pkg/logx"
)

// Failure describes a listener that failed while handling an action.
type Failure struct {
	Action   Action
	Listener Listener
	Err      error
	Panic    any    // non-nil if the listener panicked
	Stack    string // set together with Panic
	At       time.Time
}

// FailureSink receives listener failures. It is called on the delivery
// context and must not block.
type FailureSink interface {
	ReportFailure(f Failure)
}

// FailureSinkFunc adapts a func to FailureSink.
type FailureSinkFunc func(f Failure)

func (fn FailureSinkFunc) ReportFailure(f Failure) { fn(f) }

const defaultFailureRate = 5

// LogSink logs failures, rate limited so a listener failing on every action
// can't flood the log. Suppressed reports are counted and attached to the
// next line that gets through.
type LogSink struct {
	log logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter

	reported   atomic.Uint64
	suppressed atomic.Uint64
}

// NewLogSink returns a sink allowing ratePerSec log lines per second
// (0 or less uses a default).
func NewLogSink(log logx.Logger, ratePerSec int) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &LogSink{log: log}
	s.SetRate(ratePerSec)
	return s
}

// SetRate swaps the limiter. Safe to call concurrently (config reload).
func (s *LogSink) SetRate(ratePerSec int) {
	if ratePerSec <= 0 {
		ratePerSec = defaultFailureRate
	}
	s.mu.Lock()
	s.limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	s.mu.Unlock()
}

func (s *LogSink) ReportFailure(f Failure) {
	s.reported.Add(1)

	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()

	if lim != nil && !lim.Allow() {
		s.suppressed.Add(1)
		return
	}

	fields := []logx.Field{
		logx.String("listener", fmt.Sprintf("%T", f.Listener)),
		logx.Err(f.Err),
	}
	if f.Action != nil {
		fields = append(fields, logx.String("action", f.Action.ActionName()))
	}
	if f.Panic != nil {
		fields = append(fields, logx.Any("panic", f.Panic), logx.Stack(f.Stack))
	}
	if n := s.suppressed.Swap(0); n > 0 {
		fields = append(fields, logx.Uint64("suppressed", n))
	}
	s.log.Error("listener failed", fields...)
}

// Reported returns the number of failures received (logged or not).
func (s *LogSink) Reported() uint64 { return s.reported.Load() }
