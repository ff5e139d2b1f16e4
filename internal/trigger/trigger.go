// Package trigger fires the action producer automatically on a schedule,
// in addition to manual clicks.
package trigger

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	logx "eventflow/pkg/logx"
)

// Service owns a cron instance with at most one entry.
// Apply may be called at any time (config hot reload).
type Service struct {
	fn  func()
	log logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	spec    string
	started bool

	fired atomic.Uint64
}

func New(fn func(), log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{fn: fn, log: log}
}

// Apply replaces the current schedule. An empty spec disables the trigger.
// On a parse error the previous schedule stays in place.
func (s *Service) Apply(spec string) error {
	spec = strings.TrimSpace(spec)

	var sched cron.Schedule
	if spec != "" {
		parsed, err := ParseSchedule(spec)
		if err != nil {
			return err
		}
		if sched, err = parsed.cronSchedule(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if spec == s.spec {
		return nil
	}
	if s.c != nil && s.entry != 0 {
		s.c.Remove(s.entry)
		s.entry = 0
	}
	s.spec = spec
	if sched != nil && s.c != nil {
		s.entry = s.c.Schedule(sched, cron.FuncJob(s.fire))
	}
	s.log.Info("trigger schedule applied", logx.String("schedule", spec), logx.Bool("enabled", spec != ""))
	return nil
}

// Spec returns the active schedule string ("" when disabled).
func (s *Service) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Fired returns how many times the trigger ran.
func (s *Service) Fired() uint64 { return s.fired.Load() }

// Start begins firing. The service stops itself when ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.c = cron.New(cron.WithParser(parser))
	if s.spec != "" {
		if parsed, err := ParseSchedule(s.spec); err == nil {
			if sched, err := parsed.cronSchedule(); err == nil {
				s.entry = s.c.Schedule(sched, cron.FuncJob(s.fire))
			}
		}
	}
	s.c.Start()
	s.log.Debug("trigger started", logx.String("schedule", s.spec))

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()
}

// Stop halts the cron and waits for a running job (bounded by ctx).
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entry = 0
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) fire() {
	s.fired.Add(1)
	if s.fn != nil {
		s.fn()
	}
}
