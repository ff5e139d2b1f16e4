package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventflow/internal/config"
	"eventflow/internal/counter"
	"eventflow/internal/display"
	"eventflow/internal/eventbus"
	"eventflow/internal/flow"
	"eventflow/internal/mainloop"
	"eventflow/internal/runtime/scope"
	"eventflow/internal/storage"
	"eventflow/internal/trigger"
	logx "eventflow/pkg/logx"
)

// Panel names, in display order.
const (
	PanelLiveData        = "LiveData"
	PanelStateFlow       = "StateFlow"
	PanelSharedStateFlow = "SharedStateFlow"
	PanelSharedFlow      = "SharedFlow"
)

var PanelNames = []string{PanelLiveData, PanelStateFlow, PanelSharedStateFlow, PanelSharedFlow}

var (
	ErrNotStarted = errors.New("app not started")
	ErrStopped    = errors.New("app stopped")
)

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager

	log  logx.Logger
	logs *logx.Service

	session string

	loop    *mainloop.Loop
	bus     *eventbus.Bus
	sink    *eventbus.LogSink
	store   *counter.Store
	journal storage.Journal
	// writer serializes journal writes off the delivery loop; owned by ioScope.
	writer  *mainloop.Loop
	ioScope *scope.Scope
	trig    *trigger.Service
	panels  map[string]*display.Panel

	sharedCfg flow.ReplayConfig
	delay     time.Duration

	mu       sync.Mutex
	sc       *scope.Scope
	producer *counter.Producer
	shared   *flow.Replay[int]
	stopped  bool
}

// New loads the config at cfgPath and builds every component.
// Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfgm.SetValidator(validateConfig)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	storeCfg, err := mapStoreConfig(cfg)
	if err != nil {
		return nil, err
	}
	delay, err := producerDelay(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	session := uuid.NewString()
	log = log.With(logx.String("session", session))
	appLog := log.With(logx.String("comp", "app"))

	loop := mainloop.New(log.With(logx.String("comp", "mainloop")))
	sink := eventbus.NewLogSink(log.With(logx.String("comp", "eventbus")), cfg.Failures.RatePerSec)
	bus := eventbus.New(loop,
		eventbus.WithFailureSink(sink),
		eventbus.WithLogger(log.With(logx.String("comp", "eventbus"))),
	)

	// Storage (optional)
	var journal storage.Journal
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		j, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		journal = j
		appLog.Info("journal enabled", logx.String("driver", sc.Driver))
	}

	store, err := counter.NewStore(bus, storeCfg, log.With(logx.String("comp", "store")))
	if err != nil {
		if journal != nil {
			_ = journal.Close()
		}
		_ = logSvc.Close()
		return nil, err
	}

	writer := mainloop.New(log.With(logx.String("comp", "journal")))
	panels := make(map[string]*display.Panel, len(PanelNames))
	for _, name := range PanelNames {
		opts := []display.Option{display.WithLogger(log.With(logx.String("comp", "display")))}
		if journal != nil {
			opts = append(opts, display.WithJournal(journal, session, writer))
		}
		if cfg.Panels.Echo {
			opts = append(opts, display.WithEcho(os.Stdout))
		}
		panels[name] = display.NewPanel(name, opts...)
	}

	a := &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       appLog,
		logs:      logSvc,
		session:   session,
		loop:      loop,
		bus:       bus,
		sink:      sink,
		store:     store,
		journal:   journal,
		writer:    writer,
		panels:    panels,
		sharedCfg: mapSharedStateConfig(cfg),
		delay:     delay,
	}
	a.trig = trigger.New(a.autoClick, log.With(logx.String("comp", "trigger")))
	if err := a.trig.Apply(cfg.Producer.Schedule); err != nil {
		// already validated; keep going without the automatic trigger
		a.log.Warn("trigger schedule rejected", logx.Err(err))
	}
	return a, nil
}

func (a *App) Session() string { return a.session }

func (a *App) Store() *counter.Store { return a.store }

// Done is closed when the app scope ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	sc := a.sc
	a.mu.Unlock()
	if sc == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return sc.Context().Done()
}

// Err returns the first fatal error observed by the app scope (if any).
func (a *App) Err() error {
	a.mu.Lock()
	sc := a.sc
	a.mu.Unlock()
	if sc == nil {
		return nil
	}
	return sc.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return ErrStopped
	}
	if a.sc != nil {
		return fmt.Errorf("app already started")
	}

	sc := scope.New(ctx, scope.WithLogger(a.log), scope.WithCancelOnError(true))
	a.sc = sc

	sc.Go("mainloop", a.loop.Run)

	// Journal writes outlive the app scope so Stop can drain them.
	a.ioScope = scope.New(context.Background(), scope.WithLogger(a.log))
	a.ioScope.Go("journal.writer", a.writer.Run)

	a.producer = counter.NewProducer(sc.Context(), a.bus, a.delay, a.log.With(logx.String("comp", "producer")))

	// The shared-state stream starts at once; an initial value emitted
	// before its panel subscribes is not replayed when replay is 0.
	shared, sharedDone, err := flow.ShareIn(sc.Context(), a.store.State().Subscribe(), a.sharedCfg)
	if err != nil {
		sc.Cancel()
		a.writer.Close()
		a.ioScope.Cancel()
		return fmt.Errorf("shared state stream: %w", err)
	}
	a.shared = shared
	sc.Go0("sharein", func(c context.Context) {
		<-c.Done()
		<-sharedDone
	})

	display.Watch(sc, a.loop, a.store.Live().Subscribe(), a.panels[PanelLiveData])
	display.Watch(sc, a.loop, a.store.State().Subscribe(), a.panels[PanelStateFlow])
	display.Watch(sc, a.loop, shared.Subscribe(), a.panels[PanelSharedStateFlow])
	display.Watch(sc, a.loop, a.store.Shared().Subscribe(), a.panels[PanelSharedFlow])

	a.trig.Start(sc.Context())

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	sub := a.cfgm.Subscribe(8)
	sc.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	sc.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started",
		logx.Duration("delay", a.delay),
		logx.String("schedule", a.trig.Spec()),
		logx.Bool("journal", a.journal != nil),
	)
	return nil
}

// Click executes the producer once and returns the count it will dispatch.
func (a *App) Click() (int, error) {
	a.mu.Lock()
	p, stopped := a.producer, a.stopped
	a.mu.Unlock()
	if stopped {
		return -1, ErrStopped
	}
	if p == nil {
		return -1, ErrNotStarted
	}
	n := p.Execute()
	if n < 0 {
		return -1, ErrStopped
	}
	return n, nil
}

func (a *App) autoClick() {
	n, err := a.Click()
	if err != nil {
		a.log.Debug("scheduled click skipped", logx.Err(err))
		return
	}
	a.log.Debug("scheduled click", logx.Int("count", n))
}

// Panels returns the panels in display order.
func (a *App) Panels() []*display.Panel {
	out := make([]*display.Panel, 0, len(PanelNames))
	for _, name := range PanelNames {
		out = append(out, a.panels[name])
	}
	return out
}

func (a *App) Panel(name string) (*display.Panel, bool) {
	p, ok := a.panels[name]
	return p, ok
}

// Render returns every panel, one per line.
func (a *App) Render() string {
	var b strings.Builder
	for _, p := range a.Panels() {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// History returns the journal's most recent lines for panel ("" = all).
func (a *App) History(ctx context.Context, panel string, limit int) ([]storage.Entry, error) {
	if a.journal == nil {
		return nil, storage.ErrDisabled
	}
	return a.journal.Recent(ctx, panel, limit)
}

// Flush waits until every value already handed to the delivery loop has
// been applied, emitted on SharedFlow and written to the journal.
func (a *App) Flush(ctx context.Context) error {
	if err := a.loop.Flush(ctx); err != nil {
		return err
	}
	if err := a.store.Flush(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	io := a.ioScope
	a.mu.Unlock()
	if a.journal == nil || io == nil {
		return nil
	}
	return a.writer.Flush(ctx)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	sc, p, io := a.sc, a.producer, a.ioScope
	a.mu.Unlock()

	a.log.Info("stopping", logx.String("reason", string(reason)))
	if sc != nil {
		sc.Cancel()
	}

	a.step(ctx, "trigger", time.Second, a.trig.Stop)
	a.step(ctx, "producer", time.Second, func(c context.Context) error {
		if p == nil {
			return nil
		}
		return p.Close(c)
	})
	// Clear releases an emit suspended on a slow subscriber, so the loop can exit.
	a.step(ctx, "store", time.Second, func(c context.Context) error {
		a.store.Clear()
		return a.store.Wait(c)
	})
	a.step(ctx, "scope", 2*time.Second, func(c context.Context) error {
		a.loop.Close()
		if sc == nil {
			return nil
		}
		err := sc.Wait(c)
		cnt := sc.Counters()
		a.log.Debug("app goroutines stopped",
			logx.Int64("active", cnt.Active), logx.Uint64("started", cnt.Started))
		return err
	})
	a.step(ctx, "journal", 2*time.Second, func(c context.Context) error {
		if io == nil {
			return nil
		}
		// lines appended before the loop stopped are still queued here
		flushErr := a.writer.Flush(c)
		a.writer.Close()
		if err := io.Wait(c); err != nil {
			return err
		}
		return flushErr
	})
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.journal != nil {
			return a.journal.Close()
		}
		return nil
	})

	a.log.Info("stopped",
		logx.Uint64("dispatched", a.bus.Dispatched()),
		logx.Uint64("handled", a.store.Handled()),
		logx.Uint64("failures", a.sink.Reported()),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs a shutdown step with an upper bound so one component can't
// stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		// respect the caller's deadline; never extend it
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
		)
	}
}
