// Package app wires configuration, persistence, the alert engine and the
// delivery gate into the daemon and the one-shot CLI operations.
package app

import (
	"context"
	"fmt"
	"time"

	"preppertrack/internal/alerts"
	"preppertrack/internal/config"
	"preppertrack/internal/delivery"
	"preppertrack/internal/eventbus"
	"preppertrack/internal/metrics"
	"preppertrack/internal/notification"
	"preppertrack/internal/runtime/supervisor"
	"preppertrack/internal/state"
	"preppertrack/internal/storage"
	"preppertrack/internal/task/scheduler"
	"preppertrack/internal/transfer"
	logx "preppertrack/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	res  config.Resolved

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	kv     storage.Store
	repo   *state.Repository
	store  *notification.Store
	gate   *delivery.Gate
	engine *alerts.Engine
	sched  *scheduler.Service
	stager *transfer.Stager

	clock   delivery.Clock
	closers []func()
}

type options struct {
	clock delivery.Clock
}

type Option func(*options)

// WithClock replaces the wall clock used for scans, delivery and staging.
func WithClock(c delivery.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// New loads the config at cfgPath (defaults when the file does not exist)
// and builds every component. Nothing is started.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{clock: delivery.SystemClock}
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a := &App{cfgm: cfgm, res: res, log: log, logs: logSvc, bus: eventbus.New(), clock: o.clock}
	a.closers = append(a.closers, func() { _ = logSvc.Close() })
	if err := a.build(cfg, root); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, root logx.Logger) error {
	ctx := context.Background()

	sc, err := mapStorageConfig(cfg, a.res)
	if err != nil {
		return err
	}
	kv, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.kv = kv
	a.closers = append(a.closers, func() {
		if err := kv.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	})
	a.repo = state.New(kv, root.With(logx.String("comp", "state")))

	recs, err := a.repo.Notifications(ctx)
	if err != nil {
		return err
	}
	a.store = notification.NewStore(recs, a.repo, root.With(logx.String("comp", "store")))
	metrics.UnreadNotifications.Set(float64(a.store.UnreadCount()))

	sent, err := a.repo.EmailSent(ctx)
	if err != nil {
		return err
	}

	a.sched = scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, root.With(logx.String("comp", "scheduler")))

	native, closeNative, err := buildNative(cfg, a.res, root.With(logx.String("comp", "notifier")))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeNative)
	mail, err := buildEmail(cfg, a.res, root.With(logx.String("comp", "email")))
	if err != nil {
		return err
	}

	a.gate = delivery.New(delivery.Deps{
		Permission:  delivery.NewRecordedPermission(a.repo, native),
		Native:      native,
		Sound:       buildSound(cfg),
		Email:       mail,
		Clock:       a.clock,
		Location:    a.sched.Location(),
		Sent:        delivery.NewSentSet(sent),
		SentSaver:   a.repo,
		Marker:      a.store,
		Bus:         a.bus,
		Log:         root.With(logx.String("comp", "delivery")),
		CallTimeout: a.res.CallTimeout,
	})

	a.engine = alerts.New(alerts.Options{
		Refresh:  a.refresh,
		State:    a.repo,
		Store:    a.store,
		Gate:     a.gate,
		Clock:    a.clock,
		Location: a.sched.Location(),
		Interval: a.res.ScanInterval,
		Bus:      a.bus,
		Log:      root.With(logx.String("comp", "alerts")),
	})

	a.stager = transfer.NewStager(a.repo, transfer.StagerOptions{
		TTL:   a.res.StageTTL,
		Clock: a.clock,
		Bus:   a.bus,
		Log:   root.With(logx.String("comp", "transfer")),
	})
	return nil
}

// refresh reloads the notification list and the email sent-set from storage,
// picking up changes made by other processes sharing it.
func (a *App) refresh(ctx context.Context) error {
	recs, err := a.repo.Notifications(ctx)
	if err != nil {
		return err
	}
	sent, err := a.repo.EmailSent(ctx)
	if err != nil {
		return err
	}
	a.store.Replace(recs)
	a.gate.Sent().Replace(sent)
	metrics.UnreadNotifications.Set(float64(a.store.UnreadCount()))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Config() *config.Config { return a.cfgm.Get() }

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Bus() eventbus.Bus { return a.bus }

// Run is the daemon: an immediate scan, then scans on the configured
// interval, config hot reload and the optional metrics listener. ready is
// called once everything is started. Run returns when ctx ends or a
// supervised component fails.
func (a *App) Run(ctx context.Context, ready func()) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := sup.Context()

	sup.Go("config.watch", a.cfgm.Watch)
	a.sched.Start(runCtx)
	if err := a.engine.Start(runCtx, a.sched); err != nil {
		_ = sup.Stop(context.Background())
		return err
	}

	cfg := a.cfgm.Get()
	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Addr
		if addr == "" {
			addr = config.DefaultMetricsAddr
		}
		srv := metrics.NewServer(addr, a.log.With(logx.String("comp", "metrics")),
			metrics.WithPprof(cfg.Metrics.Pprof),
			metrics.WithToken(cfg.Metrics.Token),
		)
		sup.Go("metrics.listen", srv.Run)
	}

	events, unsub := a.bus.Subscribe(128)
	sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.log.Info("preppertrack started",
		logx.Duration("scan_interval", a.engine.Interval()),
		logx.String("timezone", a.sched.Location().String()),
	)
	if ready != nil {
		ready()
	}

	<-runCtx.Done()
	a.engine.Stop()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.sched.Stop(stopCtx)
	if err := sup.Stop(stopCtx); err != nil {
		return err
	}
	a.log.Info("preppertrack stopped")
	return nil
}
