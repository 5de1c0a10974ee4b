package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"preppertrack/internal/delivery"
	"preppertrack/internal/eventbus"
	"preppertrack/internal/inventory"
	"preppertrack/internal/metrics"
	"preppertrack/internal/notification"
	"preppertrack/internal/task/scheduler"
	logx "preppertrack/pkg/logx"
)

const (
	ScheduleName    = "alerts.scan"
	DefaultInterval = time.Hour

	scanTimeout = 2 * time.Minute
)

var ErrNotStarted = errors.New("alerts engine not started")

// Snapshotter loads the persisted state a scan reads.
type Snapshotter interface {
	Snapshot(ctx context.Context) (inventory.Snapshot, error)
}

// Deliverer is the delivery gate as seen by the engine.
type Deliverer interface {
	Deliver(ctx context.Context, settings inventory.Settings, added []notification.Record) []delivery.Outcome
}

// Scheduler is the subset of the scheduler service the engine registers with.
type Scheduler interface {
	AddSchedule(name, schedule string, timeout time.Duration, job scheduler.Job) error
	Remove(name string) bool
}

type Options struct {
	// Refresh, when set, runs before every scan to reload state another
	// process may have changed.
	Refresh  func(ctx context.Context) error
	State    Snapshotter
	Store    *notification.Store
	Gate     Deliverer
	Clock    delivery.Clock
	Location *time.Location
	Interval time.Duration
	Bus      eventbus.Bus
	Log      logx.Logger
}

// ScanReport summarizes one scan.
type ScanReport struct {
	ID       string
	Started  time.Time
	Took     time.Duration
	Derived  int
	Added    []notification.Record
	Outcomes []delivery.Outcome
}

type Engine struct {
	refresh func(ctx context.Context) error
	state   Snapshotter
	store   *notification.Store
	gate    Deliverer
	clock   delivery.Clock
	bus     eventbus.Bus
	log     logx.Logger

	// scanMu serializes scans; manual and scheduled triggers never overlap.
	scanMu sync.Mutex

	mu       sync.Mutex
	loc      *time.Location
	interval time.Duration
	sched    Scheduler
}

func New(opts Options) *Engine {
	e := &Engine{
		refresh:  opts.Refresh,
		state:    opts.State,
		store:    opts.Store,
		gate:     opts.Gate,
		clock:    opts.Clock,
		bus:      opts.Bus,
		log:      opts.Log,
		loc:      opts.Location,
		interval: opts.Interval,
	}
	if e.clock == nil {
		e.clock = delivery.SystemClock
	}
	if e.bus == nil {
		e.bus = eventbus.Nop()
	}
	if e.log.IsZero() {
		e.log = logx.Nop()
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.interval <= 0 {
		e.interval = DefaultInterval
	}
	return e
}

// Scan runs one derive, merge and deliver pass. Store failures abort the
// scan; delivery failures are reported in the outcomes only.
func (e *Engine) Scan(ctx context.Context) (ScanReport, error) {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	e.mu.Lock()
	loc := e.loc
	e.mu.Unlock()

	rep := ScanReport{ID: uuid.NewString(), Started: e.clock.Now()}
	log := e.log.With(logx.String("scan_id", rep.ID))
	defer func() {
		rep.Took = time.Since(rep.Started)
		metrics.ScanDuration.Observe(rep.Took.Seconds())
	}()

	if e.refresh != nil {
		if err := e.refresh(ctx); err != nil {
			metrics.Scans.WithLabelValues("error").Inc()
			return rep, fmt.Errorf("refresh state: %w", err)
		}
	}
	snap, err := e.state.Snapshot(ctx)
	if err != nil {
		metrics.Scans.WithLabelValues("error").Inc()
		return rep, fmt.Errorf("load snapshot: %w", err)
	}

	derived := Derive(snap.Inventory, snap.Settings, rep.Started, loc)
	rep.Derived = len(derived)

	added, err := e.store.Merge(ctx, derived)
	if err != nil {
		metrics.Scans.WithLabelValues("error").Inc()
		return rep, fmt.Errorf("merge notifications: %w", err)
	}
	rep.Added = added
	for _, r := range added {
		metrics.NotificationsAdded.WithLabelValues(string(r.Type), string(r.Priority)).Inc()
		e.bus.Publish(eventbus.Event{Type: eventbus.NotificationAdded, Data: r})
	}
	metrics.UnreadNotifications.Set(float64(e.store.UnreadCount()))

	if len(added) > 0 && e.gate != nil {
		rep.Outcomes = e.gate.Deliver(ctx, snap.Settings, added)
	}

	metrics.Scans.WithLabelValues("ok").Inc()
	e.bus.Publish(eventbus.Event{Type: eventbus.ScanCompleted, Data: rep})
	log.Info("scan completed",
		logx.Int("items", len(snap.Inventory)),
		logx.Int("derived", rep.Derived),
		logx.Int("added", len(added)),
	)
	return rep, nil
}

// Start scans once and registers the periodic scan on sched.
func (e *Engine) Start(ctx context.Context, sched Scheduler) error {
	if sched == nil {
		return errors.New("alerts: scheduler required")
	}
	if _, err := e.Scan(ctx); err != nil {
		e.log.Warn("initial scan failed", logx.Err(err))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched = sched
	return e.registerLocked()
}

// Stop removes the periodic scan. A scan already running finishes.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sched != nil {
		e.sched.Remove(ScheduleName)
		e.sched = nil
	}
}

// Apply changes the scan interval and timezone; a started engine re-registers
// its schedule when the interval changes.
func (e *Engine) Apply(interval time.Duration, loc *time.Location) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if loc != nil {
		e.loc = loc
	}
	if interval == e.interval {
		return nil
	}
	e.interval = interval
	if e.sched == nil {
		return nil
	}
	return e.registerLocked()
}

// Interval is the current scan interval.
func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

func (e *Engine) registerLocked() error {
	spec := "every:" + e.interval.String()
	err := e.sched.AddSchedule(ScheduleName, spec, scanTimeout, func(ctx context.Context) error {
		_, err := e.Scan(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", ScheduleName, err)
	}
	e.log.Info("scan scheduled", logx.Duration("interval", e.interval))
	return nil
}
