package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"preppertrack/internal/delivery"
	"preppertrack/internal/eventbus"
	"preppertrack/internal/metrics"
	logx "preppertrack/pkg/logx"
)

const DefaultStageTTL = 10 * time.Minute

var (
	ErrNotStaged      = errors.New("no import is staged")
	ErrStagingExpired = errors.New("staged import expired")
)

type State int

const (
	StateIdle State = iota
	StateStaged
	StateConfirmed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateStaged:
		return "staged"
	case StateConfirmed:
		return "confirmed"
	case StateCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

// Stager holds at most one parsed import until the user confirms or cancels
// it. Nothing is written before Confirm.
type Stager struct {
	mu sync.Mutex

	sink  Sink
	ttl   time.Duration
	clock delivery.Clock
	bus   eventbus.Bus
	log   logx.Logger

	state    State
	pending  *Payload
	stagedAt time.Time
}

type StagerOptions struct {
	TTL   time.Duration
	Clock delivery.Clock
	Bus   eventbus.Bus
	Log   logx.Logger
}

func NewStager(sink Sink, opts StagerOptions) *Stager {
	s := &Stager{sink: sink, ttl: opts.TTL, clock: opts.Clock, bus: opts.Bus, log: opts.Log}
	if s.ttl <= 0 {
		s.ttl = DefaultStageTTL
	}
	if s.clock == nil {
		s.clock = delivery.SystemClock
	}
	if s.bus == nil {
		s.bus = eventbus.Nop()
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// SetTTL changes the staging lifetime for future expiry checks.
func (s *Stager) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultStageTTL
	}
	s.mu.Lock()
	s.ttl = ttl
	s.mu.Unlock()
}

// Stage holds p for confirmation, replacing any payload already staged.
func (s *Stager) Stage(p *Payload) error {
	if p == nil {
		return errors.New("nil payload")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.log.Info("staged import replaced")
	}
	s.pending = p
	s.stagedAt = s.clock.Now()
	s.state = StateStaged
	metrics.Imports.WithLabelValues("staged").Inc()
	s.bus.Publish(eventbus.Event{Type: eventbus.ImportStaged, Data: summary(p)})
	s.log.Info("import staged",
		logx.Int("inventory", len(p.Inventory)),
		logx.Int("household", len(p.Household)),
		logx.Duration("ttl", s.ttl),
	)
	return nil
}

// Pending returns the staged payload, if any and not expired.
func (s *Stager) Pending() (*Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireLocked() {
		return nil, false
	}
	return s.pending, s.pending != nil
}

func (s *Stager) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return s.state
}

// Confirm applies the staged payload and returns to idle.
func (s *Stager) Confirm(ctx context.Context) (ApplyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireLocked() {
		return ApplyReport{}, ErrStagingExpired
	}
	if s.state != StateStaged || s.pending == nil {
		return ApplyReport{}, ErrNotStaged
	}
	p := s.pending
	s.state = StateConfirmed
	rep := Apply(ctx, s.sink, p)
	s.pending = nil
	s.state = StateIdle

	result := "confirmed"
	if !rep.OK() {
		result = "partial"
	}
	metrics.Imports.WithLabelValues(result).Inc()
	s.bus.Publish(eventbus.Event{Type: eventbus.ImportConfirmed, Data: rep})
	s.log.Info("import applied", logx.String("report", rep.String()), logx.Strings("failures", rep.Failures))
	return rep, nil
}

// Cancel discards the staged payload.
func (s *Stager) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireLocked() {
		return ErrStagingExpired
	}
	if s.state != StateStaged {
		return ErrNotStaged
	}
	s.state = StateCancelled
	s.pending = nil
	s.state = StateIdle
	metrics.Imports.WithLabelValues("cancelled").Inc()
	s.bus.Publish(eventbus.Event{Type: eventbus.ImportCancelled})
	s.log.Info("import cancelled")
	return nil
}

// expireLocked drops a payload staged longer than the TTL and reports
// whether it did.
func (s *Stager) expireLocked() bool {
	if s.state != StateStaged || s.clock.Now().Sub(s.stagedAt) <= s.ttl {
		return false
	}
	s.pending = nil
	s.state = StateIdle
	metrics.Imports.WithLabelValues("expired").Inc()
	s.bus.Publish(eventbus.Event{Type: eventbus.ImportExpired})
	s.log.Info("staged import expired")
	return true
}

type stageSummary struct {
	Inventory  int
	Household  int
	Groups     int
	Scenarios  int
	ExportedAt string
	Version    string
}

func summary(p *Payload) stageSummary {
	return stageSummary{
		Inventory:  len(p.Inventory),
		Household:  len(p.Household),
		Groups:     len(p.Groups),
		Scenarios:  len(p.Scenarios),
		ExportedAt: p.ExportedAt,
		Version:    p.Version,
	}
}
