package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"preppertrack/internal/eventbus"
	"preppertrack/internal/inventory"
	"preppertrack/internal/metrics"
	"preppertrack/internal/notification"
	logx "preppertrack/pkg/logx"
)

const (
	// EmailOffsetDays is the only pre-expiry offset that sends email.
	EmailOffsetDays = 7

	defaultNativeTimeout = 5 * time.Second
	defaultCallTimeout   = 15 * time.Second
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome is what happened on each channel for one record.
type Outcome struct {
	RecordID string
	Native   Status
	Sound    Status
	Email    Status
	Errors   []string
}

// SentSaver persists the email sent-set.
type SentSaver interface {
	SaveEmailSent(ctx context.Context, keys []string) error
}

// EmailMarker flags a store record once its email went out.
type EmailMarker interface {
	MarkEmailSent(ctx context.Context, id string) error
}

type Deps struct {
	Permission PermissionProvider
	Native     SystemNotifier
	Sound      SoundEmitter
	Email      EmailSender
	Clock      Clock
	Location   *time.Location

	Sent      *SentSet
	SentSaver SentSaver
	Marker    EmailMarker

	Bus eventbus.Bus
	Log logx.Logger

	NativeTimeout time.Duration // auto-dismiss for non-critical notifications
	CallTimeout   time.Duration // per capability call
}

type Gate struct {
	// mu serializes Deliver so the sent-set check and insert cannot interleave.
	mu sync.Mutex
	d  Deps
}

func New(d Deps) *Gate {
	if d.Clock == nil {
		d.Clock = SystemClock
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Permission == nil {
		d.Permission = StaticPermission(PermissionDefault)
	}
	if d.Sent == nil {
		d.Sent = NewSentSet(nil)
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop()
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.NativeTimeout <= 0 {
		d.NativeTimeout = defaultNativeTimeout
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = defaultCallTimeout
	}
	return &Gate{d: d}
}

// SetLocation changes the timezone quiet hours are evaluated in.
func (g *Gate) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	g.mu.Lock()
	g.d.Location = loc
	g.mu.Unlock()
}

// Sent exposes the sent-set (read-only use).
func (g *Gate) Sent() *SentSet { return g.d.Sent }

// Deliver evaluates every newly added record. Capability failures are
// logged and reported in the outcome; they never abort the batch.
func (g *Gate) Deliver(ctx context.Context, settings inventory.Settings, added []notification.Record) []Outcome {
	if len(added) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.d.Clock.Now().In(g.d.Location)
	perm := g.permission(ctx)
	soundAllowed := settings.SoundAlerts && !(settings.EnableQuietHours && InQuietHours(now, settings.QuietStart, settings.QuietEnd))
	soundDone := false

	out := make([]Outcome, 0, len(added))
	for _, rec := range added {
		o := Outcome{RecordID: rec.ID, Native: StatusSkipped, Sound: StatusSkipped, Email: StatusSkipped}

		if settings.PushNotifications && perm == PermissionGranted && rec.Priority.Urgent() && g.d.Native != nil {
			o.Native = g.native(ctx, rec, &o)
		}
		if soundAllowed && !soundDone && g.d.Sound != nil {
			soundDone = true
			o.Sound = g.sound(ctx, &o)
		}
		o.Email = g.email(ctx, settings, rec, &o)

		metrics.Deliveries.WithLabelValues("native", string(o.Native)).Inc()
		metrics.Deliveries.WithLabelValues("sound", string(o.Sound)).Inc()
		metrics.Deliveries.WithLabelValues("email", string(o.Email)).Inc()
		out = append(out, o)
	}
	return out
}

// RequestPermission is the explicit, user-initiated permission request.
// Any failure resolves to denied.
func (g *Gate) RequestPermission(ctx context.Context) Permission {
	ctx, cancel := context.WithTimeout(ctx, g.d.CallTimeout)
	defer cancel()
	p, err := g.d.Permission.Request(ctx)
	if err != nil {
		g.d.Log.Warn("permission request failed", logx.Err(err))
		p = PermissionDenied
	}
	g.d.Bus.Publish(eventbus.Event{Type: eventbus.PermissionChanged, Data: string(p)})
	g.d.Log.Info("notification permission", logx.String("permission", string(p)))
	return p
}

// CurrentPermission re-reads the provider.
func (g *Gate) CurrentPermission(ctx context.Context) Permission {
	return g.permission(ctx)
}

func (g *Gate) permission(ctx context.Context) Permission {
	p, err := g.d.Permission.Permission(ctx)
	if err != nil {
		g.d.Log.Warn("permission read failed", logx.Err(err))
		return PermissionDefault
	}
	return p
}

func (g *Gate) native(ctx context.Context, rec notification.Record, o *Outcome) Status {
	n := SystemNotification{
		ID:         rec.ID,
		Title:      rec.Title,
		Body:       rec.Message,
		Priority:   rec.Priority,
		Persistent: rec.Priority == notification.PriorityCritical,
	}
	if !n.Persistent {
		n.Timeout = g.d.NativeTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, g.d.CallTimeout)
	defer cancel()
	if err := g.d.Native.Notify(cctx, n); err != nil {
		g.d.Log.Warn("native notification failed", logx.String("id", rec.ID), logx.Err(err))
		o.Errors = append(o.Errors, fmt.Sprintf("native: %v", err))
		return StatusFailed
	}
	g.d.Bus.Publish(eventbus.Event{Type: eventbus.DeliveryNative, Data: rec.ID})
	return StatusSent
}

func (g *Gate) sound(ctx context.Context, o *Outcome) Status {
	cctx, cancel := context.WithTimeout(ctx, g.d.CallTimeout)
	defer cancel()
	if err := g.d.Sound.Play(cctx); err != nil {
		g.d.Log.Warn("sound alert failed", logx.Err(err))
		o.Errors = append(o.Errors, fmt.Sprintf("sound: %v", err))
		return StatusFailed
	}
	g.d.Bus.Publish(eventbus.Event{Type: eventbus.DeliverySound, Data: o.RecordID})
	return StatusSent
}

func (g *Gate) email(ctx context.Context, settings inventory.Settings, rec notification.Record, o *Outcome) Status {
	if rec.Type != notification.TypeExpiration || rec.AlertDays != EmailOffsetDays || !settings.EmailEnabled() {
		return StatusSkipped
	}
	if g.d.Email == nil {
		return StatusSkipped
	}
	key := EmailKey(rec.ItemID, EmailOffsetDays)
	if g.d.Sent.Has(key) {
		g.d.Log.Debug("email already sent", logx.String("key", key))
		return StatusSkipped
	}

	msg := EmailMessage{
		Provider:  settings.EmailProvider,
		ToEmail:   settings.EmailConfig.ToEmail,
		FromName:  settings.EmailConfig.FromName,
		FromEmail: settings.EmailConfig.FromEmail,
		Subject:   rec.Title,
		Body:      rec.Message,
		ItemID:    rec.ItemID,
		RecordID:  rec.ID,
	}
	cctx, cancel := context.WithTimeout(ctx, g.d.CallTimeout)
	err := g.d.Email.Send(cctx, msg)
	cancel()
	if err != nil {
		g.d.Log.Warn("expiration email failed", logx.String("id", rec.ID), logx.Err(err))
		o.Errors = append(o.Errors, fmt.Sprintf("email: %v", err))
		return StatusFailed
	}

	g.d.Sent.Add(key)
	if g.d.SentSaver != nil {
		if err := g.d.SentSaver.SaveEmailSent(ctx, g.d.Sent.Keys()); err != nil {
			g.d.Log.Warn("persist email sent-set failed", logx.Err(err))
		}
	}
	if g.d.Marker != nil {
		if err := g.d.Marker.MarkEmailSent(ctx, rec.ID); err != nil {
			g.d.Log.Warn("mark email sent failed", logx.String("id", rec.ID), logx.Err(err))
		}
	}
	g.d.Bus.Publish(eventbus.Event{Type: eventbus.DeliveryEmail, Data: rec.ID})
	g.d.Log.Info("expiration email sent", logx.String("id", rec.ID), logx.String("to", settings.EmailConfig.ToEmail))
	return StatusSent
}
