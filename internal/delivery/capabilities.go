package delivery

import (
	"context"
	"time"

	"preppertrack/internal/notification"
)

type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps a stored value to a Permission; anything unknown is default.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	}
	return PermissionDefault
}

// PermissionProvider reports and requests the host's notification permission.
type PermissionProvider interface {
	Permission(ctx context.Context) (Permission, error)
	Request(ctx context.Context) (Permission, error)
}

type SoundEmitter interface {
	Play(ctx context.Context) error
}

// SystemNotification is one native notification. Persistent notifications
// stay until dismissed; others auto-dismiss after Timeout.
type SystemNotification struct {
	ID         string
	Title      string
	Body       string
	Priority   notification.Priority
	Persistent bool
	Timeout    time.Duration
}

type SystemNotifier interface {
	Notify(ctx context.Context, n SystemNotification) error
}

// Prober checks that a channel is reachable. Permission requests use it.
type Prober interface {
	Probe(ctx context.Context) error
}

// EmailMessage is one expiration email. Provider is the user's configured
// provider name (see inventory.EmailProvider*).
type EmailMessage struct {
	Provider  string
	ToEmail   string
	FromName  string
	FromEmail string
	Subject   string
	Body      string
	ItemID    string
	RecordID  string
}

type EmailSender interface {
	Send(ctx context.Context, m EmailMessage) error
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
