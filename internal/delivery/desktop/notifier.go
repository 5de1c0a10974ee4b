// Package desktop sends native notifications through the freedesktop.org
// notification service on the D-Bus session bus.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"preppertrack/internal/delivery"
	"preppertrack/internal/notification"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	iface      = "org.freedesktop.Notifications"
)

// freedesktop urgency hint values.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// Notifier is a delivery.SystemNotifier and delivery.Prober. The session bus
// connection is opened lazily and reopened after a failed call.
type Notifier struct {
	appName string

	mu   sync.Mutex
	conn *dbus.Conn
	dial func(ctx context.Context) (*dbus.Conn, error)
}

func New(appName string) *Notifier {
	if appName == "" {
		appName = "PrepperTrack"
	}
	return &Notifier{
		appName: appName,
		dial: func(ctx context.Context) (*dbus.Conn, error) {
			return dbus.ConnectSessionBus(dbus.WithContext(ctx))
		},
	}
}

func (n *Notifier) Notify(ctx context.Context, sn delivery.SystemNotification) error {
	obj, err := n.object(ctx)
	if err != nil {
		return err
	}
	var id uint32
	call := obj.CallWithContext(ctx, iface+".Notify", 0, NotifyArgs(n.appName, sn)...)
	if call.Err != nil {
		n.reset()
		return fmt.Errorf("desktop notify: %w", call.Err)
	}
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("desktop notify reply: %w", err)
	}
	return nil
}

// Probe asks the notification server to identify itself.
func (n *Notifier) Probe(ctx context.Context) error {
	obj, err := n.object(ctx)
	if err != nil {
		return err
	}
	var name, vendor, version, specVersion string
	call := obj.CallWithContext(ctx, iface+".GetServerInformation", 0)
	if call.Err != nil {
		n.reset()
		return fmt.Errorf("desktop probe: %w", call.Err)
	}
	if err := call.Store(&name, &vendor, &version, &specVersion); err != nil {
		return fmt.Errorf("desktop probe reply: %w", err)
	}
	if name == "" {
		return errors.New("desktop probe: empty server name")
	}
	return nil
}

func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}

func (n *Notifier) object(ctx context.Context) (dbus.BusObject, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		conn, err := n.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect session bus: %w", err)
		}
		n.conn = conn
	}
	return n.conn.Object(busName, objectPath), nil
}

func (n *Notifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		_ = n.conn.Close()
		n.conn = nil
	}
}

// NotifyArgs builds the argument list of org.freedesktop.Notifications.Notify.
func NotifyArgs(appName string, sn delivery.SystemNotification) []any {
	expire := int32(0) // 0: never expire
	if !sn.Persistent {
		expire = int32(sn.Timeout / time.Millisecond)
		if expire <= 0 {
			expire = -1 // server default
		}
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(Urgency(sn.Priority)),
	}
	return []any{
		appName,
		uint32(0), // replaces_id
		"",        // app_icon
		sn.Title,
		sn.Body,
		[]string{},
		hints,
		expire,
	}
}

func Urgency(p notification.Priority) byte {
	switch p {
	case notification.PriorityCritical:
		return UrgencyCritical
	case notification.PriorityLow:
		return UrgencyLow
	}
	return UrgencyNormal
}
