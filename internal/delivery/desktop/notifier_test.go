package desktop

import (
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"preppertrack/internal/delivery"
	"preppertrack/internal/notification"
)

func TestNotifyArgs(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in      delivery.SystemNotification
		expire  int32
		urgency byte
	}{
		{
			name:    "critical persists",
			in:      delivery.SystemNotification{Title: "Expired", Body: "rice", Priority: notification.PriorityCritical, Persistent: true},
			expire:  0,
			urgency: UrgencyCritical,
		},
		{
			name:    "high auto dismisses",
			in:      delivery.SystemNotification{Title: "Soon", Body: "beans", Priority: notification.PriorityHigh, Timeout: 5 * time.Second},
			expire:  5000,
			urgency: UrgencyNormal,
		},
		{
			name:    "server default",
			in:      delivery.SystemNotification{Priority: notification.PriorityLow},
			expire:  -1,
			urgency: UrgencyLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			args := NotifyArgs("PrepperTrack", tc.in)
			if len(args) != 8 {
				t.Fatalf("len(args) = %d, want 8", len(args))
			}
			if args[0] != "PrepperTrack" || args[3] != tc.in.Title || args[4] != tc.in.Body {
				t.Fatalf("args = %v", args)
			}
			if got := args[7].(int32); got != tc.expire {
				t.Fatalf("expire = %d, want %d", got, tc.expire)
			}
			hints := args[6].(map[string]dbus.Variant)
			if got := hints["urgency"].Value().(byte); got != tc.urgency {
				t.Fatalf("urgency = %d, want %d", got, tc.urgency)
			}
		})
	}
}
