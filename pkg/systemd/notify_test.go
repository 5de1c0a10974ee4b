package systemd

import (
	"context"
	"testing"
)

func TestNoopOutsideSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("WATCHDOG_USEC", "")

	if sent, err := Ready(); sent || err != nil {
		t.Fatalf("Ready = %v, %v", sent, err)
	}
	if sent, err := Status("scanning"); sent || err != nil {
		t.Fatalf("Status = %v, %v", sent, err)
	}
	if sent, err := Stopping(); sent || err != nil {
		t.Fatalf("Stopping = %v, %v", sent, err)
	}
	if err := Watchdog(context.Background()); err != nil {
		t.Fatalf("Watchdog: %v", err)
	}
}
