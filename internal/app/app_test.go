package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"preppertrack/internal/delivery"
	"preppertrack/internal/notification"
	"preppertrack/internal/transfer"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const backup = `{
  "inventory": [
    {"id": "rice", "name": "Rice", "quantity": 1, "minQuantity": 5, "unit": "kg", "expirationDate": "2026-03-17"},
    {"id": "beans", "name": "Beans", "quantity": 10, "unit": "can", "expirationDate": "2026-03-05"}
  ],
  "household": [{"id": "m1", "name": "Ana", "age": 34}],
  "settings": {"enableNotifications": true, "expirationAlerts": true, "expirationDays": [7, 30], "lowStockAlerts": true},
  "exportedAt": "2026-03-01T00:00:00Z",
  "version": "1.0"
}`

func newTestApp(t *testing.T, dir string) *App {
	t.Helper()
	cfgPath := filepath.Join(dir, "config.json")
	if _, err := os.Stat(cfgPath); err != nil {
		body := fmt.Sprintf(`{
  "logging": {"level": "error", "console": false},
  "scheduler": {"timezone": "UTC", "scan_interval": "1h"},
  "storage": {"driver": "file", "path": %q}
}`, filepath.Join(dir, "data", "state"))
		if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	a, err := New(cfgPath, WithClock(delivery.ClockFunc(func() time.Time { return testNow })))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func writeBackup(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "backup.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	return p
}

func TestImportScansAndNotificationsPersist(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := newTestApp(t, dir)
	ctx := context.Background()

	var got ImportSummary
	rep, err := a.Import(ctx, writeBackup(t, dir, backup), func(s ImportSummary) bool {
		got = s
		return true
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !rep.OK() || rep.Inventory != 2 || rep.Household != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if got.Inventory != 2 || got.Household != 1 || got.Version != "1.0" {
		t.Fatalf("summary = %+v", got)
	}

	recs, err := a.Notifications("")
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("notifications = %d, want 3: %+v", len(recs), recs)
	}
	for _, id := range []string{notification.ExpiryID("rice", 7), notification.ExpiredID("beans"), notification.LowStockID("rice")} {
		if _, ok := a.store.Get(id); !ok {
			t.Fatalf("missing %s", id)
		}
	}
	low, err := a.Notifications(string(notification.TypeLowStock))
	if err != nil || len(low) != 1 {
		t.Fatalf("lowStock = %d, %v", len(low), err)
	}
	if _, err := a.Notifications("bogus"); err == nil {
		t.Fatalf("expected error for unknown type")
	}

	rep2, err := a.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rep2.Added) != 0 {
		t.Fatalf("rescan added %d", len(rep2.Added))
	}

	if err := a.Read(ctx, All); err != nil {
		t.Fatalf("Read all: %v", err)
	}
	if a.UnreadCount() != 0 {
		t.Fatalf("unread = %d", a.UnreadCount())
	}
	if err := a.Clear(ctx, notification.ExpiredID("beans")); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := a.Clear(ctx, "missing"); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("Clear missing err = %v", err)
	}
	a.Close()

	b := newTestApp(t, dir)
	recs, err = b.Notifications("")
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("after reopen = %d, want 2", len(recs))
	}
	for _, r := range recs {
		if !r.Read {
			t.Fatalf("record %s lost read state", r.ID)
		}
	}
}

func TestImportCancelledLeavesState(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := newTestApp(t, dir)
	ctx := context.Background()

	_, err := a.Import(ctx, writeBackup(t, dir, backup), func(ImportSummary) bool { return false })
	if !errors.Is(err, ErrImportCancelled) {
		t.Fatalf("err = %v", err)
	}
	items, err := a.repo.Inventory(ctx)
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("inventory = %d after cancel", len(items))
	}
	if a.stager.State() != transfer.StateIdle {
		t.Fatalf("stager state = %s", a.stager.State())
	}
}

func TestImportRejectsStructure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := newTestApp(t, dir)

	_, err := a.Import(context.Background(), writeBackup(t, dir, `{"inventory": []}`), nil)
	var ie *transfer.ImportError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want *transfer.ImportError", err)
	}

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Import(context.Background(), txt, nil); !errors.As(err, &ie) {
		t.Fatalf("non-json upload err = %v", err)
	}
}

func TestExportFormats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := newTestApp(t, dir)
	ctx := context.Background()
	if _, err := a.Import(ctx, writeBackup(t, dir, backup), nil); err != nil {
		t.Fatalf("Import: %v", err)
	}

	out := filepath.Join(dir, "out")
	tests := []struct {
		format string
		name   string
	}{
		{FormatJSON, "preppertrack-backup-2026-03-10.json"},
		{FormatCSV, "preppertrack-export-2026-03-10.csv"},
		{FormatXLSX, "preppertrack-export-2026-03-10.xlsx"},
	}
	for _, tt := range tests {
		path, err := a.Export(ctx, tt.format, out)
		if err != nil {
			t.Fatalf("Export(%s): %v", tt.format, err)
		}
		if filepath.Base(path) != tt.name {
			t.Fatalf("Export(%s) path = %s", tt.format, path)
		}
		st, err := os.Stat(path)
		if err != nil || st.Size() == 0 {
			t.Fatalf("Export(%s) file: %v", tt.format, err)
		}
	}

	// The JSON backup imports back cleanly.
	if _, err := a.Import(ctx, filepath.Join(out, tests[0].name), nil); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if _, err := a.Export(ctx, "pdf", out); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestPermission(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a := newTestApp(t, dir)
	ctx := context.Background()

	p, err := a.Permission(ctx)
	if err != nil || p != delivery.PermissionGranted {
		t.Fatalf("Permission = %s, %v", p, err)
	}
	stored, _ := a.repo.Permission(ctx)
	if stored != string(delivery.PermissionGranted) {
		t.Fatalf("stored permission = %q", stored)
	}

	s, _ := a.repo.Settings(ctx)
	s.EnableNotifications = false
	if err := a.repo.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Permission(ctx); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestApplyConfigUpdatesComponents(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, t.TempDir())
	oldCfg := a.Config()
	next := *oldCfg
	next.Scheduler.ScanInterval = "30m"
	next.Scheduler.Timezone = "Local"
	next.Import.StageTTL = "1m"

	a.applyConfig(oldCfg, &next)

	if got := a.engine.Interval(); got != 30*time.Minute {
		t.Fatalf("interval = %s", got)
	}
	if got := a.sched.Location().String(); got != "Local" {
		t.Fatalf("location = %s", got)
	}
	if a.res.StageTTL != time.Minute {
		t.Fatalf("stage ttl = %s", a.res.StageTTL)
	}
}

func TestRunStartsAndStops(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, func() { close(ready) }) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not become ready")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestReloadUnchangedIsNoop(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, t.TempDir())
	before := a.Config()
	if err := a.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if a.Config() != before {
		t.Fatalf("unchanged reload replaced the config")
	}
}

func TestDaemonAndCommandShareStorage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()
	daemon := newTestApp(t, dir)
	cli := newTestApp(t, dir)

	if _, err := cli.Import(ctx, writeBackup(t, dir, backup), nil); err != nil {
		t.Fatalf("Import: %v", err)
	}
	rep, err := daemon.Scan(ctx)
	if err != nil {
		t.Fatalf("daemon Scan: %v", err)
	}
	if rep.Derived != 3 || len(rep.Added) != 0 {
		t.Fatalf("daemon scan derived=%d added=%d, want 3 and 0", rep.Derived, len(rep.Added))
	}

	if p, err := cli.Permission(ctx); err != nil || p != delivery.PermissionGranted {
		t.Fatalf("Permission = %s, %v", p, err)
	}
	if p := daemon.gate.CurrentPermission(ctx); p != delivery.PermissionGranted {
		t.Fatalf("daemon permission = %s", p)
	}

	if err := cli.Read(ctx, All); err != nil {
		t.Fatalf("Read: %v", err)
	}
	cli.Close()
	if _, err := daemon.Scan(ctx); err != nil {
		t.Fatalf("daemon rescan: %v", err)
	}
	if n := daemon.UnreadCount(); n != 0 {
		t.Fatalf("daemon unread = %d", n)
	}
	daemon.Close()

	after := newTestApp(t, dir)
	items, err := after.repo.Inventory(ctx)
	if err != nil || len(items) != 2 {
		t.Fatalf("inventory after shutdown = %d, %v", len(items), err)
	}
	recs, err := after.Notifications("")
	if err != nil || len(recs) != 3 {
		t.Fatalf("notifications after shutdown = %d, %v", len(recs), err)
	}
	for _, r := range recs {
		if !r.Read {
			t.Fatalf("%s lost read state", r.ID)
		}
	}
}
