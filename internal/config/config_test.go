package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "nope.json"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "file" || cfg.Delivery.Notifier != NotifierLog || !cfg.Logging.Console {
		t.Fatalf("defaults = %+v", cfg)
	}
	if m.Get() != cfg {
		t.Fatalf("Load did not commit")
	}
}

func TestParseJSONAndYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	jsonPath := write(t, dir, "config.json", `{
  "scheduler": {"timezone": "UTC", "scan_interval": "30m"},
  "storage": {"driver": "memory"},
  "metrics": {"enabled": true, "addr": "127.0.0.1:9999"}
}`)
	yamlPath := write(t, dir, "config.yaml", `
scheduler:
  timezone: UTC
  scan_interval: 30m
storage:
  driver: memory
metrics:
  enabled: true
  addr: "127.0.0.1:9999"
`)
	for _, p := range []string{jsonPath, yamlPath} {
		cfg, err := NewConfigManager(p).Load()
		if err != nil {
			t.Fatalf("%s: %v", filepath.Base(p), err)
		}
		if cfg.Scheduler.ScanInterval != "30m" || cfg.Storage.Driver != "memory" || !cfg.Metrics.Enabled {
			t.Fatalf("%s: cfg = %+v", filepath.Base(p), cfg)
		}
		// Omitted sections keep their defaults.
		if cfg.Logging.Level != "info" || cfg.Import.StageTTL != "10m" {
			t.Fatalf("%s: defaults lost: %+v", filepath.Base(p), cfg)
		}
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unknown field", "a.json", `{"storage": {"driver": "memory", "dsn": "x"}}`, "unknown field"},
		{"trailing data", "b.json", `{} {}`, "trailing data"},
		{"unknown yaml field", "c.yaml", "plugins: {}\n", "unknown field"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := write(t, t.TempDir(), tc.file, tc.body)
			_, err := NewConfigManager(p).Parse()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestEmptyFileIsDefaults(t *testing.T) {
	t.Parallel()
	p := write(t, t.TempDir(), "empty.yaml", "  \n")
	cfg, err := NewConfigManager(p).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.ScanInterval != "1h" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	mod := func(fn func(c *Config)) *Config {
		c := Default()
		fn(c)
		return c
	}
	cases := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"defaults", Default(), ""},
		{"bad interval", mod(func(c *Config) { c.Scheduler.ScanInterval = "soon" }), "scheduler.scan_interval"},
		{"interval too short", mod(func(c *Config) { c.Scheduler.ScanInterval = "5s" }), ">= 1m"},
		{"bad timezone", mod(func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }), "scheduler.timezone"},
		{"unknown driver", mod(func(c *Config) { c.Storage.Driver = "redis" }), "storage.driver"},
		{"file without path", mod(func(c *Config) { c.Storage.Path = "" }), "storage.path"},
		{"unknown notifier", mod(func(c *Config) { c.Delivery.Notifier = "pager" }), "delivery.notifier"},
		{"telegram without token", mod(func(c *Config) { c.Delivery.Notifier = NotifierTelegram }), "delivery.telegram.token"},
		{"negative ttl", mod(func(c *Config) { c.Import.StageTTL = "-1m" }), "import.stage_ttl"},
		{"upload too large", mod(func(c *Config) { c.Import.MaxUploadBytes = 11 << 20 }), "import.max_upload_bytes"},
		{"metrics without addr", mod(func(c *Config) { c.Metrics.Enabled = true }), "metrics.addr"},
		{"metrics bad addr", mod(func(c *Config) { c.Metrics.Enabled, c.Metrics.Addr = true, "9464" }), "metrics.addr"},
		{"public pprof without token", mod(func(c *Config) {
			c.Metrics = MetricsConfig{Enabled: true, Addr: ":9464", Pprof: true}
		}), "metrics.token"},
		{"loopback pprof", mod(func(c *Config) {
			c.Metrics = MetricsConfig{Enabled: true, Addr: "127.0.0.1:9464", Pprof: true}
		}), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Validate(context.Background(), tc.cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	r, err := Resolve(&Config{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.ScanInterval != time.Hour || r.StageTTL != 10*time.Minute || r.CallTimeout != DefaultCallTimeout || r.BusyTimeout != 0 {
		t.Fatalf("resolved = %+v", r)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Scheduler.ScanInterval = "30m"
	b.Delivery.Telegram.Token = "secret"
	changed, attrs := SummarizeConfigChange(a, b)
	if len(changed) != 2 || changed[0] != "scheduler" || changed[1] != "delivery" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("no attrs")
	}
	if changed, _ := SummarizeConfigChange(a, Default()); len(changed) != 0 {
		t.Fatalf("identical configs changed = %v", changed)
	}
}

func TestWatchPublishesValidEdits(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := write(t, dir, "config.json", `{"scheduler": {"scan_interval": "1h"}}`)
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher time to register before editing.
	time.Sleep(200 * time.Millisecond)
	write(t, dir, "config.json", `{"scheduler": {"scan_interval": "2m"}}`)

	select {
	case cfg := <-ch:
		if cfg.Scheduler.ScanInterval != "2m" {
			t.Fatalf("published %+v", cfg.Scheduler)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no config published")
	}
	cancel()
	<-done
}

func TestReload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := write(t, dir, "config.json", `{"scheduler": {"scan_interval": "1h"}}`)
	m := NewConfigManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	ctx := context.Background()

	if _, err := m.Reload(ctx); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("identical reload err = %v", err)
	}

	write(t, dir, "config.json", `{"scheduler": {"scan_interval": "10s"}}`)
	if _, err := m.Reload(ctx); err == nil || !strings.Contains(err.Error(), "scan_interval") {
		t.Fatalf("invalid reload err = %v", err)
	}
	if m.Get().Scheduler.ScanInterval != "1h" {
		t.Fatalf("rejected config was committed")
	}

	write(t, dir, "config.json", `{"scheduler": {"scan_interval": "5m"}}`)
	cfg, err := m.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if m.Get() != cfg {
		t.Fatalf("Reload did not commit")
	}
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatalf("published a different config")
		}
	default:
		t.Fatalf("nothing published")
	}
}

func TestRestartBackoffCaps(t *testing.T) {
	t.Parallel()
	var b restartBackoff
	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := b.next()
		if d < backoffMin || d > backoffMax+backoffMax/5 {
			t.Fatalf("step %d: %v out of range", i, d)
		}
		if b.cur < prev {
			t.Fatalf("step %d: backoff shrank", i)
		}
		prev = b.cur
	}
	if b.cur != backoffMax {
		t.Fatalf("cur = %v, want cap %v", b.cur, backoffMax)
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	calls := 0
	d := newDebouncer(20*time.Millisecond, func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	for i := 0; i < 5; i++ {
		d.trigger()
	}
	time.Sleep(200 * time.Millisecond)
	d.stop()
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
