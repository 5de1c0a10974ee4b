package config

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"preppertrack/internal/sanitize"
)

// Validate checks cfg as a whole. It is installed as the ConfigManager
// validator so a bad edit never replaces a running config.
func Validate(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	r, err := Resolve(cfg)
	if err != nil {
		return err
	}
	if r.ScanInterval < time.Minute {
		return fmt.Errorf("scheduler.scan_interval must be >= 1m")
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Delivery.Notifier)) {
	case "", NotifierLog, NotifierDesktop:
	case NotifierTelegram:
		if strings.TrimSpace(cfg.Delivery.Telegram.Token) == "" || cfg.Delivery.Telegram.ChatID == 0 {
			return fmt.Errorf("delivery.telegram.token and delivery.telegram.chat_id are required for notifier telegram")
		}
	default:
		return fmt.Errorf("delivery.notifier: unknown notifier %q", cfg.Delivery.Notifier)
	}
	if cfg.Delivery.Email.RatePerMinute < 0 {
		return fmt.Errorf("delivery.email.rate_per_minute must be >= 0")
	}
	if cfg.Delivery.Email.RetryMax < 0 || cfg.Delivery.Telegram.RetryMax < 0 {
		return fmt.Errorf("delivery retry_max must be >= 0")
	}

	if cfg.Import.MaxUploadBytes < 0 || cfg.Import.MaxUploadBytes > sanitize.MaxUploadSize {
		return fmt.Errorf("import.max_upload_bytes must be between 0 and %d", sanitize.MaxUploadSize)
	}
	if cfg.Metrics.Enabled {
		addr := strings.TrimSpace(cfg.Metrics.Addr)
		if addr == "" {
			return fmt.Errorf("metrics.addr is required when metrics are enabled")
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
		if cfg.Metrics.Pprof && strings.TrimSpace(cfg.Metrics.Token) == "" && !isLoopbackAddr(addr) {
			return fmt.Errorf("metrics.token is required when pprof is served on non-loopback %q", addr)
		}
	}
	return nil
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
