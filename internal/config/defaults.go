package config

import (
	"time"
)

const (
	DefaultScanInterval = time.Hour
	DefaultStageTTL     = 10 * time.Minute
	DefaultCallTimeout  = 15 * time.Second
	DefaultMetricsAddr  = "127.0.0.1:9464"
	DefaultStoragePath  = "./data/preppertrack"
)

// Default is the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Scheduler: SchedulerConfig{ScanInterval: "1h"},
		Storage:   StorageConfig{Driver: "file", Path: DefaultStoragePath},
		Delivery:  DeliveryConfig{Notifier: NotifierLog},
		Import:    ImportConfig{StageTTL: "10m"},
	}
}

// Resolved holds the parsed, defaulted durations of a Config.
type Resolved struct {
	ScanInterval    time.Duration
	BusyTimeout     time.Duration
	CallTimeout     time.Duration
	EmailTimeout    time.Duration
	TelegramTimeout time.Duration
	StageTTL        time.Duration
}

// Resolve parses every duration field. It fails on the first invalid one.
func Resolve(cfg *Config) (Resolved, error) {
	var (
		r   Resolved
		err error
	)
	if r.ScanInterval, err = duration("scheduler.scan_interval", cfg.Scheduler.ScanInterval, DefaultScanInterval); err != nil {
		return r, err
	}
	if r.BusyTimeout, err = duration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0); err != nil {
		return r, err
	}
	if r.CallTimeout, err = duration("delivery.call_timeout", cfg.Delivery.CallTimeout, DefaultCallTimeout); err != nil {
		return r, err
	}
	if r.EmailTimeout, err = duration("delivery.email.timeout", cfg.Delivery.Email.Timeout, DefaultCallTimeout); err != nil {
		return r, err
	}
	if r.TelegramTimeout, err = duration("delivery.telegram.timeout", cfg.Delivery.Telegram.Timeout, 10*time.Second); err != nil {
		return r, err
	}
	if r.StageTTL, err = duration("import.stage_ttl", cfg.Import.StageTTL, DefaultStageTTL); err != nil {
		return r, err
	}
	return r, nil
}
