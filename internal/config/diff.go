package config

import (
	"strings"

	logx "preppertrack/pkg/logx"
)

// SummarizeConfigChange returns the changed sections and safe structured
// attrs for logging. Secrets (tokens, private keys) are never included; only
// whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) ||
		strings.TrimSpace(oldCfg.Scheduler.ScanInterval) != strings.TrimSpace(newCfg.Scheduler.ScanInterval) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.scan_interval", strings.TrimSpace(newCfg.Scheduler.ScanInterval)),
		)
	}

	// Storage is read once at startup; a change is reported but needs a restart.
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.Bool("storage.restart_required", true),
		)
	}

	od, nd := oldCfg.Delivery, newCfg.Delivery
	if od != nd {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.String("delivery.notifier", nd.Notifier),
			logx.Bool("delivery.sound_command_set", strings.TrimSpace(nd.SoundCommand) != ""),
			logx.Bool("delivery.email_configured", nd.Email.Configured()),
			logx.Bool("delivery.telegram_token_set", strings.TrimSpace(nd.Telegram.Token) != ""),
		)
	}

	if oldCfg.Import != newCfg.Import {
		changed = append(changed, "import")
		attrs = append(attrs,
			logx.String("import.stage_ttl", newCfg.Import.StageTTL),
			logx.Int64("import.max_upload_bytes", newCfg.Import.MaxUploadBytes),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", newCfg.Metrics.Addr),
			logx.Bool("metrics.pprof", newCfg.Metrics.Pprof),
			logx.Bool("metrics.token_set", newCfg.Metrics.Token != ""),
		)
	}
	return changed, attrs
}
