package config

// Config is the daemon and CLI configuration. User preferences (alert
// offsets, quiet hours, email toggles) are not here; they live in the
// persisted settings.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Import    ImportConfig    `json:"import"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls when scans run.
//
// ScanInterval is a Go duration string ("1h", "30m"). Timezone is an IANA
// name used both for the schedule and for "today" in expiry math.
type SchedulerConfig struct {
	Timezone     string `json:"timezone,omitempty"`
	ScanInterval string `json:"scan_interval,omitempty"`
}

// StorageConfig selects the persisted key-value store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data/preppertrack" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

const (
	NotifierDesktop  = "desktop"
	NotifierTelegram = "telegram"
	NotifierLog      = "log"
)

type DeliveryConfig struct {
	// Notifier is the native channel: desktop | telegram | log.
	Notifier string `json:"notifier"`
	AppName  string `json:"app_name,omitempty"`
	// SoundCommand is run for sound alerts; empty rings the terminal bell.
	SoundCommand string `json:"sound_command,omitempty"`
	// CallTimeout bounds each notify/sound/email call.
	CallTimeout string         `json:"call_timeout,omitempty"`
	Email       EmailConfig    `json:"email"`
	Telegram    TelegramConfig `json:"telegram"`
}

// EmailConfig holds the credentials of the hosted email provider. Which
// provider is used (simulate or emailjs) is a user setting.
type EmailConfig struct {
	Endpoint      string `json:"endpoint,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	TemplateID    string `json:"template_id,omitempty"`
	PublicKey     string `json:"public_key,omitempty"`
	PrivateKey    string `json:"private_key,omitempty"` // do not log
	Timeout       string `json:"timeout,omitempty"`
	RatePerMinute int    `json:"rate_per_minute,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
}

func (e EmailConfig) Configured() bool {
	return e.ServiceID != "" && e.TemplateID != "" && e.PublicKey != ""
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"` // do not log
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
	RetryMax int    `json:"retry_max,omitempty"`
}

type ImportConfig struct {
	// StageTTL is how long a staged import waits for confirmation.
	StageTTL       string `json:"stage_ttl,omitempty"`
	MaxUploadBytes int64  `json:"max_upload_bytes,omitempty"`
}

// MetricsConfig controls the optional Prometheus listener.
// Prefer binding to localhost (e.g. "127.0.0.1:9464").
// Pprof mounts /debug/pprof/ on the same listener. A non-loopback Addr
// with Pprof requires Token.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
	Token   string `json:"token,omitempty"` // do not log
}
