package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"preppertrack/internal/config"
	"preppertrack/internal/delivery"
	"preppertrack/internal/delivery/desktop"
	"preppertrack/internal/delivery/email"
	"preppertrack/internal/delivery/sound"
	"preppertrack/internal/delivery/telegram"
	"preppertrack/internal/storage"
	logx "preppertrack/pkg/logx"
)

const defaultAppName = "PrepperTrack"

func mapStorageConfig(cfg *config.Config, res config.Resolved) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "memory":
		return storage.Config{Driver: "memory"}, nil
	case "file":
		if path == "" {
			path = config.DefaultStoragePath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: res.BusyTimeout}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// nativeChannel is what the gate needs from the configured notifier.
type nativeChannel interface {
	delivery.SystemNotifier
	delivery.Prober
}

func buildNative(cfg *config.Config, res config.Resolved, log logx.Logger) (nativeChannel, func(), error) {
	appName := strings.TrimSpace(cfg.Delivery.AppName)
	if appName == "" {
		appName = defaultAppName
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Delivery.Notifier)) {
	case config.NotifierDesktop:
		n := desktop.New(appName)
		return n, func() { _ = n.Close() }, nil
	case config.NotifierTelegram:
		tc := cfg.Delivery.Telegram
		n, err := telegram.New(telegram.Config{
			Token:    tc.Token,
			ChatID:   tc.ChatID,
			ThreadID: tc.ThreadID,
			Timeout:  res.TelegramTimeout,
			Retry:    delivery.Retry{Max: tc.RetryMax},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("delivery.telegram: %w", err)
		}
		return n, func() {}, nil
	case "", config.NotifierLog:
		return logNotifier{log: log}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown delivery.notifier: %s", cfg.Delivery.Notifier)
	}
}

func buildEmail(cfg *config.Config, res config.Resolved, log logx.Logger) (delivery.EmailSender, error) {
	ec := cfg.Delivery.Email
	r, err := email.NewRouter(email.Config{
		BaseURL:       ec.Endpoint,
		ServiceID:     ec.ServiceID,
		TemplateID:    ec.TemplateID,
		PublicKey:     ec.PublicKey,
		PrivateKey:    ec.PrivateKey,
		Timeout:       res.EmailTimeout,
		RatePerMinute: ec.RatePerMinute,
		Retry:         delivery.Retry{Max: ec.RetryMax},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("delivery.email: %w", err)
	}
	return r, nil
}

func buildSound(cfg *config.Config) delivery.SoundEmitter {
	return sound.New(cfg.Delivery.SoundCommand, os.Stderr)
}

// logNotifier writes system notifications to the log. It is the channel on
// hosts with neither a desktop session nor a chat bot.
type logNotifier struct{ log logx.Logger }

func (n logNotifier) Notify(_ context.Context, sn delivery.SystemNotification) error {
	n.log.Info("system notification",
		logx.String("title", sn.Title),
		logx.String("body", sn.Body),
		logx.String("id", sn.ID),
		logx.String("priority", string(sn.Priority)),
		logx.Bool("persistent", sn.Persistent),
	)
	return nil
}

func (logNotifier) Probe(context.Context) error { return nil }
