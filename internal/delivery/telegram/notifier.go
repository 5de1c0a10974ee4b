// Package telegram forwards urgent notifications to a Telegram chat. It is
// the native channel on hosts without a desktop session.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"preppertrack/internal/delivery"
	"preppertrack/internal/notification"
)

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides the Bot API endpoint (tests, local bot servers).
	APIURL     string
	Timeout    time.Duration
	RatePerSec int
	Retry      delivery.Retry
}

// Notifier is a delivery.SystemNotifier and delivery.Prober.
type Notifier struct {
	cfg     Config
	bot     *tele.Bot
	limiter *rate.Limiter
}

func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Offline: true, // send-only; no getMe on construction, no poller
		Client:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Notifier{
		cfg:     cfg,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}, nil
}

func (n *Notifier) Notify(ctx context.Context, sn delivery.SystemNotification) error {
	text := Format(sn)
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ThreadID:              n.cfg.ThreadID,
	}
	chat := &tele.Chat{ID: n.cfg.ChatID}
	err := n.cfg.Retry.Do(ctx, n.limiter, func(context.Context) error {
		_, err := n.bot.Send(chat, text, opt)
		return err
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Probe checks the token against getMe.
func (n *Notifier) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Raw("getMe", nil); err != nil {
		return fmt.Errorf("telegram probe: %w", err)
	}
	return nil
}

// Format renders a notification as Telegram HTML.
func Format(sn delivery.SystemNotification) string {
	var b strings.Builder
	b.WriteString(prefix(sn.Priority))
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(sn.Title))
	b.WriteString("</b>")
	if sn.Body != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(sn.Body))
	}
	return b.String()
}

func prefix(p notification.Priority) string {
	switch p {
	case notification.PriorityCritical:
		return "🚨 "
	case notification.PriorityHigh:
		return "⚠️ "
	}
	return ""
}
