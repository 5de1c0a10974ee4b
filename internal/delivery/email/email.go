// Package email sends expiration emails through a hosted template service
// (EmailJS's REST API) or, in simulate mode, only logs them.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"preppertrack/internal/delivery"
	"preppertrack/internal/inventory"
	logx "preppertrack/pkg/logx"
)

const DefaultBaseURL = "https://api.emailjs.com"

const sendPath = "/api/v1.0/email/send"

type Config struct {
	BaseURL       string
	ServiceID     string
	TemplateID    string
	PublicKey     string
	PrivateKey    string
	Timeout       time.Duration
	RatePerMinute int
	Retry         delivery.Retry
}

// Router sends each message through the provider it names. The EmailJS
// sender is only available when its credentials are configured.
type Router struct {
	simulated Simulated
	emailjs   *EmailJS
}

func NewRouter(cfg Config, log logx.Logger) (*Router, error) {
	r := &Router{simulated: Simulated{log: log}}
	if cfg.ServiceID != "" || cfg.TemplateID != "" || cfg.PublicKey != "" {
		ej, err := NewEmailJS(cfg, log)
		if err != nil {
			return nil, err
		}
		r.emailjs = ej
	}
	return r, nil
}

func (r *Router) Send(ctx context.Context, m delivery.EmailMessage) error {
	switch strings.ToLower(strings.TrimSpace(m.Provider)) {
	case "", inventory.EmailProviderSimulate:
		return r.simulated.Send(ctx, m)
	case inventory.EmailProviderEmailJS:
		if r.emailjs == nil {
			return errors.New("emailjs provider is not configured")
		}
		return r.emailjs.Send(ctx, m)
	default:
		return fmt.Errorf("unknown email provider %q", m.Provider)
	}
}

// Simulated logs the message instead of sending it.
type Simulated struct{ log logx.Logger }

func (s Simulated) Send(ctx context.Context, m delivery.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(m.ToEmail) == "" {
		return errors.New("email recipient is empty")
	}
	s.log.Info("email simulated",
		logx.String("to", m.ToEmail),
		logx.String("subject", m.Subject),
		logx.String("item_id", m.ItemID),
	)
	return nil
}

// EmailJS posts messages to the EmailJS send endpoint.
type EmailJS struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter
	log     logx.Logger
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func NewEmailJS(cfg Config, log logx.Logger) (*EmailJS, error) {
	if cfg.ServiceID == "" || cfg.TemplateID == "" || cfg.PublicKey == "" {
		return nil, errors.New("emailjs requires service_id, template_id and public_key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 30
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &EmailJS{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1),
		log:     log,
	}, nil
}

func (e *EmailJS) Send(ctx context.Context, m delivery.EmailMessage) error {
	if strings.TrimSpace(m.ToEmail) == "" {
		return errors.New("email recipient is empty")
	}
	body := sendRequest{
		ServiceID:   e.cfg.ServiceID,
		TemplateID:  e.cfg.TemplateID,
		UserID:      e.cfg.PublicKey,
		AccessToken: e.cfg.PrivateKey,
		TemplateParams: map[string]string{
			"to_email":   m.ToEmail,
			"from_name":  m.FromName,
			"from_email": m.FromEmail,
			"subject":    m.Subject,
			"message":    m.Body,
			"item_id":    m.ItemID,
		},
	}
	return e.cfg.Retry.Do(ctx, e.limiter, func(ctx context.Context) error {
		resp, err := e.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(sendPath)
		if err != nil {
			return fmt.Errorf("emailjs send: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("emailjs send: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
		}
		e.log.Debug("emailjs accepted", logx.String("to", m.ToEmail), logx.Int("status", resp.StatusCode()))
		return nil
	})
}
