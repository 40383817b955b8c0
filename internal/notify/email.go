package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// HTML sends the body as text/html instead of text/plain.
	HTML bool
}

type Email struct {
	cfg    EmailConfig
	client *mail.Client
}

// NewEmail returns nil when no SMTP host or no recipient is configured.
func NewEmail(cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil, nil
	}
	if cfg.From == "" {
		return nil, errors.New("smtp sender address is required")
	}
	opts := []mail.Option{
		mail.WithTimeout(15 * time.Second),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Email{cfg: cfg, client: c}, nil
}

func (e *Email) Send(ctx context.Context, title, text string) error {
	if e == nil {
		return errors.New("email disabled")
	}
	m := mail.NewMsg()
	if err := m.From(e.cfg.From); err != nil {
		return fmt.Errorf("from %q: %w", e.cfg.From, err)
	}
	if err := m.To(e.cfg.To...); err != nil {
		return fmt.Errorf("to %s: %w", strings.Join(e.cfg.To, ","), err)
	}
	m.Subject(title)
	if e.cfg.HTML {
		m.SetBodyString(mail.TypeTextHTML, text)
	} else {
		m.SetBodyString(mail.TypeTextPlain, text)
	}
	return e.client.DialAndSendWithContext(ctx, m)
}
