package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	msg := &slack.WebhookMessage{Text: "*" + title + "*\n" + text}
	return slack.PostWebhookCustomHTTPContext(ctx, s.Webhook, s.Client, msg)
}
