package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier delivers a titled message to its configured recipients.
type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier and returns all errors combined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Log writes notifications to the logger. It is the fallback when no
// transport is configured so alerts are never silently lost.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, title, text string) error {
	l.Logger.Warn("notification", zap.String("title", title), zap.String("text", text))
	return nil
}
