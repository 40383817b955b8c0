package notify

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/hamed0406/ingestwatch/internal/metrics"
)

// Dispatcher delivers notifications on a bounded worker pool so that a slow
// mail server never holds up a check. Send never blocks and never fails;
// delivery errors are logged and counted.
type Dispatcher struct {
	inner   Notifier
	pool    pond.Pool
	log     *zap.Logger
	timeout time.Duration
}

func NewDispatcher(inner Notifier, log *zap.Logger, workers, queue int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queue < 1 {
		queue = 64
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		inner:   inner,
		pool:    pond.NewPool(workers, pond.WithQueueSize(queue)),
		log:     log,
		timeout: timeout,
	}
}

func (d *Dispatcher) Send(_ context.Context, title, text string) error {
	_, ok := d.pool.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		start := time.Now()
		if err := d.inner.Send(ctx, title, text); err != nil {
			metrics.NotificationsFailed.Inc()
			d.log.Error("notify_send_error",
				zap.String("title", title),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		metrics.NotificationsSent.Inc()
		d.log.Info("notify_sent", zap.String("title", title), zap.Duration("duration", time.Since(start)))
	})
	if !ok {
		metrics.NotificationsDropped.Inc()
		d.log.Error("notify_queue_full", zap.String("title", title))
	}
	return nil
}

// Close waits for queued notifications to be delivered.
func (d *Dispatcher) Close() {
	d.pool.StopAndWait()
}
