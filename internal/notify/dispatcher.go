// internal/notify/dispatcher.go
package notify

import (
	"context"
	"sync"
	"time"

	"assignment-service/internal/common/logger"
)

type envelope struct {
	event      Event
	recipients []string
	payload    map[string]interface{}
}

// Dispatcher decouples notification sends from the request path. Sends
// are queued and delivered by a background worker with bounded retries;
// a full queue or an exhausted retry drops the notification with a log
// line. Callers never see an error, the developer can still act through
// the primary channel.
type Dispatcher struct {
	notifier   Notifier
	logger     logger.Logger
	queue      chan envelope
	maxRetries int
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewDispatcher(notifier Notifier, queueSize, maxRetries int, log logger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 128
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	d := &Dispatcher{
		notifier:   notifier,
		logger:     log.WithFields(map[string]interface{}{"component": "notify-dispatcher"}),
		queue:      make(chan envelope, queueSize),
		maxRetries: maxRetries,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues a send without blocking.
func (d *Dispatcher) Dispatch(event Event, recipientIDs []string, payload map[string]interface{}) {
	if len(recipientIDs) == 0 {
		return
	}
	select {
	case d.queue <- envelope{event: event, recipients: recipientIDs, payload: payload}:
	default:
		d.logger.Warn("notification queue full, dropping send", map[string]interface{}{
			"event":      string(event),
			"recipients": len(recipientIDs),
		})
	}
}

// Close stops accepting new sends and drains the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for env := range d.queue {
		d.deliver(env)
	}
}

func (d *Dispatcher) deliver(env envelope) {
	backoff := time.Second
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := d.notifier.Notify(ctx, env.event, env.recipients, env.payload)
		cancel()
		if err == nil {
			return
		}
		d.logger.Warn("notification send failed", map[string]interface{}{
			"event":   string(env.event),
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt < d.maxRetries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	d.logger.Error("notification dropped after retries", map[string]interface{}{
		"event":      string(env.event),
		"recipients": len(env.recipients),
	})
}
