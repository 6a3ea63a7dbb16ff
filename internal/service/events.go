package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/internal/port/messagequeue"
	"github.com/wardenhq/warden/internal/resilience"
)

// queueBreaker guards event publishing against a flapping broker so a
// dead NATS connection cannot slow the decision path down.
var queueBreaker = resilience.NewBreaker(5, 30*time.Second)

// publishEvent marshals an event and sends it to the message queue.
// Delivery failures are logged and swallowed; the state change has
// already been persisted and event consumers are informational.
func publishEvent(ctx context.Context, queue messagequeue.Queue, subject string, payload any) {
	if queue == nil || !queue.IsConnected() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event payload", "subject", subject, "error", err)
		return
	}
	if err := messagequeue.Validate(subject, data); err != nil {
		slog.Error("event failed schema validation", "subject", subject, "error", err)
		return
	}
	err = queueBreaker.Execute(func() error {
		return queue.Publish(ctx, subject, data)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			slog.Debug("event dropped, queue circuit open", "subject", subject)
			return
		}
		slog.Warn("event publish failed", "subject", subject, "error", err)
	}
}
