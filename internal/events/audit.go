package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
)

// AllTypes lists every event type the services publish.
var AllTypes = []string{AttemptSubmitted, AnswerMarked, ResultPublished}

// StartAuditLog subscribes to every event topic and writes one log line per
// event until ctx is cancelled. It is wired to the in-process channel when no
// broker is configured, so events stay observable.
func StartAuditLog(ctx context.Context, subscriber message.Subscriber, topicPrefix string, logger *slog.Logger) error {
	for _, eventType := range AllTypes {
		messages, err := subscriber.Subscribe(ctx, topicPrefix+eventType)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}
		go drain(messages, logger)
	}
	return nil
}

func drain(messages <-chan *message.Message, logger *slog.Logger) {
	for msg := range messages {
		var event Event
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			logger.Warn("Dropping malformed event", "message_id", msg.UUID, "error", err)
			msg.Ack()
			continue
		}
		logger.Info("Domain event",
			"event_id", event.ID,
			"type", event.Type,
			"timestamp", event.Timestamp,
			"data", event.Data,
		)
		msg.Ack()
	}
}
