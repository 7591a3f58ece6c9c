package services

import (
	"context"
	"strconv"

	"github.com/dlms-org/apiserver/types"
	"github.com/google/uuid"
)

// EventPublisher delivers domain events to the message broker.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, value any, attrs map[string]string) (string, error)
}

// publish sends an event after the triggering write has committed. Failures
// are logged and counted but never undo the write.
func (o *options) publish(ctx context.Context, channel string, event types.LicenseEvent) {
	if o.events == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.Type = channel
	attrs := map[string]string{
		"type":    channel,
		"user_id": strconv.Itoa(event.UserID),
	}
	if _, err := o.events.PublishJSON(ctx, channel, event, attrs); err != nil {
		o.metrics.RecordEventPublishFailure(channel)
		o.logger.Warn().Err(err).
			Str("channel", channel).
			Int("user_id", event.UserID).
			Msg("failed to publish event")
	}
}
