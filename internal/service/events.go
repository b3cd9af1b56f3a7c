package service

import (
	"context"

	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/pubsub"
)

// eventPublisher publishes domain events on a best-effort basis. A failed
// publish is logged and never surfaces to the caller.
type eventPublisher struct {
	pub pubsub.Publisher
}

func (p eventPublisher) publish(ctx context.Context, channel, eventType, aggregateID string, payload interface{}) {
	if p.pub == nil {
		return
	}

	l := log.Ctx(ctx)
	event, err := pubsub.NewEvent(eventType, aggregateID, payload)
	if err != nil {
		l.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	if err := p.pub.Publish(ctx, channel, event); err != nil {
		l.Warn().Err(err).
			Str(log.FieldEventID, event.ID.String()).
			Str("event_type", eventType).
			Msg("failed to publish event")
		return
	}

	l.Debug().Str(log.FieldEventID, event.ID.String()).Str("event_type", eventType).Msg("event published")
}
