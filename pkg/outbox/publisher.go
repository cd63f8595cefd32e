package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"pikpakhelper/pkg/logger"
)

// FallbackPublisher publishes directly and parks the event in the outbox when
// the broker is unavailable. It never loses an event the store accepted.
type FallbackPublisher struct {
	publisher Publisher
	store     Store
	logger    *zap.Logger
}

func NewFallbackPublisher(publisher Publisher, store Store, logger *zap.Logger) *FallbackPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackPublisher{publisher: publisher, store: store, logger: logger}
}

func (p *FallbackPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	err := p.publisher.Publish(ctx, routingKey, payload)
	if err == nil {
		return nil
	}

	body, mErr := json.Marshal(payload)
	if mErr != nil {
		return fmt.Errorf("failed to marshal event: %w", mErr)
	}
	id, sErr := p.store.Insert(context.WithoutCancel(ctx), routingKey, body)
	if sErr != nil {
		return fmt.Errorf("publish failed (%v) and outbox insert failed: %w", err, sErr)
	}

	logger.WithTrace(ctx, p.logger).Warn("Event parked in outbox",
		zap.Int64("event_id", id),
		zap.String("routing_key", routingKey),
		zap.Error(err),
	)
	return nil
}
