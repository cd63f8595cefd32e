package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Store is the part of Repository the dispatcher needs.
type Store interface {
	Insert(ctx context.Context, routingKey string, payload json.RawMessage) (int64, error)
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, maxRetries int, backoff time.Duration) error
}

// Publisher 实际的 MQ 发布方（*mq.Publisher）
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Dispatcher 定时扫描 outbox 并补发
type Dispatcher struct {
	store      Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	backoff    time.Duration
	batchSize  int
}

func NewDispatcher(store Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   5 * time.Second,
		backoff:    5 * time.Second,
		batchSize:  100,
	}
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	d.maxRetries = maxRetries
	return d
}

// Start blocks until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce sends one batch and returns how many events went out.
func (d *Dispatcher) ProcessOnce(ctx context.Context) int {
	events, err := d.store.Pending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return 0
	}

	sent := 0
	for _, e := range events {
		if err := d.publisher.Publish(ctx, e.RoutingKey, e.Payload); err != nil {
			d.logger.Warn("Failed to republish event",
				zap.Int64("event_id", e.ID),
				zap.String("routing_key", e.RoutingKey),
				zap.Int("retry_count", e.RetryCount),
				zap.Error(err),
			)
			if err := d.store.MarkFailed(ctx, e.ID, d.maxRetries, d.backoff); err != nil {
				d.logger.Error("Failed to mark event as failed", zap.Int64("event_id", e.ID), zap.Error(err))
			}
			continue
		}

		if err := d.store.MarkSent(ctx, e.ID); err != nil {
			d.logger.Error("Failed to mark event as sent", zap.Int64("event_id", e.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
