package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailassist/pkg/metrics"
	"mailassist/pkg/trace"
)

// Store is the part of Repository the relay uses.
type Store interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error
}

// Publisher sends one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Relay 从 outbox 中读取事件并发布到 MQ
type Relay struct {
	store      Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
	lease      time.Duration
}

func NewRelay(store Store, publisher Publisher, logger *zap.Logger) *Relay {
	return &Relay{
		store:      store,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
		lease:      30 * time.Second,
	}
}

// WithInterval 设置扫描间隔
func (r *Relay) WithInterval(interval time.Duration) *Relay {
	r.interval = interval
	return r
}

// Run blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.logger.Info("Starting outbox relay",
		zap.Int("max_retries", r.maxRetries),
		zap.Duration("interval", r.interval),
		zap.Int("batch_size", r.batchSize),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("Failed to claim pending events", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch and returns how many events were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.Claim(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, event := range events {
		log := r.logger.With(zap.Int64("event_id", event.ID), zap.String("routing_key", event.RoutingKey))

		pubCtx := ctx
		if event.TraceID != "" {
			pubCtx = trace.WithContext(ctx, event.TraceID)
		}
		if err := r.publisher.Publish(pubCtx, event.RoutingKey, event.Payload); err != nil {
			log.Error("Failed to publish event", zap.Error(err))
			metrics.IncrementOutboxPublish("failed")
			if err := r.store.MarkAsFailed(ctx, event.ID, r.maxRetries); err != nil {
				log.Error("Failed to mark event as failed", zap.Error(err))
			}
			continue
		}

		metrics.IncrementOutboxPublish("sent")
		// 标记失败时 lease 到期后会重发，消费端按幂等处理
		if err := r.store.MarkAsSent(ctx, event.ID); err != nil {
			log.Error("Failed to mark event as sent", zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
