package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailassist/pkg/otel"
	"mailassist/pkg/trace"
)

const table = "outbox_events"

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Event 表示一个待发布的事件
type Event struct {
	ID          int64
	RoutingKey  string
	Payload     json.RawMessage
	TraceID     string
	Status      string
	RetryCount  int
	NextRetryAt *time.Time
	CreatedAt   time.Time
}

// Repository 提供 Outbox 操作
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Publish stores the event for the relay. The trace id of ctx travels
// with it so consumers can correlate.
func (r *Repository) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	query := `
		INSERT INTO outbox_events (routing_key, payload, trace_id, status)
		VALUES ($1, $2, $3, 'pending')
	`
	return otel.Exec(ctx, "insert", table, query, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, query, routingKey, body, trace.FromContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})
}

// Claim 领取一批到期的 pending 事件，并把 next_retry_at 推后 lease，
// 多个 relay 实例不会同时领取同一事件
func (r *Repository) Claim(ctx context.Context, limit int, lease time.Duration) ([]Event, error) {
	query := `
		UPDATE outbox_events
		SET next_retry_at = NOW() + make_interval(secs => $2), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'pending'
			AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, routing_key, payload, trace_id, status, retry_count, next_retry_at, created_at
	`
	var events []Event
	err := otel.Exec(ctx, "claim", table, query, func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, query, limit, lease.Seconds())
		if err != nil {
			return fmt.Errorf("failed to claim pending events: %w", err)
		}
		events, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
			var e Event
			err := row.Scan(&e.ID, &e.RoutingKey, &e.Payload, &e.TraceID, &e.Status, &e.RetryCount, &e.NextRetryAt, &e.CreatedAt)
			return e, err
		})
		return err
	})
	return events, err
}

// MarkAsSent 标记事件为已发送
func (r *Repository) MarkAsSent(ctx context.Context, eventID int64) error {
	query := `
		UPDATE outbox_events
		SET status = 'sent', next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return otel.Exec(ctx, "mark_sent", table, query, func(ctx context.Context) error {
		if _, err := r.db.Exec(ctx, query, eventID); err != nil {
			return fmt.Errorf("failed to mark event as sent: %w", err)
		}
		return nil
	})
}

// MarkAsFailed 增加重试次数；达到 maxRetries 后不再重试。退避为 5s * 重试次数
func (r *Repository) MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= $2 THEN 'failed' ELSE 'pending' END,
		    next_retry_at = CASE WHEN retry_count + 1 >= $2 THEN NULL
		                         ELSE NOW() + make_interval(secs => 5 * (retry_count + 1)) END,
		    updated_at = NOW()
		WHERE id = $1
	`
	return otel.Exec(ctx, "mark_failed", table, query, func(ctx context.Context) error {
		if _, err := r.db.Exec(ctx, query, eventID, maxRetries); err != nil {
			return fmt.Errorf("failed to mark event as failed: %w", err)
		}
		return nil
	})
}
