package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"mailassist/pkg/metrics"
	"mailassist/pkg/otel"
	"mailassist/pkg/trace"
	"mailassist/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Outcome 单条消息的处理结果
type Outcome string

const (
	OutcomeAck     Outcome = "ack"
	OutcomeRequeue Outcome = "requeue"
	OutcomeDLQ     Outcome = "dlq"
)

// Decide 根据 handler 错误决定消息去向：可重试的错误重新入队一次，重投后仍失败或不可重试则进死信队列。
// 进程退出导致的取消总是重新入队
func Decide(err error, redelivered bool) (Outcome, string) {
	if err == nil {
		return OutcomeAck, ""
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeRequeue, "context_canceled"
	}
	retryable, errType := util.IsRetryableError(err)
	if retryable && !redelivered {
		return OutcomeRequeue, errType
	}
	return OutcomeDLQ, errType
}

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	dlq        *Publisher
	name       string
	logger     *zap.Logger
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url, "mailassist-consumer:"+queueName)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare DLQ exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, routingKey); err != nil {
		return fail(err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue: %w", err))
	}

	// 一次只处理一条，分类任务是长耗时的
	if err := ch.Qos(1, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		name:       queueName,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetDLQ 设置死信发布者；未设置时不可重试的消息直接丢弃
func (c *Consumer) SetDLQ(p *Publisher) {
	c.dlq = p
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is done or the delivery channel closes.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.name,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

// handle 保证每条消息都会被 ack、nack 或转入死信队列
func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery) {
	start := time.Now()

	ctx = otel.ExtractHeaders(ctx, msg.Headers)
	if traceID, ok := msg.Headers[trace.HeaderName].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	} else {
		ctx, _ = trace.Ensure(ctx)
	}
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	var err error
	func() {
		// Panic 恢复：按不可重试处理
		defer func() {
			if r := recover(); r != nil {
				log.Error("Handler panic recovered", zap.Any("panic", r))
				err = fmt.Errorf("handler panic: %v", r)
			}
		}()
		err = c.handler(ctx, msg.Body)
	}()

	outcome, errType := Decide(err, msg.Redelivered)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Handler error",
			zap.String("error_type", errType),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	switch outcome {
	case OutcomeAck:
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Failed to ack message", zap.Error(ackErr))
		}
	case OutcomeRequeue:
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
	case OutcomeDLQ:
		c.deadLetter(ctx, msg, errType, err, log)
	}

	metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, string(outcome), time.Since(start))
}

func (c *Consumer) deadLetter(ctx context.Context, msg amqp091.Delivery, errType string, cause error, log *zap.Logger) {
	if c.dlq != nil {
		headers := DLQHeaders(msg.Headers, errType, cause.Error(), c.name)
		if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, headers); err != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
	}
	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack dead-lettered message", zap.Error(err))
	}
}
