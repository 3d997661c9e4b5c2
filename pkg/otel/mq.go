package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apptrace "mailassist/pkg/trace"
)

// MQPublishSpan 在 MQ 发布时创建 span
func MQPublishSpan(ctx context.Context, routingKey string, exchange string) (context.Context, trace.Span) {
	return mqSpan(ctx, "publish", trace.SpanKindProducer, exchange, routingKey)
}

// MQConsumeSpan 在 MQ 消费时创建 span；trace context 需先用 ExtractHeaders 取出
func MQConsumeSpan(ctx context.Context, routingKey string, queue string) (context.Context, trace.Span) {
	return mqSpan(ctx, "process", trace.SpanKindConsumer, queue, routingKey)
}

func mqSpan(ctx context.Context, operation string, kind trace.SpanKind, destination, routingKey string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.operation", operation),
		attribute.String("messaging.destination.name", destination),
		attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
	}
	if id := apptrace.FromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("app.trace_id", id))
	}
	return Tracer().Start(ctx, destination+" "+operation,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// MQHeaderCarrier 实现 TextMapCarrier，读写 RabbitMQ 消息头中的 trace context
type MQHeaderCarrier map[string]interface{}

var _ propagation.TextMapCarrier = MQHeaderCarrier(nil)

func (c MQHeaderCarrier) Get(key string) string {
	if str, ok := c[key].(string); ok {
		return str
	}
	return ""
}

func (c MQHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c MQHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectHeaders 将当前 trace context 写入消息头
func InjectHeaders(ctx context.Context, headers map[string]interface{}) map[string]interface{} {
	if headers == nil {
		headers = make(map[string]interface{})
	}
	GetTextMapPropagator().Inject(ctx, MQHeaderCarrier(headers))
	return headers
}

// ExtractHeaders 从消息头中恢复 trace context
func ExtractHeaders(ctx context.Context, headers map[string]interface{}) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return GetTextMapPropagator().Extract(ctx, MQHeaderCarrier(headers))
}
