package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~40s
		},
		[]string{"routing_key", "queue", "status"},
	)

	// 模型调用延迟（毫秒）
	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_latency_ms",
			Help:    "Language model call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"operation", "status"},
	)

	// 模型调用失败计数
	ModelFailureCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_failure_count",
			Help: "Total number of failed model calls",
		},
		[]string{"operation", "reason"},
	)

	// 被过滤的幻觉字段
	HallucinatedFieldCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hallucinated_field_count",
			Help: "Model output values removed because the thread does not support them",
		},
		[]string{"operation", "field"},
	)

	// 回复降级次数
	ReplyFallbackCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reply_fallback_count",
			Help: "Replies answered with the canned fallback",
		},
	)

	// 分类决策计数
	ClassificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classification_count",
			Help: "Classifier decisions per outcome",
		},
		[]string{"outcome"}, // moved, uncategorized, unresolved, failed, skipped
	)

	// 熔断器状态
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"name"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Queries slower than the configured threshold",
		},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"method", "path", "status"},
	)

	// 邮箱服务调用延迟（秒）
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Mailbox provider call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"operation", "status"},
	)

	// outbox 事件发布计数
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_count",
			Help: "Outbox events relayed to the broker",
		},
		[]string{"status"}, // sent, failed
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue, status string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue, status).Observe(float64(duration.Milliseconds()))
}

// RecordModelCallLatency 记录模型调用延迟
func RecordModelCallLatency(operation, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

// IncrementModelFailure 增加模型调用失败计数
func IncrementModelFailure(operation, reason string) {
	ModelFailureCount.WithLabelValues(operation, reason).Inc()
}

// AddHallucinatedFields 记录被移除的幻觉值
func AddHallucinatedFields(operation, field string, n int) {
	if n <= 0 {
		return
	}
	HallucinatedFieldCount.WithLabelValues(operation, field).Add(float64(n))
}

// IncrementReplyFallback 增加回复降级计数
func IncrementReplyFallback() {
	ReplyFallbackCount.Inc()
}

// IncrementClassification 增加分类决策计数
func IncrementClassification(outcome string) {
	ClassificationCount.WithLabelValues(outcome).Inc()
}

// SetCircuitBreakerState 记录熔断器状态
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordProviderCall 记录邮箱服务调用延迟
func RecordProviderCall(operation, status string, duration time.Duration) {
	ProviderCallDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// IncrementOutboxPublish 增加 outbox 发布计数
func IncrementOutboxPublish(status string) {
	OutboxPublishCount.WithLabelValues(status).Inc()
}
