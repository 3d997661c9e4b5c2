package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mailassist/pkg/circuitbreaker"
	"mailassist/pkg/logger"
	"mailassist/pkg/metrics"
	"mailassist/pkg/otel"
)

// GuardedRuntime 为模型调用加上熔断、指标和追踪，所有错误统一为 ModelInvocationError
type GuardedRuntime struct {
	next    Runtime
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// Guard wraps next. A nil breaker disables circuit breaking.
func Guard(next Runtime, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *GuardedRuntime {
	return &GuardedRuntime{next: next, breaker: breaker, logger: logger}
}

func (g *GuardedRuntime) Invoke(ctx context.Context, req Request) (string, error) {
	ctx, span := otel.StartSpan(ctx, "llm."+req.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.operation", req.Operation),
			attribute.String("llm.model", req.Params.Model),
		),
	)
	defer span.End()

	start := time.Now()
	var out string
	call := func() error {
		var err error
		out, err = g.next.Invoke(ctx, req)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(call)
	} else {
		err = call()
	}

	if err != nil {
		reason := "error"
		if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
			reason = "circuit_open"
		} else if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		metrics.RecordModelCallLatency(req.Operation, reason, time.Since(start))
		metrics.IncrementModelFailure(req.Operation, reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		logger.WithTrace(ctx, g.logger).Warn("Model call failed",
			zap.String("operation", req.Operation),
			zap.String("model", req.Params.Model),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return "", InvocationError(req.Operation, err)
	}

	metrics.RecordModelCallLatency(req.Operation, "ok", time.Since(start))
	span.SetStatus(codes.Ok, "")
	return out, nil
}
