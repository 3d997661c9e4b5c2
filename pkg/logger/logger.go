package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mailassist/pkg/trace"
)

// NewLogger 创建 JSON logger；level 为空或无法解析时使用 info
func NewLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build(zap.Fields(zap.String("app", "mailassist")))
	if err != nil {
		panic(err)
	}
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}

// WithMailbox 附加邮箱与 trace 字段，用于单次请求内的日志
func WithMailbox(ctx context.Context, logger *zap.Logger, mailboxID string) *zap.Logger {
	return WithTrace(ctx, logger).With(zap.String("mailbox_id", mailboxID))
}
