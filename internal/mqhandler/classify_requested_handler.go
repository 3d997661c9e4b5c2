package mqhandler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	contractmq "mailassist/contracts/mq"
	"mailassist/internal/provider"
	"mailassist/internal/service"
	"mailassist/pkg/logger"
)

// ErrMissingMailbox 消息中没有 mailbox_id
var ErrMissingMailbox = errors.New("classify request without mailbox id")

// Dispatcher runs one classifier pass.
type Dispatcher interface {
	Run(ctx context.Context, mp provider.MailProvider, mailboxID string) (service.Report, error)
}

// ClassifyRequestedHandler runs queued classifier passes with the service token.
type ClassifyRequestedHandler struct {
	dispatcher Dispatcher
	provider   provider.MailProvider
	logger     *zap.Logger
}

func NewClassifyRequestedHandler(dispatcher Dispatcher, mp provider.MailProvider, logger *zap.Logger) *ClassifyRequestedHandler {
	return &ClassifyRequestedHandler{
		dispatcher: dispatcher,
		provider:   mp,
		logger:     logger,
	}
}

// HandleClassifyRequested 一个邮箱已有分类任务在跑时直接确认，当前任务会覆盖这些邮件
func (h *ClassifyRequestedHandler) HandleClassifyRequested(ctx context.Context, raw json.RawMessage) error {
	var p contractmq.ClassifyRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.WithTrace(ctx, h.logger).Error("Failed to unmarshal classify request", zap.Error(err))
		return err
	}
	if p.MailboxID == "" {
		return ErrMissingMailbox
	}

	log := logger.WithMailbox(ctx, h.logger, p.MailboxID)
	log.Info("Processing classify request", zap.Time("requested_at", p.RequestedAt))

	report, err := h.dispatcher.Run(ctx, h.provider, p.MailboxID)
	switch {
	case errors.Is(err, service.ErrDispatchInProgress):
		log.Info("Classifier already running, skipping request")
		return nil
	case err != nil:
		log.Error("Classifier run failed", zap.Error(err))
		return err
	}

	log.Info("Classify request done",
		zap.Int("inspected", report.Inspected),
		zap.Int("moved", report.Moved),
		zap.Int("failed", report.Failed),
	)
	return nil
}
