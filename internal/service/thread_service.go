package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailassist/internal/mail"
	"mailassist/internal/pipeline"
	"mailassist/internal/provider"
	"mailassist/internal/reconcile"
	"mailassist/pkg/logger"
)

var (
	// ErrNoContextMessages 请求没有携带任何邮件 id
	ErrNoContextMessages = errors.New("no context messages")
	// ErrEmptyThread 所有邮件都获取失败
	ErrEmptyThread = errors.New("thread has no readable message")
)

// ThreadRequest addresses the messages of one conversation.
type ThreadRequest struct {
	MailboxID string
	FolderID  string
	ThreadID  string
	// ContextMessageIDs are "<id>" (in FolderID) or "<id>@<folder>".
	ContextMessageIDs []string
}

// ThreadService runs the event, summary and reply operations on a thread.
type ThreadService struct {
	pipeline   *pipeline.Pipeline
	reconciler *reconcile.Reconciler
	normalizer *mail.Normalizer
	logger     *zap.Logger
}

func NewThreadService(p *pipeline.Pipeline, normalizer *mail.Normalizer, logger *zap.Logger) *ThreadService {
	return &ThreadService{
		pipeline:   p,
		reconciler: reconcile.New(p, logger),
		normalizer: normalizer,
		logger:     logger,
	}
}

// LoadThread fetches every context message in order. A message that cannot
// be fetched leaves a gap; the call fails only when nothing was fetched.
func (s *ThreadService) LoadThread(ctx context.Context, mp provider.MailProvider, req ThreadRequest) (mail.Thread, error) {
	if len(req.ContextMessageIDs) == 0 {
		return nil, ErrNoContextMessages
	}

	log := logger.WithMailbox(ctx, s.logger, req.MailboxID)
	thread := make(mail.Thread, 0, len(req.ContextMessageIDs))
	var lastErr error
	for _, ref := range req.ContextMessageIDs {
		loc := mail.ParseLocator(ref, req.FolderID)
		m, err := mp.GetMessage(ctx, req.MailboxID, loc.FolderID, loc.MessageID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("Skipping unreadable message",
				zap.String("message", loc.String()),
				zap.Error(err),
			)
			lastErr = err
			thread = append(thread, nil)
			continue
		}
		thread = append(thread, m)
	}

	if len(thread.Messages()) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmptyThread, lastErr)
		}
		return nil, ErrEmptyThread
	}
	return thread, nil
}

// SuggestEvent proposes a calendar event whose attendees all appear in the thread.
func (s *ThreadService) SuggestEvent(ctx context.Context, mp provider.MailProvider, req ThreadRequest) (pipeline.EventResult, error) {
	logger.WithMailbox(ctx, s.logger, req.MailboxID).Info("Event suggestion requested", zap.String("thread_id", req.ThreadID))

	thread, err := s.LoadThread(ctx, mp, req)
	if err != nil {
		return pipeline.EventResult{}, err
	}
	text := s.normalizer.Thread(thread)
	known := mail.ExtractAddresses(thread)

	candidate, err := s.pipeline.SuggestEvent(ctx, known.List(), text)
	if err != nil {
		return pipeline.EventResult{}, err
	}
	return s.reconciler.ReconcileEvent(ctx, candidate, known, text)
}

func (s *ThreadService) Summarize(ctx context.Context, mp provider.MailProvider, req ThreadRequest) (pipeline.SummaryResult, error) {
	logger.WithMailbox(ctx, s.logger, req.MailboxID).Info("Summary requested", zap.String("thread_id", req.ThreadID))

	thread, err := s.LoadThread(ctx, mp, req)
	if err != nil {
		return pipeline.SummaryResult{}, err
	}

	res, err := s.pipeline.Summarize(ctx, s.normalizer.Thread(thread))
	if err != nil {
		return pipeline.SummaryResult{}, err
	}
	return reconcile.ReconcileSummary(res, thread), nil
}

// Reply never fails on a model error; the canned fallback is returned instead.
func (s *ThreadService) Reply(ctx context.Context, mp provider.MailProvider, req ThreadRequest) (pipeline.ReplyResult, error) {
	logger.WithMailbox(ctx, s.logger, req.MailboxID).Info("Reply requested", zap.String("thread_id", req.ThreadID))

	thread, err := s.LoadThread(ctx, mp, req)
	if err != nil {
		return pipeline.ReplyResult{}, err
	}

	res, err := s.pipeline.Reply(ctx, s.normalizer.Thread(thread))
	return s.reconciler.ReconcileReply(ctx, res, err, thread.Subject())
}
