// Package reconcile checks model candidates against facts taken from the
// thread itself before they are returned to the caller.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"mailassist/internal/llm"
	"mailassist/internal/mail"
	"mailassist/internal/pipeline"
	"mailassist/pkg/logger"
	"mailassist/pkg/metrics"
)

const (
	FallbackSubject = "Re: Votre message"
	FallbackBody    = "Merci pour votre message. Je reviendrai vers vous prochainement."
	FallbackTone    = "professionnel"

	replyPrefix = "Re: "
)

// Verifier runs the second model pass on an event candidate.
type Verifier interface {
	VerifyEvent(ctx context.Context, candidate pipeline.EventResult, text string) (pipeline.Verification, error)
}

type Reconciler struct {
	verifier Verifier
	logger   *zap.Logger
}

func New(verifier Verifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{verifier: verifier, logger: logger}
}

// FilterEmails keeps the addresses of emails present in known, normalized
// and deduplicated in first-seen order. The removed addresses are returned
// as written.
func FilterEmails(emails []string, known *mail.AddressSet) (kept, removed []string) {
	keep := mail.NewAddressSet()
	for _, e := range emails {
		if !known.Contains(e) {
			removed = append(removed, e)
			continue
		}
		keep.Add(e)
	}
	return keep.List(), removed
}

func (r *Reconciler) dropHallucinated(ctx context.Context, ev pipeline.EventResult, known *mail.AddressSet, stage string) pipeline.EventResult {
	kept, removed := FilterEmails(ev.Emails, known)
	if len(removed) > 0 {
		logger.WithTrace(ctx, r.logger).Info("The following e-mails have been hallucinated and removed",
			zap.String("stage", stage),
			zap.Strings("hallucinated", removed),
		)
		metrics.AddHallucinatedFields(pipeline.OpEvent, "emails", len(removed))
	}
	ev.Emails = kept
	return ev
}

// ReconcileEvent filters hallucinated addresses, runs the verifier and merges
// its corrections. A verifier correction never reintroduces a removed address.
func (r *Reconciler) ReconcileEvent(ctx context.Context, candidate pipeline.EventResult, known *mail.AddressSet, text string) (pipeline.EventResult, error) {
	if candidate.NoEvent {
		return pipeline.EventResult{NoEvent: true}, nil
	}

	ev := r.dropHallucinated(ctx, candidate, known, "candidate")

	verdict, err := r.verifier.VerifyEvent(ctx, ev, text)
	if err != nil {
		return pipeline.EventResult{}, err
	}
	switch {
	case verdict.Undecodable:
		logger.WithTrace(ctx, r.logger).Warn("Verifier answer not understood, keeping candidate",
			zap.String("answer", verdict.Raw),
		)
	case verdict.Patch != nil:
		firstPass := ev.Emails
		ev = r.dropHallucinated(ctx, verdict.Patch.Apply(ev), known, "verification")
		// a correction made only of foreign addresses does not wipe the attendees
		if len(ev.Emails) == 0 && len(firstPass) > 0 {
			ev.Emails = firstPass
		}
	}

	ev.Date = r.checkFormat(ctx, "date", ev.Date, "2006-01-02")
	ev.StartTime = r.checkFormat(ctx, "start_time", ev.StartTime, "15:04")

	if ev.Emails == nil {
		ev.Emails = []string{}
	}
	if ev.Names == nil {
		ev.Names = []string{}
	}
	return ev, nil
}

func (r *Reconciler) checkFormat(ctx context.Context, field, value, layout string) string {
	if value == "" {
		return ""
	}
	if _, err := time.Parse(layout, value); err == nil {
		return value
	}
	logger.WithTrace(ctx, r.logger).Info("Dropped malformed event field",
		zap.String("field", field),
		zap.String("value", value),
	)
	metrics.AddHallucinatedFields(pipeline.OpEvent, field, 1)
	return ""
}

// ReconcileSummary backfills participants from the thread headers.
func ReconcileSummary(res pipeline.SummaryResult, thread mail.Thread) pipeline.SummaryResult {
	res.Participants = lo.Compact(lo.Map(res.Participants, func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
	if len(res.Participants) == 0 {
		res.Participants = thread.ParticipantLabels()
	}
	if res.KeyPoints == nil {
		res.KeyPoints = []string{}
	}
	if res.Participants == nil {
		res.Participants = []string{}
	}
	return res
}

// ReplySubject returns subject with exactly one "Re: " prefix.
// An empty subject falls back to the thread subject, then to FallbackSubject.
func ReplySubject(subject, threadSubject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = strings.TrimSpace(threadSubject)
	}
	if subject == "" {
		return FallbackSubject
	}
	if hasReplyPrefix(subject) {
		return subject
	}
	return replyPrefix + subject
}

func hasReplyPrefix(s string) bool {
	return len(s) >= 3 && strings.EqualFold(s[:3], "re:")
}

// FallbackReply is the canned answer used when the model fails.
func FallbackReply(threadSubject string) pipeline.ReplyResult {
	return pipeline.ReplyResult{
		Subject: ReplySubject("", threadSubject),
		Body:    FallbackBody,
		Tone:    FallbackTone,
	}
}

// ReconcileReply substitutes the fallback when err is a model failure and
// normalizes the subject. Any other error is returned unchanged.
func (r *Reconciler) ReconcileReply(ctx context.Context, res pipeline.ReplyResult, err error, threadSubject string) (pipeline.ReplyResult, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || !errors.Is(err, llm.ErrModelInvocation) {
			return pipeline.ReplyResult{}, err
		}
		logger.WithTrace(ctx, r.logger).Error("Reply generation failed, using fallback", zap.Error(err))
		metrics.IncrementReplyFallback()
		return FallbackReply(threadSubject), nil
	}

	res.Subject = ReplySubject(res.Subject, threadSubject)
	if strings.TrimSpace(res.Body) == "" {
		res.Body = FallbackBody
	}
	if strings.TrimSpace(res.Tone) == "" {
		res.Tone = FallbackTone
	}
	return res, nil
}
