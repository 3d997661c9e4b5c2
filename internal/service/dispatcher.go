package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	contractdb "mailassist/contracts/db"
	contractmq "mailassist/contracts/mq"
	"mailassist/internal/mail"
	"mailassist/internal/pipeline"
	"mailassist/internal/provider"
	"mailassist/pkg/logger"
	"mailassist/pkg/metrics"
	"mailassist/pkg/util"
)

const (
	inboxName      = "inbox"
	dedupHandler   = "classifier"
	outcomeSkipped = "skipped"
)

var (
	// ErrInboxNotFound 邮箱中没有名为 inbox 的文件夹
	ErrInboxNotFound = errors.New("inbox folder not found")
	// ErrDispatchInProgress 同一邮箱已有分类任务在运行
	ErrDispatchInProgress = errors.New("classification already running for this mailbox")
)

// Classifier picks a folder path for one normalized message.
type Classifier interface {
	Classify(ctx context.Context, folders, email string) (string, error)
}

// Locker serializes runs per mailbox.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(context.Context) error, error)
}

// Deduper remembers inspected messages across runs.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

// DecisionRecorder stores every decision.
type DecisionRecorder interface {
	Insert(ctx context.Context, d contractdb.ClassificationDecision) error
}

// Notifier announces moved messages.
type Notifier interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Report counts what one run did.
type Report struct {
	Inspected     int `json:"inspected"`
	Moved         int `json:"moved"`
	Uncategorized int `json:"uncategorized"`
	Unresolved    int `json:"unresolved"`
	Failed        int `json:"failed"`
	Skipped       int `json:"skipped"`
}

func (r *Report) add(outcome string) {
	switch outcome {
	case contractdb.OutcomeMoved:
		r.Moved++
	case contractdb.OutcomeUncategorized:
		r.Uncategorized++
	case contractdb.OutcomeUnresolved:
		r.Unresolved++
	case contractdb.OutcomeFailed:
		r.Failed++
	}
}

// Dispatcher files seen inbox messages into the folder the model picks.
// Messages are handled one at a time; a move changes the state the next
// decision is computed against.
type Dispatcher struct {
	classifier Classifier
	normalizer *mail.Normalizer
	limit      int
	logger     *zap.Logger

	locker   Locker
	deduper  Deduper
	recorder DecisionRecorder
	notifier Notifier
}

func NewDispatcher(classifier Classifier, normalizer *mail.Normalizer, limit int, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		classifier: classifier,
		normalizer: normalizer,
		limit:      limit,
		logger:     logger,
	}
}

func (d *Dispatcher) SetLocker(l Locker)             { d.locker = l }
func (d *Dispatcher) SetDeduper(dd Deduper)          { d.deduper = dd }
func (d *Dispatcher) SetRecorder(r DecisionRecorder) { d.recorder = r }
func (d *Dispatcher) SetNotifier(n Notifier)         { d.notifier = n }

// Run classifies at most limit seen inbox messages of mailboxID.
func (d *Dispatcher) Run(ctx context.Context, mp provider.MailProvider, mailboxID string) (Report, error) {
	log := logger.WithMailbox(ctx, d.logger, mailboxID)
	var report Report

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, dedupHandler+":"+mailboxID)
		switch {
		case errors.Is(err, util.ErrLockHeld):
			return report, ErrDispatchInProgress
		case err != nil:
			log.Warn("Mailbox lock unavailable, running unlocked", zap.Error(err))
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("Failed to release mailbox lock", zap.Error(err))
				}
			}()
		}
	}

	folders, err := mp.ListFolders(ctx, mailboxID)
	if err != nil {
		return report, err
	}
	inboxID, ok := folders.FindIDByName(inboxName)
	if !ok {
		return report, ErrInboxNotFound
	}

	threads, err := mp.ListThreads(ctx, mailboxID, inboxID)
	if err != nil {
		return report, err
	}
	ids := mail.SeenMessageIDs(threads, inboxID)
	listing := folders.RenderForModel()

	log.Info("Classifier run started",
		zap.String("inbox_id", inboxID),
		zap.Int("candidates", len(ids)),
		zap.Int("limit", d.limit),
	)

	for _, id := range ids {
		if report.Inspected >= d.limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		key := mailboxID + ":" + id
		if d.deduper != nil && !d.deduper.AcquireOnce(ctx, dedupHandler, key) {
			report.Skipped++
			metrics.IncrementClassification(outcomeSkipped)
			continue
		}

		report.Inspected++
		decision := d.classifyOne(ctx, mp, mailboxID, inboxID, id, folders, listing)
		report.add(decision.Outcome)
		metrics.IncrementClassification(decision.Outcome)

		if decision.Outcome == contractdb.OutcomeFailed && d.deduper != nil {
			d.deduper.Release(context.WithoutCancel(ctx), dedupHandler, key)
		}
		d.record(ctx, log, decision)
	}

	log.Info("Classifier run finished",
		zap.Int("inspected", report.Inspected),
		zap.Int("moved", report.Moved),
		zap.Int("uncategorized", report.Uncategorized),
		zap.Int("unresolved", report.Unresolved),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func (d *Dispatcher) classifyOne(ctx context.Context, mp provider.MailProvider, mailboxID, inboxID, id string, folders mail.FolderTree, listing string) contractdb.ClassificationDecision {
	log := logger.WithMailbox(ctx, d.logger, mailboxID).With(zap.String("message_id", id))
	decision := contractdb.ClassificationDecision{MailboxID: mailboxID, MessageID: id}
	fail := func(msg string, err error) contractdb.ClassificationDecision {
		log.Warn(msg, zap.Error(err))
		decision.Outcome = contractdb.OutcomeFailed
		decision.Error = err.Error()
		return decision
	}

	msg, err := mp.GetMessage(ctx, mailboxID, inboxID, id)
	if err != nil {
		return fail("Failed to fetch message", err)
	}

	path, err := d.classifier.Classify(ctx, listing, d.normalizer.Single(msg))
	if err != nil {
		return fail("Failed to classify message", err)
	}
	decision.FolderPath = path

	if path == pipeline.Uncategorized {
		decision.Outcome = contractdb.OutcomeUncategorized
		return decision
	}

	targetID, ok := folders.FindIDByPath(path)
	if !ok {
		log.Info("Model picked an unknown folder", zap.String("path", path))
		decision.Outcome = contractdb.OutcomeUnresolved
		return decision
	}
	decision.FolderID = targetID
	if targetID == inboxID {
		decision.Outcome = contractdb.OutcomeUncategorized
		return decision
	}

	uid := msg.UID
	if uid == "" {
		uid = id
	}
	if err := mp.MoveMessages(ctx, mailboxID, targetID, []string{uid}); err != nil {
		return fail("Failed to move message", err)
	}
	decision.Outcome = contractdb.OutcomeMoved
	log.Info("Message moved", zap.String("path", path), zap.String("folder_id", targetID))

	if d.notifier != nil {
		if err := d.notifier.Publish(ctx, contractmq.RoutingKeyMailClassified, contractmq.MailClassifiedPayload{
			MailboxID:    mailboxID,
			MessageID:    uid,
			FolderID:     targetID,
			FolderPath:   path,
			ClassifiedAt: time.Now().UTC(),
		}); err != nil {
			log.Warn("Failed to publish classification event", zap.Error(err))
		}
	}
	return decision
}

func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, decision contractdb.ClassificationDecision) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Insert(context.WithoutCancel(ctx), decision); err != nil {
		log.Warn("Failed to record classification decision",
			zap.String("message_id", decision.MessageID),
			zap.Error(err),
		)
	}
}
