package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	contractdb "mailassist/contracts/db"
	contractmq "mailassist/contracts/mq"
	"mailassist/internal/provider"
	"mailassist/internal/service"
	"mailassist/pkg/logger"
)

const (
	defaultDecisionLimit = 50
	maxDecisionLimit     = 500
)

// Publisher queues classification runs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// DecisionLister reads the decision log.
type DecisionLister interface {
	ListByMailbox(ctx context.Context, mailboxID string, limit int) ([]contractdb.ClassificationDecision, error)
}

type ClassifierHandler struct {
	dispatcher *service.Dispatcher
	providers  provider.Factory
	publisher  Publisher
	decisions  DecisionLister
	logger     *zap.Logger
}

// NewClassifierHandler publisher and decisions may be nil.
func NewClassifierHandler(dispatcher *service.Dispatcher, providers provider.Factory, publisher Publisher, decisions DecisionLister, logger *zap.Logger) *ClassifierHandler {
	return &ClassifierHandler{
		dispatcher: dispatcher,
		providers:  providers,
		publisher:  publisher,
		decisions:  decisions,
		logger:     logger,
	}
}

// Classify handles POST /mail/:mailbox/classifier
// ?async=true 时只投递消息，由 worker 执行
func (h *ClassifierHandler) Classify(c *gin.Context) {
	mailboxID := c.Param("mailbox")
	ctx := c.Request.Context()

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.publisher == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "async classification not configured"})
			return
		}
		err := h.publisher.Publish(ctx, contractmq.RoutingKeyClassifyRequested, contractmq.ClassifyRequestedPayload{
			MailboxID:   mailboxID,
			RequestedAt: time.Now().UTC(),
		})
		if err != nil {
			logger.WithMailbox(ctx, h.logger, mailboxID).Error("Failed to queue classification", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue classification"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
		return
	}

	if _, err := h.dispatcher.Run(ctx, h.providers.ForToken(tokenFrom(c)), mailboxID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Decisions handles GET /mail/:mailbox/classifier/decisions
func (h *ClassifierHandler) Decisions(c *gin.Context) {
	if h.decisions == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "decision log not configured"})
		return
	}

	limit := defaultDecisionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxDecisionLimit)
	}

	decisions, err := h.decisions.ListByMailbox(c.Request.Context(), c.Param("mailbox"), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if decisions == nil {
		decisions = []contractdb.ClassificationDecision{}
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions})
}
