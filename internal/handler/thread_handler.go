package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailassist/internal/provider"
	"mailassist/internal/service"
)

// ThreadRequest is the body of every thread operation.
type ThreadRequest struct {
	ContextMessageUID []string `json:"context_message_uid"`
}

type ThreadHandler struct {
	threads   *service.ThreadService
	providers provider.Factory
	logger    *zap.Logger
}

func NewThreadHandler(threads *service.ThreadService, providers provider.Factory, logger *zap.Logger) *ThreadHandler {
	return &ThreadHandler{threads: threads, providers: providers, logger: logger}
}

func (h *ThreadHandler) bind(c *gin.Context) (service.ThreadRequest, bool) {
	var body ThreadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return service.ThreadRequest{}, false
	}
	return service.ThreadRequest{
		MailboxID:         c.Param("mailbox"),
		FolderID:          c.Param("folder"),
		ThreadID:          c.Param("thread"),
		ContextMessageIDs: body.ContextMessageUID,
	}, true
}

func serve[T any](h *ThreadHandler, c *gin.Context, op func(context.Context, provider.MailProvider, service.ThreadRequest) (T, error)) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	res, err := op(c.Request.Context(), h.providers.ForToken(tokenFrom(c)), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EventSuggestion handles POST /mail/:mailbox/folder/:folder/thread/:thread/event_suggestion
func (h *ThreadHandler) EventSuggestion(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ev, err := h.threads.SuggestEvent(c.Request.Context(), h.providers.ForToken(tokenFrom(c)), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if ev.NoEvent {
		c.JSON(http.StatusOK, gin.H{"no_event": true})
		return
	}
	c.JSON(http.StatusOK, ev)
}

// Summary handles POST /mail/:mailbox/folder/:folder/thread/:thread/summary
func (h *ThreadHandler) Summary(c *gin.Context) {
	serve(h, c, h.threads.Summarize)
}

// Reply handles POST /mail/:mailbox/folder/:folder/thread/:thread/reply
func (h *ThreadHandler) Reply(c *gin.Context) {
	serve(h, c, h.threads.Reply)
}
