package handler

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailassist/internal/llm"
	"mailassist/internal/provider"
	"mailassist/internal/service"
	"mailassist/pkg/logger"
)

// statusClientClosed 客户端提前断开（nginx 约定）
const statusClientClosed = 499

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	var statusErr *provider.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	case errors.Is(err, llm.ErrModelInvocation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoContextMessages):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInboxNotFound), errors.Is(err, provider.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDispatchInProgress):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &statusErr), errors.As(err, &netErr):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrEmptyThread):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusFor(err)
	log = logger.WithTrace(c.Request.Context(), log)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Info("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
