package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailassist/internal/handler"
	"mailassist/pkg/otel"
)

// Check is one readiness probe.
type Check func(ctx context.Context) error

type Router struct {
	Engine *gin.Engine
}

// NewRouter checks run on /readyz; a nil classifierHandler leaves the
// classifier routes unmounted.
func NewRouter(
	threadHandler *handler.ThreadHandler,
	classifierHandler *handler.ClassifierHandler,
	checks map[string]Check,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), MetricsMiddleware(), AccessLogMiddleware(logger))

	// Health checks
	healthz := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/healthz", healthz)
	r.HEAD("/healthz", healthz)
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "check": name, "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	mbx := r.Group("/mail/:mailbox")
	mbx.Use(handler.TokenMiddleware())
	{
		thread := mbx.Group("/folder/:folder/thread/:thread")
		thread.POST("/event_suggestion", threadHandler.EventSuggestion)
		thread.POST("/summary", threadHandler.Summary)
		thread.POST("/reply", threadHandler.Reply)

		if classifierHandler != nil {
			mbx.POST("/classifier", classifierHandler.Classify)
			mbx.GET("/classifier/decisions", classifierHandler.Decisions)
		}
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
