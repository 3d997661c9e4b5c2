package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mailassist/config"
	"mailassist/internal/bootstrap"
	"mailassist/internal/handler"
	"mailassist/internal/httpserver"
	"mailassist/pkg/logger"
	"mailassist/pkg/otel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	shutdownTracing, err := otel.Init(cfg.Otel, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Startup failed", zap.Error(err))
	}
	defer app.Close()

	// Init Handlers
	threadHandler := handler.NewThreadHandler(app.Threads, app.Providers, log)
	var publisher handler.Publisher
	if app.Publisher != nil {
		publisher = app.Publisher
	}
	var decisions handler.DecisionLister
	if app.Decisions != nil {
		decisions = app.Decisions
	}
	classifierHandler := handler.NewClassifierHandler(app.Dispatcher, app.Providers, publisher, decisions, log)

	// Router
	router := httpserver.NewRouter(threadHandler, classifierHandler, app.Checks(), log)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
