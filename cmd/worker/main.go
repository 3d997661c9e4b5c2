package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mailassist/config"
	contractmq "mailassist/contracts/mq"
	"mailassist/internal/bootstrap"
	"mailassist/internal/mqhandler"
	"mailassist/pkg/logger"
	"mailassist/pkg/mq"
	"mailassist/pkg/otel"
	"mailassist/pkg/outbox"
)

const classifyQueue = "mailbox.classify.requested.q"

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

	if cfg.MQ.URL == "" {
		log.Fatal("Worker requires mq.url")
	}
	if cfg.Provider.ServiceToken == "" && cfg.Provider.Kind == "rest" {
		log.Fatal("Worker requires provider.service_token")
	}

	shutdownTracing, err := otel.Init(cfg.Otel, log)
	if err != nil {
		log.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	log.Info("Starting worker service...")

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Startup failed", zap.Error(err))
	}
	defer app.Close()

	classifyHandler := mqhandler.NewClassifyRequestedHandler(
		app.Dispatcher,
		app.Providers.ForToken(cfg.Provider.ServiceToken),
		log,
	)

	log.Info("Initializing classify consumer", zap.String("queue", classifyQueue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, classifyQueue, contractmq.RoutingKeyClassifyRequested, log)
	if err != nil {
		log.Fatal("failed to init classify consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(classifyHandler.HandleClassifyRequested)
	consumer.SetDLQ(app.Publisher)

	if app.Outbox != nil {
		go outbox.NewRelay(app.Outbox, app.Publisher, log).Run(ctx)
	}

	log.Info("Worker is ready to process messages")
	if err := consumer.StartConsuming(ctx); err != nil {
		log.Error("classify consumer stopped", zap.Error(err))
		return
	}
	log.Info("Worker stopped")
}
