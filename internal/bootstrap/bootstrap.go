// Package bootstrap wires the components shared by the API and the worker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailassist/config"
	"mailassist/internal/httpserver"
	"mailassist/internal/llm"
	"mailassist/internal/mail"
	"mailassist/internal/pipeline"
	"mailassist/internal/provider"
	"mailassist/internal/provider/imap"
	"mailassist/internal/provider/rest"
	"mailassist/internal/repository"
	"mailassist/internal/service"
	"mailassist/pkg/circuitbreaker"
	"mailassist/pkg/db"
	"mailassist/pkg/metrics"
	"mailassist/pkg/mq"
	"mailassist/pkg/outbox"
	redisclient "mailassist/pkg/redis"
	"mailassist/pkg/util"
)

// App holds the long-lived components. DB, Redis, Publisher and Decisions
// are nil when the matching section is not configured.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Publisher  *mq.Publisher
	Decisions  *repository.DecisionRepository
	// Outbox is set when both the database and the broker are configured.
	Outbox     *outbox.Repository
	Providers  provider.Factory
	Pipeline   *pipeline.Pipeline
	Normalizer *mail.Normalizer
	Threads    *service.ThreadService
	Dispatcher *service.Dispatcher

	closers []func()
}

// New connects the configured backends. Any configured backend that cannot
// be reached fails startup.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.DB.Enabled() {
		a.DB, err = db.NewConnection(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.DB.Close)
		if err = db.Migrate(ctx, a.DB, repository.Migrations, repository.MigrationsDir); err != nil {
			return nil, err
		}
		a.Decisions = repository.NewDecisionRepository(a.DB)
		logger.Info("Database connection established")
	}

	if cfg.Redis.Addr != "" {
		a.Redis, err = redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = a.Redis.Close() })
		logger.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.MQ.URL != "" {
		a.Publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to init publisher: %w", err)
		}
		a.closers = append(a.closers, a.Publisher.Close)
		if a.DB != nil {
			a.Outbox = outbox.NewRepository(a.DB)
		}
	}

	a.Providers, err = newProviders(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}

	breaker := circuitbreaker.NewCircuitBreaker("llm", cfg.LLM.Breaker)
	breaker.OnStateChange = func(name string, from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState(name, int(to))
		logger.Warn("Circuit breaker state changed",
			zap.String("name", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	runtime := llm.Guard(llm.NewOpenAIRuntime(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Timeout, logger), breaker, logger)

	a.Pipeline = pipeline.New(runtime, cfg.LLM.Operations)
	a.Normalizer = mail.NewNormalizer(cfg.Classifier.QuotePrefixes)
	a.Threads = service.NewThreadService(a.Pipeline, a.Normalizer, logger)
	a.Dispatcher = a.newDispatcher()
	return a, nil
}

func newProviders(cfg config.ProviderConfig, logger *zap.Logger) (provider.Factory, error) {
	switch cfg.Kind {
	case "rest":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("provider.base_url is required")
		}
		return rest.NewFactory(cfg.BaseURL, cfg.Timeout, logger), nil
	case "imap":
		if cfg.IMAP.Host == "" {
			return nil, fmt.Errorf("provider.imap.host is required")
		}
		return imap.NewClient(cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.Username, cfg.IMAP.Password, cfg.IMAP.TLS, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

func (a *App) newDispatcher() *service.Dispatcher {
	d := service.NewDispatcher(a.Pipeline, a.Normalizer, a.Config.Classifier.SortLimit, a.Logger)
	if a.Redis != nil {
		d.SetLocker(util.NewLocker(a.Redis, a.Config.Classifier.LockTTL))
		d.SetDeduper(util.NewDeduper(a.Redis, a.Config.Classifier.DedupTTL, a.Logger))
	}
	if a.Decisions != nil {
		d.SetRecorder(a.Decisions)
	}
	switch {
	case a.Outbox != nil:
		d.SetNotifier(a.Outbox)
	case a.Publisher != nil:
		d.SetNotifier(a.Publisher)
	}
	return d
}

// Checks returns the readiness probes of the configured backends.
func (a *App) Checks() map[string]httpserver.Check {
	checks := map[string]httpserver.Check{}
	if a.DB != nil {
		checks["postgres"] = a.DB.Ping
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.Publisher != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if !a.Publisher.IsConnected() {
				return fmt.Errorf("publisher connection closed")
			}
			return nil
		}
	}
	return checks
}

// Close releases backends in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
