// Package app wires configuration into a running workflow service: the
// record store, the notification pipeline and the logger.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"

	"staff-appraisal/internal/config"
	"staff-appraisal/internal/db"
	"staff-appraisal/internal/memstore"
	"staff-appraisal/pkg/notify"
	"staff-appraisal/pkg/workflow"
)

// App owns the resources behind a Service.
type App struct {
	Service    *workflow.Service
	Logger     *slog.Logger
	dispatcher *notify.Dispatcher
	pool       *pgxpool.Pool
	redis      *redis.Client
}

// Open builds the service described by cfg. With the postgres driver the
// schema is created if missing.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Logger: logger}

	var (
		store workflow.Store
		notes notify.Store
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		store = memstore.New()
		notes = memstore.NewNotifications()
		logger.Warn("using in-memory storage; data is lost on exit")
	default:
		pool, err := db.Connect(ctx, db.Options{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		a.pool = pool
		pg := workflow.NewPgStore(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = pg
		notes = pg.Notifications()
	}

	senders := []notify.Sender{notify.StoreSender{Store: notes}}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable; publishes will fail until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		senders = append(senders, notify.NewRedisPublisher(a.redis, cfg.Redis.ChannelPrefix,
			notify.BreakerConfig{
				MaxRequests:         cfg.Notify.Breaker.MaxRequests,
				Interval:            cfg.Notify.Breaker.Interval,
				Timeout:             cfg.Notify.Breaker.Timeout,
				ConsecutiveFailures: cfg.Notify.Breaker.ConsecutiveFailures,
			},
			notify.RetryConfig{
				MaxRetries:      cfg.Notify.Retry.MaxRetries,
				InitialInterval: cfg.Notify.Retry.InitialInterval,
				MaxInterval:     cfg.Notify.Retry.MaxInterval,
			},
			logger))
	}

	a.dispatcher = notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
	}, logger, senders...)
	a.dispatcher.Start(context.WithoutCancel(ctx))

	a.Service = workflow.New(store,
		workflow.WithNotifier(a.dispatcher),
		workflow.WithNotifications(notes),
		workflow.WithLogger(logger),
	)
	return a, nil
}

// Close drains pending notifications and releases connections.
func (a *App) Close() {
	a.dispatcher.Close()
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
