// Package infra поднимает общие для всех бинарников зависимости:
// PostgreSQL, кеш Redis и публикацию событий в RabbitMQ.
package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-manager/internal/cache"
	"github.com/magabrotheeeer/subscription-manager/internal/config"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/migrations"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
	"github.com/magabrotheeeer/subscription-manager/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-manager/internal/storage"
)

// Cache используется сервисами подписок, тарифов и отчётов, а также фоновой проверкой.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher публикует события жизненного цикла подписок.
type Publisher interface {
	Publish(ctx context.Context, event models.SubscriptionEvent) error
}

// Options управляет тем, какие шаги выполняются при старте.
type Options struct {
	// Migrate применяет миграции. Иначе Open ждёт, пока их применит другой процесс.
	Migrate bool
	// Events подключает RabbitMQ, если он настроен.
	Events bool
}

// Resources хранит открытые подключения. Close освобождает их в обратном порядке.
type Resources struct {
	Storage *storage.Storage
	Cache   Cache
	Events  Publisher

	log     *slog.Logger
	closers []func() error
}

// Open подключается к зависимостям согласно конфигу. Пустой адрес Redis
// или URL RabbitMQ заменяет соответствующую зависимость заглушкой.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*Resources, error) {
	res := &Resources{
		Cache:  cache.Noop{},
		Events: rabbitmq.NoopPublisher{},
		log:    log,
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	res.Storage = db
	res.closers = append(res.closers, db.Close)

	if opts.Migrate {
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			res.Close()
			return nil, err
		}
	} else if err := waitForDB(ctx, db); err != nil {
		res.Close()
		return nil, err
	}

	if cfg.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("cache not initialized: %w", err)
		}
		res.Cache = c
		res.closers = append(res.closers, c.Close)
	} else {
		log.Info("redis address is empty, caching disabled")
	}

	if opts.Events && cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		res.closers = append(res.closers, conn.Close)

		ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.EventsQueue(cfg.Exchange))
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		res.closers = append(res.closers, ch.Close)
		res.Events = rabbitmq.NewPublisher(ch, cfg.Exchange)
		watchConnection(conn, log)
	} else if opts.Events {
		log.Info("rabbitmq url is empty, lifecycle events disabled")
	}

	return res, nil
}

// Close закрывает подключения в порядке, обратном открытию.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.Error("failed to close resource", sl.Err(err))
		}
	}
	r.closers = nil
}

func waitForDB(ctx context.Context, db *storage.Storage) error {
	var err error
	for range 10 {
		if err = storage.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

func watchConnection(conn *amqp.Connection, log *slog.Logger) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			log.Warn("rabbitmq connection closed, events will fail until restart", slog.String("reason", err.Reason))
		}
	}()
}
