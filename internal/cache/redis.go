// Package cache реализует кеш чтения подписок и отчётов поверх Redis.
// Значения хранятся в JSON; промах кеша не является ошибкой.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/subscription-manager/internal/config"
)

// ReportKey задаёт ключ сводного отчёта по подпискам.
const ReportKey = "report:subscriptions"

// SubscriptionKey возвращает ключ кеша для подписки.
func SubscriptionKey(id int64) string {
	return "subscription:" + strconv.FormatInt(id, 10)
}

// Cache оборачивает клиент Redis с TTL по умолчанию.
type Cache struct {
	Db  *redis.Client
	ttl time.Duration
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db, ttl: cfg.CacheTTL}, nil
}

// Get читает значение по ключу в result. found == false означает промах.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет значение. Нулевой expiration заменяется TTL из конфига.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if expiration == 0 {
		expiration = c.ttl
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет ключи. Отсутствующие ключи игнорируются.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	const op = "cache.Invalidate"
	if len(keys) == 0 {
		return nil
	}
	if err := c.Db.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// Noop ничего не хранит. Используется, когда Redis не настроен.
type Noop struct{}

// Get всегда сообщает о промахе.
func (Noop) Get(context.Context, string, any) (bool, error) { return false, nil }

// Set ничего не делает.
func (Noop) Set(context.Context, string, any, time.Duration) error { return nil }

// Invalidate ничего не делает.
func (Noop) Invalidate(context.Context, ...string) error { return nil }
