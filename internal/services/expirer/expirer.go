// Package expirer периодически переводит просроченные подписки в EXPIRED.
package expirer

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/cache"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Repository переводит подписки ACTIVE с EndDate < now в EXPIRED одним запросом.
type Repository interface {
	ExpireSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error)
}

// Cache описывает инвалидацию кеша.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// EventPublisher публикует события жизненного цикла.
type EventPublisher interface {
	Publish(ctx context.Context, event models.SubscriptionEvent) error
}

// ExpirerService переводит истёкшие подписки в EXPIRED в фоне.
type ExpirerService struct {
	repo     Repository
	cache    Cache
	events   EventPublisher
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewExpirerService создает новый экземпляр ExpirerService.
func NewExpirerService(repo Repository, cache Cache, events EventPublisher, log *slog.Logger, interval time.Duration) *ExpirerService {
	return &ExpirerService{
		repo:     repo,
		cache:    cache,
		events:   events,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *ExpirerService) WithClock(now func() time.Time) *ExpirerService {
	s.now = now
	return s
}

// Run выполняет проход сразу и затем каждые interval, пока ctx не отменён.
func (s *ExpirerService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expirer stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает количество переведённых подписок.
func (s *ExpirerService) RunOnce(ctx context.Context) int {
	now := s.now()
	expired, err := s.repo.ExpireSubscriptions(ctx, now)
	if err != nil {
		s.log.Error("failed to expire subscriptions", sl.Err(err))
		return 0
	}
	if len(expired) == 0 {
		s.log.Debug("no subscriptions to expire")
		return 0
	}

	metrics.RecordExpired(len(expired))
	s.log.Info("expired subscriptions", slog.Int("count", len(expired)))

	keys := make([]string, 0, len(expired)+1)
	for _, sub := range expired {
		keys = append(keys, cache.SubscriptionKey(sub.ID))
	}
	keys = append(keys, cache.ReportKey)
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cache", sl.Err(err))
	}

	for _, sub := range expired {
		event := models.NewSubscriptionEvent(models.EventSubscriptionExpired, sub, now)
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish event", slog.Int64("id", sub.ID), sl.Err(err))
		}
	}
	return len(expired)
}
