// Package subscription реализует жизненный цикл подписки: создание с проверкой
// допустимости, частичное обновление, отмену, удаление и выборки.
//
// Каждая многошаговая операция (проверка, затем запись) выполняется в одной транзакции
// хранилища. Строка пользователя блокируется на время Create, поэтому два параллельных
// запроса одного пользователя не могут оба пройти проверку активной подписки.
// События и инвалидация кеша выполняются только после фиксации транзакции; их ошибки
// логируются и не отменяют операцию.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/cache"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/eligibility"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Repository определяет методы хранилища, доступные внутри и вне транзакции.
type Repository interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*models.User, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	GetSubscriptionForUpdate(ctx context.Context, id int64) (*models.Subscription, error)
	GetSubscriptionDetail(ctx context.Context, id int64) (*models.SubscriptionDetail, error)
	ListSubscriptionDetails(ctx context.Context, limit, offset int) ([]*models.SubscriptionDetail, error)
	ListSubscriptionsByUser(ctx context.Context, userID int64) ([]*models.Subscription, error)
	ListActiveSubscriptionsByUser(ctx context.Context, userID int64) ([]*models.Subscription, error)
	UpdateSubscription(ctx context.Context, id int64, upd models.SubscriptionUpdate) (*models.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) (int, error)
}

// Store добавляет к Repository транзакции.
// fn получает Repository, привязанный к транзакции; ошибка fn откатывает транзакцию.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// EventPublisher публикует события жизненного цикла.
type EventPublisher interface {
	Publish(ctx context.Context, event models.SubscriptionEvent) error
}

// SubscriptionService управляет жизненным циклом подписок.
type SubscriptionService struct {
	store  Store
	cache  Cache
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(store Store, cache Cache, events EventPublisher, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:  store,
		cache:  cache,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *SubscriptionService) WithClock(now func() time.Time) *SubscriptionService {
	s.now = now
	return s
}

// Сообщения об отказах.
var (
	errSimulationUser  = apperr.InvalidOperation("simulation users cannot subscribe")
	errAlreadyActive   = apperr.Conflict("user already has an active subscription")
	errPlanInactive    = apperr.InvalidOperation("plan is not currently active")
	errCancelNotActive = apperr.InvalidOperation("only active subscriptions can be cancelled")
)

// Create создает подписку в статусе ACTIVE. Проверки выполняются по порядку,
// возвращается первая нарушенная:
//  1. пользователь существует;
//  2. пользователь не в режиме SIMULATION;
//  3. у пользователя нет функционально активной подписки;
//  4. тариф существует;
//  5. тариф активен сейчас.
func (s *SubscriptionService) Create(ctx context.Context, req models.NewSubscription) (*models.Subscription, error) {
	const op = "services.subscription.Create"

	now := s.now()
	var created *models.Subscription
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		user, err := repo.GetUserForUpdate(ctx, req.UserID)
		if err != nil {
			return apperr.NotFoundAs(err, "user")
		}
		if user.IsSimulation() {
			return errSimulationUser
		}

		active, err := repo.ListActiveSubscriptionsByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, sub := range active {
			if eligibility.SubscriptionActive(sub, now) {
				return errAlreadyActive
			}
		}

		plan, err := repo.GetPlan(ctx, req.PlanID)
		if err != nil {
			return apperr.NotFoundAs(err, "plan")
		}
		if !eligibility.PlanActive(plan, now) {
			return errPlanInactive
		}

		created, err = repo.CreateSubscription(ctx, models.Subscription{
			UserID:    user.ID,
			PlanID:    plan.ID,
			Status:    models.StatusActive,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		})
		return err
	})
	if err != nil {
		s.record("create", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.record("create", nil)

	s.log.Info("created subscription",
		slog.Int64("id", created.ID),
		slog.Int64("user_id", created.UserID),
		slog.Int64("plan_id", created.PlanID),
	)
	s.afterWrite(ctx, models.EventSubscriptionCreated, created)
	return created, nil
}

// Update частично обновляет подписку. При смене тарифа новый тариф должен существовать
// и быть активным. Смена статуса допускается только по таблице переходов; переход в
// CANCELLED проставляет CancelledAt. Инвариант единственной активной подписки здесь
// не перепроверяется.
func (s *SubscriptionService) Update(ctx context.Context, id int64, upd models.SubscriptionUpdate) (*models.Subscription, error) {
	const op = "services.subscription.Update"

	now := s.now()
	upd.CancelledAt = nil
	var updated *models.Subscription
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		current, err := repo.GetSubscriptionForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFoundAs(err, "subscription")
		}

		if upd.PlanID != nil {
			plan, err := repo.GetPlan(ctx, *upd.PlanID)
			if err != nil {
				return apperr.NotFoundAs(err, "plan")
			}
			if !eligibility.PlanActive(plan, now) {
				return errPlanInactive
			}
		}

		if upd.Status != nil {
			to := *upd.Status
			switch {
			case to == current.Status:
				upd.Status = nil
			case !eligibility.CanTransition(current.Status, to):
				return apperr.InvalidOperation(fmt.Sprintf("cannot change subscription status from %s to %s", current.Status, to))
			case to == models.StatusCancelled:
				upd.CancelledAt = &now
			}
		}

		if upd.IsEmpty() {
			updated = current
			return nil
		}

		updated, err = repo.UpdateSubscription(ctx, id, upd)
		return apperr.NotFoundAs(err, "subscription")
	})
	if err != nil {
		s.record("update", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.record("update", nil)

	if upd.IsEmpty() {
		return updated, nil
	}

	event := models.EventSubscriptionUpdated
	if upd.Status != nil {
		switch *upd.Status {
		case models.StatusCancelled:
			event = models.EventSubscriptionCancelled
		case models.StatusExpired:
			event = models.EventSubscriptionExpired
		}
	}

	s.log.Info("updated subscription", slog.Int64("id", id), slog.String("status", updated.Status.String()))
	s.afterWrite(ctx, event, updated)
	return updated, nil
}

// Cancel переводит ACTIVE подписку в CANCELLED и проставляет CancelledAt.
// Повторная отмена возвращает InvalidOperation и не меняет CancelledAt.
func (s *SubscriptionService) Cancel(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "services.subscription.Cancel"

	now := s.now()
	var cancelled *models.Subscription
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		current, err := repo.GetSubscriptionForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFoundAs(err, "subscription")
		}
		if current.Status != models.StatusActive {
			return errCancelNotActive
		}

		status := models.StatusCancelled
		cancelled, err = repo.UpdateSubscription(ctx, id, models.SubscriptionUpdate{
			Status:      &status,
			CancelledAt: &now,
		})
		return apperr.NotFoundAs(err, "subscription")
	})
	if err != nil {
		s.record("cancel", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.record("cancel", nil)

	s.log.Info("cancelled subscription", slog.Int64("id", id))
	s.afterWrite(ctx, models.EventSubscriptionCancelled, cancelled)
	return cancelled, nil
}

// Delete безусловно удаляет подписку и возвращает количество удалённых записей.
func (s *SubscriptionService) Delete(ctx context.Context, id int64) (int, error) {
	const op = "services.subscription.Delete"

	var (
		deleted *models.Subscription
		count   int
	)
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		var err error
		deleted, err = repo.GetSubscriptionForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFoundAs(err, "subscription")
		}
		count, err = repo.DeleteSubscription(ctx, id)
		return err
	})
	if err != nil {
		s.record("delete", err)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.record("delete", nil)

	s.log.Info("deleted subscription", slog.Int64("id", id))
	s.afterWrite(ctx, models.EventSubscriptionDeleted, deleted)
	return count, nil
}

// Get возвращает подписку вместе с пользователем и тарифом, используя кеш.
func (s *SubscriptionService) Get(ctx context.Context, id int64) (*models.SubscriptionDetail, error) {
	key := cache.SubscriptionKey(id)

	var cached models.SubscriptionDetail
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	detail, err := s.store.GetSubscriptionDetail(ctx, id)
	if err != nil {
		return nil, apperr.NotFoundAs(err, "subscription")
	}

	if err := s.cache.Set(ctx, key, detail, 0); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", key), sl.Err(err))
	}
	return detail, nil
}

// List возвращает подписки с пользователями и тарифами с пагинацией.
func (s *SubscriptionService) List(ctx context.Context, limit, offset int) ([]*models.SubscriptionDetail, error) {
	return s.store.ListSubscriptionDetails(ctx, limit, offset)
}

// ListByUser возвращает все подписки пользователя.
func (s *SubscriptionService) ListByUser(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, apperr.NotFoundAs(err, "user")
	}
	return s.store.ListSubscriptionsByUser(ctx, userID)
}

// ActiveForUser возвращает функционально активную подписку пользователя.
// Если такой нет, возвращается NotFound.
func (s *SubscriptionService) ActiveForUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, apperr.NotFoundAs(err, "user")
	}

	active, err := s.store.ListActiveSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, sub := range active {
		if eligibility.SubscriptionActive(sub, now) {
			return sub, nil
		}
	}
	return nil, apperr.NotFound("active subscription")
}

// afterWrite инвалидирует кеш и публикует событие после фиксации изменений.
func (s *SubscriptionService) afterWrite(ctx context.Context, eventType models.EventType, sub *models.Subscription) {
	if err := s.cache.Invalidate(ctx, cache.SubscriptionKey(sub.ID), cache.ReportKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.Int64("id", sub.ID), sl.Err(err))
	}

	event := models.NewSubscriptionEvent(eventType, sub, s.now())
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event",
			slog.String("type", string(eventType)),
			slog.Int64("id", sub.ID),
			sl.Err(err),
		)
	}
}

func (s *SubscriptionService) record(operation string, err error) {
	switch {
	case err == nil:
		metrics.RecordLifecycle(operation, metrics.ResultOK)
	case apperr.Message(err) != "":
		metrics.RecordLifecycle(operation, metrics.ResultRejected)
	default:
		metrics.RecordLifecycle(operation, metrics.ResultError)
	}
}
