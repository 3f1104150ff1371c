// Package plan содержит бизнес-логику управления тарифами.
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/cache"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Repository определяет методы хранилища для работы с тарифами.
type Repository interface {
	CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	GetPlanForUpdate(ctx context.Context, id int64) (*models.Plan, error)
	ListPlans(ctx context.Context, limit, offset int) ([]*models.Plan, error)
	ListActivePlans(ctx context.Context, at time.Time) ([]*models.Plan, error)
	UpdatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error)
	DeletePlan(ctx context.Context, id int64) (int, error)
}

// Store добавляет к Repository транзакции.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// Cache сбрасывает кешированные отчёты, в которых фигурируют название и категория тарифа.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// PlanService реализует CRUD тарифов и выборку активных тарифов.
type PlanService struct {
	repo  Store
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// NewPlanService создает новый экземпляр PlanService.
func NewPlanService(store Store, cache Cache, log *slog.Logger) *PlanService {
	return &PlanService{
		repo:  store,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *PlanService) WithClock(now func() time.Time) *PlanService {
	s.now = now
	return s
}

// Validate проверяет инварианты тарифа: известная категория, неотрицательная цена
// и ActiveFrom <= ActiveTo.
func Validate(p *models.Plan) error {
	if !p.Tier.Valid() {
		return apperr.InvalidOperation("plan tier must be one of free, basic, pro")
	}
	if p.Price.IsNegative() {
		return apperr.InvalidOperation("plan price must not be negative")
	}
	if p.ActiveTo != nil && p.ActiveTo.Before(p.ActiveFrom) {
		return apperr.InvalidOperation("plan active_from must not be after active_to")
	}
	return nil
}

// Create создает тариф.
func (s *PlanService) Create(ctx context.Context, plan models.Plan) (*models.Plan, error) {
	const op = "services.plan.Create"

	if err := Validate(&plan); err != nil {
		return nil, err
	}

	created, err := s.repo.CreatePlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created plan", slog.Int64("id", created.ID), slog.String("tier", created.Tier.String()))
	return created, nil
}

// Get возвращает тариф по ID.
func (s *PlanService) Get(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, apperr.NotFoundAs(err, "plan")
	}
	return plan, nil
}

// List возвращает тарифы с пагинацией.
func (s *PlanService) List(ctx context.Context, limit, offset int) ([]*models.Plan, error) {
	return s.repo.ListPlans(ctx, limit, offset)
}

// ListActive возвращает тарифы, активные в момент at. nil означает текущий момент.
func (s *PlanService) ListActive(ctx context.Context, at *time.Time) ([]*models.Plan, error) {
	t := s.now()
	if at != nil {
		t = *at
	}
	return s.repo.ListActivePlans(ctx, t)
}

// Update частично обновляет тариф и повторно проверяет его инварианты.
// Строка тарифа блокируется до фиксации, поэтому параллельные частичные
// обновления применяются последовательно.
func (s *PlanService) Update(ctx context.Context, id int64, upd models.PlanUpdate) (*models.Plan, error) {
	var updated *models.Plan
	err := s.repo.WithinTx(ctx, func(repo Repository) error {
		current, err := repo.GetPlanForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFoundAs(err, "plan")
		}

		next := upd.Apply(*current)
		if err := Validate(&next); err != nil {
			return err
		}

		updated, err = repo.UpdatePlan(ctx, next)
		return apperr.NotFoundAs(err, "plan")
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReport(ctx)
	s.log.Info("updated plan", slog.Int64("id", id))
	return updated, nil
}

// Delete удаляет тариф. Тариф, на который ссылаются подписки, удалить нельзя.
func (s *PlanService) Delete(ctx context.Context, id int64) (int, error) {
	count, err := s.repo.DeletePlan(ctx, id)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, apperr.NotFound("plan")
	}

	s.invalidateReport(ctx)
	s.log.Info("deleted plan", slog.Int64("id", id))
	return count, nil
}

// invalidateReport сбрасывает отчёт: в by_plan он хранит название и категорию тарифа.
func (s *PlanService) invalidateReport(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.ReportKey); err != nil {
		s.log.Warn("failed to invalidate report cache", sl.Err(err))
	}
}
