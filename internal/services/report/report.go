// Package report считает сводную статистику по подпискам.
package report

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/cache"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Repository определяет агрегирующие запросы хранилища.
type Repository interface {
	CountSubscriptions(ctx context.Context) (int, error)
	CountSubscriptionsByStatus(ctx context.Context) (map[models.Status]int, error)
	CountSubscriptionsByPlan(ctx context.Context) ([]models.PlanCount, error)
}

// Store добавляет к Repository транзакцию только для чтения:
// все запросы fn видят один снимок данных.
type Store interface {
	Repository
	WithinReadTx(ctx context.Context, fn func(repo Repository) error) error
}

// Cache описывает методы для кэширования отчёта.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// ReportService строит отчёты. Только чтение.
type ReportService struct {
	store Store
	cache Cache
	log   *slog.Logger
}

// NewReportService создает новый экземпляр ReportService.
func NewReportService(store Store, cache Cache, log *slog.Logger) *ReportService {
	return &ReportService{
		store: store,
		cache: cache,
		log:   log,
	}
}

// TotalCount возвращает общее количество подписок.
func (s *ReportService) TotalCount(ctx context.Context) (int, error) {
	return s.store.CountSubscriptions(ctx)
}

// CountByStatus возвращает количество подписок по статусам.
// Статусы без подписок в результат не попадают.
func (s *ReportService) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	return s.store.CountSubscriptionsByStatus(ctx)
}

// CountByPlan возвращает количество подписок по паре (название тарифа, категория).
// Тарифы с одинаковыми названием и категорией суммируются.
func (s *ReportService) CountByPlan(ctx context.Context) (map[models.PlanKey]int, error) {
	return countByPlan(ctx, s.store)
}

func countByPlan(ctx context.Context, repo Repository) (map[models.PlanKey]int, error) {
	rows, err := repo.CountSubscriptionsByPlan(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[models.PlanKey]int, len(rows))
	for _, r := range rows {
		result[models.PlanKey{Name: r.PlanName, Tier: r.Tier}] += r.Count
	}
	return result, nil
}

// Report собирает сводный отчёт из одного снимка данных, поэтому total_subscriptions
// совпадает с суммой by_status. Результат кешируется до следующей записи подписки или тарифа.
func (s *ReportService) Report(ctx context.Context) (*models.SubscriptionReport, error) {
	const op = "services.report.Report"

	var cached models.SubscriptionReport
	found, err := s.cache.Get(ctx, cache.ReportKey, &cached)
	if err != nil {
		s.log.Warn("failed to read report from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	var (
		total    int
		byStatus map[models.Status]int
		byPlan   map[models.PlanKey]int
	)
	err = s.store.WithinReadTx(ctx, func(repo Repository) error {
		var err error
		if total, err = repo.CountSubscriptions(ctx); err != nil {
			return err
		}
		if byStatus, err = repo.CountSubscriptionsByStatus(ctx); err != nil {
			return err
		}
		byPlan, err = countByPlan(ctx, repo)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &models.SubscriptionReport{
		TotalSubscriptions: total,
		ByStatus:           byStatus,
		ByPlan:             make([]models.PlanCount, 0, len(byPlan)),
	}
	for key, count := range byPlan {
		report.ByPlan = append(report.ByPlan, models.PlanCount{PlanName: key.Name, Tier: key.Tier, Count: count})
	}
	slices.SortFunc(report.ByPlan, func(a, b models.PlanCount) int {
		return cmp.Or(cmp.Compare(a.PlanName, b.PlanName), cmp.Compare(a.Tier, b.Tier))
	})

	if err := s.cache.Set(ctx, cache.ReportKey, report, 0); err != nil {
		s.log.Warn("failed to cache report", sl.Err(err))
	}
	return report, nil
}
