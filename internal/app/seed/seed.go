// Package seed содержит приложение, заполняющее базу тестовыми данными.
package seed

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/app/infra"
	"github.com/magabrotheeeer/subscription-manager/internal/config"
	seedservice "github.com/magabrotheeeer/subscription-manager/internal/services/seed"
	subservice "github.com/magabrotheeeer/subscription-manager/internal/services/subscription"
)

// App создаёт тарифы, пользователей и подписки через менеджер жизненного цикла.
type App struct {
	seedService *seedservice.SeedService
	res         *infra.Resources
	users       int
	logger      *slog.Logger
}

// New подключается к БД и применяет миграции. События при заполнении не публикуются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, randSeed uint64) (*App, error) {
	res, err := infra.Open(ctx, cfg, logger, infra.Options{Migrate: true})
	if err != nil {
		return nil, err
	}

	subs := subservice.NewSubscriptionService(subservice.NewPostgresStore(res.Storage), res.Cache, res.Events, logger)

	return &App{
		seedService: seedservice.NewSeedService(res.Storage, subs, logger, randSeed),
		res:         res,
		users:       cfg.Seed.Users,
		logger:      logger,
	}, nil
}

// Run заполняет базу и закрывает подключения.
func (a *App) Run(ctx context.Context) error {
	defer a.res.Close()

	start := time.Now()
	if _, err := a.seedService.Run(ctx, a.users); err != nil {
		return err
	}

	a.logger.Info("seed finished", slog.Duration("took", time.Since(start)))
	return nil
}
