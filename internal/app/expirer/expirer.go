// Package expirer содержит приложение, переводящее истёкшие подписки в EXPIRED.
package expirer

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/subscription-manager/internal/app/infra"
	"github.com/magabrotheeeer/subscription-manager/internal/config"
	expirerservice "github.com/magabrotheeeer/subscription-manager/internal/services/expirer"
)

// App представляет приложение фоновой проверки сроков подписок.
type App struct {
	expirerService *expirerservice.ExpirerService
	res            *infra.Resources
	logger         *slog.Logger
}

// New подключается к зависимостям. Миграции применяет HTTP API, здесь только ожидание готовности БД.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	res, err := infra.Open(ctx, cfg, logger, infra.Options{Events: true})
	if err != nil {
		return nil, err
	}

	return &App{
		expirerService: expirerservice.NewExpirerService(res.Storage, res.Cache, res.Events, logger, cfg.Interval),
		res:            res,
		logger:         logger,
	}, nil
}

// Run выполняет проверку сразу и затем с интервалом из конфига до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.res.Close()

	a.expirerService.Run(ctx)

	a.logger.Info("shutting down expirer")
	return nil
}
