package subscriptionmanager

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/subscription-manager/internal/app/infra"
	"github.com/magabrotheeeer/subscription-manager/internal/config"
	"github.com/magabrotheeeer/subscription-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	planservice "github.com/magabrotheeeer/subscription-manager/internal/services/plan"
	reportservice "github.com/magabrotheeeer/subscription-manager/internal/services/report"
	subservice "github.com/magabrotheeeer/subscription-manager/internal/services/subscription"
	userservice "github.com/magabrotheeeer/subscription-manager/internal/services/user"
)

const shutdownTimeout = 15 * time.Second

// App обслуживает HTTP API менеджера подписок.
type App struct {
	server *http.Server
	logger *slog.Logger
	res    *infra.Resources
}

// New подключается к зависимостям, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	res, err := infra.Open(ctx, cfg, logger, infra.Options{Migrate: true, Events: true})
	if err != nil {
		return nil, err
	}

	db := res.Storage
	services := Services{
		Users:         userservice.NewUserService(userservice.NewPostgresStore(db), logger),
		Plans:         planservice.NewPlanService(planservice.NewPostgresStore(db), res.Cache, logger),
		Subscriptions: subservice.NewSubscriptionService(subservice.NewPostgresStore(db), res.Cache, res.Events, logger),
		Reports:       reportservice.NewReportService(reportservice.NewPostgresStore(db), res.Cache, logger),
		DB:            db.DB,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, middlewarectx.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		res:    res,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	defer a.res.Close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		if err := a.server.Shutdown(timeoutCtx); err != nil {
			a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
			return err
		}
		return nil
	}
}
