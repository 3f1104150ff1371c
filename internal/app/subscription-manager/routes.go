// Package subscriptionmanager собирает HTTP API менеджера подписок.
package subscriptionmanager

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/plans"
	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/reports"
	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/subscriptions"
	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/users"
	"github.com/magabrotheeeer/subscription-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/metrics"
)

// Services содержит бизнес-логику, которую обслуживают маршруты.
type Services struct {
	Users         users.Service
	Plans         plans.Service
	Subscriptions subscriptions.Service
	Reports       reports.Service
	DB            health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, limiter *rate.Limiter) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
	)

	r.Get("/health", health.New(logger, svc.DB).ServeHTTP)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	usersHandler := users.New(logger, svc.Users)
	plansHandler := plans.New(logger, svc.Plans)
	subsHandler := subscriptions.New(logger, svc.Subscriptions)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))

		r.Route("/users", func(r chi.Router) {
			r.Post("/", usersHandler.Create)
			r.Get("/", usersHandler.List)
			r.Get("/{id}", usersHandler.Get)
			r.Patch("/{id}", usersHandler.Update)
			r.Delete("/{id}", usersHandler.Delete)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", plansHandler.Create)
			r.Get("/", plansHandler.List)
			r.Get("/active", plansHandler.ListActive)
			r.Get("/{id}", plansHandler.Get)
			r.Patch("/{id}", plansHandler.Update)
			r.Delete("/{id}", plansHandler.Delete)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", subsHandler.Create)
			r.Get("/", subsHandler.List)
			r.Get("/user/{user_id}", subsHandler.ListByUser)
			r.Get("/user/{user_id}/active", subsHandler.ActiveForUser)
			r.Get("/{id}", subsHandler.Get)
			r.Patch("/{id}", subsHandler.Update)
			r.Post("/{id}/cancel", subsHandler.Cancel)
			r.Delete("/{id}", subsHandler.Delete)
		})

		r.Get("/reports/subscriptions", reports.New(logger, svc.Reports).ServeHTTP)
	})
}
