// Package reports реализует HTTP-обработчик сводного отчёта по подпискам.
package reports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-manager/internal/http/response"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Service описывает бизнес-логику построения отчёта.
type Service interface {
	Report(ctx context.Context) (*models.SubscriptionReport, error)
}

// Handler обрабатывает запрос отчёта.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отчёт по подпискам
// @Description Общее количество подписок, разбивка по статусам и по тарифам (название и категория).
// @Tags Reports
// @Produce  json
// @Success 200 {object} response.Response{data=models.SubscriptionReport} "Отчёт"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /reports/subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reports.Subscriptions"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	report, err := h.service.Report(r.Context())
	if err != nil {
		code := response.WriteError(w, r, err, "could not build report")
		log.Error("failed to build report", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Debug("report built", slog.Int("total", report.TotalSubscriptions))
	render.JSON(w, r, response.StatusOKWithData(report))
}
