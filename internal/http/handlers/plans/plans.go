// Package plans реализует HTTP-обработчики для управления тарифами.
package plans

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/params"
	"github.com/magabrotheeeer/subscription-manager/internal/http/response"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Service описывает бизнес-логику работы с тарифами.
type Service interface {
	Create(ctx context.Context, plan models.Plan) (*models.Plan, error)
	Get(ctx context.Context, id int64) (*models.Plan, error)
	List(ctx context.Context, limit, offset int) ([]*models.Plan, error)
	ListActive(ctx context.Context, at *time.Time) ([]*models.Plan, error)
	Update(ctx context.Context, id int64, upd models.PlanUpdate) (*models.Plan, error)
	Delete(ctx context.Context, id int64) (int, error)
}

// Handler обрабатывает запросы /plans.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// CreateRequest описывает тело запроса на создание тарифа.
type CreateRequest struct {
	Name          string          `json:"name" validate:"required,max=255" example:"Basic Monthly 2025"`
	Tier          models.Tier     `json:"tier" validate:"required" swaggertype:"string" enums:"free,basic,pro"`
	Description   *string         `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price" swaggertype:"string" example:"9.99"`
	BillingPeriod string          `json:"billing_period" validate:"required,max=50" example:"monthly"`
	ActiveFrom    time.Time       `json:"active_from" validate:"required" example:"2025-01-01T00:00:00Z"`
	ActiveTo      *time.Time      `json:"active_to,omitempty" example:"2025-12-31T23:59:59Z"`
}

// UpdateRequest описывает тело запроса на частичное обновление тарифа.
type UpdateRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,max=255"`
	Tier          *models.Tier     `json:"tier,omitempty" swaggertype:"string" enums:"free,basic,pro"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty" swaggertype:"string"`
	BillingPeriod *string          `json:"billing_period,omitempty" validate:"omitempty,max=50"`
	ActiveFrom    *time.Time       `json:"active_from,omitempty"`
	ActiveTo      *time.Time       `json:"active_to,omitempty"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.Error(msg, sl.Err(err))
	w.WriteHeader(http.StatusBadRequest)
	render.JSON(w, r, response.Error(err.Error()))
}

// Create godoc
// @Summary Создать тариф
// @Description Создает тариф с окном активности. active_to не задан для бессрочного тарифа.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Param request body CreateRequest true "Данные тарифа"
// @Success 201 {object} response.Response "Созданный тариф"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или нарушены правила тарифа"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.plans.Create")

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	plan, err := h.service.Create(r.Context(), models.Plan{
		Name:          req.Name,
		Tier:          req.Tier,
		Description:   req.Description,
		Price:         req.Price,
		BillingPeriod: req.BillingPeriod,
		ActiveFrom:    req.ActiveFrom,
		ActiveTo:      req.ActiveTo,
	})
	if err != nil {
		code := response.WriteError(w, r, err, "could not create plan")
		log.Error("failed to create plan", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("plan created", slog.Int64("id", plan.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(plan))
}

// Get godoc
// @Summary Получить тариф
// @Tags Plans
// @Produce  json
// @Param id path int true "ID тарифа"
// @Success 200 {object} response.Response "Тариф"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.plans.Get")

	id, err := params.ID(r, "id")
	if err != nil {
		h.badRequest(w, r, log, "failed to decode id from url", err)
		return
	}

	plan, err := h.service.Get(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not read plan")
		log.Error("failed to read plan", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(plan))
}

// List godoc
// @Summary Список тарифов
// @Tags Plans
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 100, максимум 1000)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Тарифы"
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры пагинации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.plans.List")

	limit, offset, err := params.Page(r)
	if err != nil {
		h.badRequest(w, r, log, "invalid pagination", err)
		return
	}

	plans, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		code := response.WriteError(w, r, err, "could not list plans")
		log.Error("failed to list plans", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(plans))
}

// ListActive godoc
// @Summary Активные тарифы
// @Description Тарифы, окно активности которых содержит момент at (по умолчанию текущий момент).
// @Tags Plans
// @Produce  json
// @Param at query string false "Момент времени в формате RFC3339"
// @Success 200 {object} response.Response "Активные тарифы"
// @Failure 400 {object} response.ErrorResponse "Некорректный параметр at"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/active [get]
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.plans.ListActive")

	at, err := params.Time(r, "at")
	if err != nil {
		h.badRequest(w, r, log, "invalid reference time", err)
		return
	}

	plans, err := h.service.ListActive(r.Context(), at)
	if err != nil {
		code := response.WriteError(w, r, err, "could not list active plans")
		log.Error("failed to list active plans", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(plans))
}

// Update godoc
// @Summary Обновить тариф
// @Description Частичное обновление. После применения изменений правила тарифа проверяются заново.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Param id path int true "ID тарифа"
// @Param request body UpdateRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённый тариф"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.plans.Update")

	id, err := params.ID(r, "id")
	if err != nil {
		h.badRequest(w, r, log, "failed to decode id from url", err)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	plan, err := h.service.Update(r.Context(), id, models.PlanUpdate{
		Name:          req.Name,
		Tier:          req.Tier,
		Description:   req.Description,
		Price:         req.Price,
		BillingPeriod: req.BillingPeriod,
		ActiveFrom:    req.ActiveFrom,
		ActiveTo:      req.ActiveTo,
	})
	if err != nil {
		code := response.WriteError(w, r, err, "could not update plan")
		log.Error("failed to update plan", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("plan updated", slog.Int64("id", id))
	render.JSON(w, r, response.StatusOKWithData(plan))
}

// Delete godoc
// @Summary Удалить тариф
// @Tags Plans
// @Produce  json
// @Param id path int true "ID тарифа"
// @Success 200 {object} response.Response "Количество удалённых записей"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 409 {object} response.ErrorResponse "На тариф ссылаются подписки"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /plans/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.plans.Delete")

	id, err := params.ID(r, "id")
	if err != nil {
		h.badRequest(w, r, log, "failed to decode id from url", err)
		return
	}

	count, err := h.service.Delete(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not delete plan")
		log.Error("failed to delete plan", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("plan deleted", slog.Int64("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_count": count,
	}))
}
