// Package subscriptions реализует HTTP-обработчики жизненного цикла подписок.
//
// Обработчики только разбирают запрос и формируют ответ. Правила жизненного цикла
// (одна активная подписка на пользователя, запрет для режима симуляции, окно
// активности тарифа, переходы статусов) проверяет сервис.
package subscriptions

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/params"
	"github.com/magabrotheeeer/subscription-manager/internal/http/response"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Service описывает бизнес-логику работы с подписками.
type Service interface {
	Create(ctx context.Context, req models.NewSubscription) (*models.Subscription, error)
	Get(ctx context.Context, id int64) (*models.SubscriptionDetail, error)
	List(ctx context.Context, limit, offset int) ([]*models.SubscriptionDetail, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Subscription, error)
	ActiveForUser(ctx context.Context, userID int64) (*models.Subscription, error)
	Update(ctx context.Context, id int64, upd models.SubscriptionUpdate) (*models.Subscription, error)
	Cancel(ctx context.Context, id int64) (*models.Subscription, error)
	Delete(ctx context.Context, id int64) (int, error)
}

// Handler обрабатывает запросы /subscriptions.
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

// UpdateRequest описывает тело запроса на частичное обновление подписки.
type UpdateRequest struct {
	PlanID  *int64         `json:"plan_id,omitempty" validate:"omitempty,gt=0"`
	Status  *models.Status `json:"status,omitempty" swaggertype:"string" enums:"active,cancelled,expired"`
	EndDate *time.Time     `json:"end_date,omitempty"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string) (int64, bool) {
	id, err := params.ID(r, name)
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return 0, false
	}
	return id, true
}

// Create godoc
// @Summary Создать подписку
// @Description Оформляет подписку пользователя на тариф. У пользователя может быть только одна активная подписка,
// @Description пользователь в режиме симуляции подписку оформить не может, тариф должен быть активен сейчас.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.NewSubscription true "Данные подписки"
// @Success 201 {object} response.Response "Созданная подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или операция запрещена"
// @Failure 404 {object} response.ErrorResponse "Пользователь или тариф не найден"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть активная подписка"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Create")

	var req models.NewSubscription
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	log.Debug("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	sub, err := h.service.Create(r.Context(), req)
	if err != nil {
		code := response.WriteError(w, r, err, "could not create subscription")
		log.Error("failed to create subscription", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("subscription created", slog.Int64("id", sub.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Get godoc
// @Summary Получить подписку
// @Description Возвращает подписку вместе с пользователем и тарифом.
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID подписки"
// @Success 200 {object} response.Response "Подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Get")

	id, ok := h.pathID(w, r, log, "id")
	if !ok {
		return
	}

	sub, err := h.service.Get(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not read subscription")
		log.Error("failed to read subscription", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(sub))
}

// List godoc
// @Summary Список подписок
// @Tags Subscriptions
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 100, максимум 1000)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры пагинации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.List")

	limit, offset, err := params.Page(r)
	if err != nil {
		log.Error("invalid pagination", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	subs, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		code := response.WriteError(w, r, err, "could not list subscriptions")
		log.Error("failed to list subscriptions", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(subs))
}

// ListByUser godoc
// @Summary Подписки пользователя
// @Description Все подписки пользователя независимо от статуса.
// @Tags Subscriptions
// @Produce  json
// @Param user_id path int true "ID пользователя"
// @Success 200 {object} response.Response "Подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/user/{user_id} [get]
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.ListByUser")

	userID, ok := h.pathID(w, r, log, "user_id")
	if !ok {
		return
	}

	subs, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		code := response.WriteError(w, r, err, "could not list user subscriptions")
		log.Error("failed to list user subscriptions", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(subs))
}

// ActiveForUser godoc
// @Summary Активная подписка пользователя
// @Tags Subscriptions
// @Produce  json
// @Param user_id path int true "ID пользователя"
// @Success 200 {object} response.Response "Активная подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден или у него нет активной подписки"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/user/{user_id}/active [get]
func (h *Handler) ActiveForUser(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.ActiveForUser")

	userID, ok := h.pathID(w, r, log, "user_id")
	if !ok {
		return
	}

	sub, err := h.service.ActiveForUser(r.Context(), userID)
	if err != nil {
		code := response.WriteError(w, r, err, "could not read active subscription")
		log.Info("no active subscription", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Update godoc
// @Summary Обновить подписку
// @Description Частичное обновление. Смена статуса допускается только по разрешённым переходам,
// @Description переход в cancelled проставляет cancelled_at.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param id path int true "ID подписки"
// @Param request body UpdateRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённая подписка"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос или недопустимый переход"
// @Failure 404 {object} response.ErrorResponse "Подписка или тариф не найдены"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Update")

	id, ok := h.pathID(w, r, log, "id")
	if !ok {
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

	sub, err := h.service.Update(r.Context(), id, models.SubscriptionUpdate{
		PlanID:  req.PlanID,
		Status:  req.Status,
		EndDate: req.EndDate,
	})
	if err != nil {
		code := response.WriteError(w, r, err, "could not update subscription")
		log.Error("failed to update subscription", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("subscription updated", slog.Int64("id", id), slog.String("status", sub.Status.String()))
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Cancel godoc
// @Summary Отменить подписку
// @Description Переводит активную подписку в cancelled и проставляет cancelled_at.
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID подписки"
// @Success 200 {object} response.Response "Отменённая подписка"
// @Failure 400 {object} response.ErrorResponse "Подписка не активна"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Cancel")

	id, ok := h.pathID(w, r, log, "id")
	if !ok {
		return
	}

	sub, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not cancel subscription")
		log.Error("failed to cancel subscription", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("subscription cancelled", slog.Int64("id", id))
	render.JSON(w, r, response.StatusOKWithData(sub))
}

// Delete godoc
// @Summary Удалить подписку
// @Tags Subscriptions
// @Produce  json
// @Param id path int true "ID подписки"
// @Success 200 {object} response.Response "Количество удалённых записей"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.subscriptions.Delete")

	id, ok := h.pathID(w, r, log, "id")
	if !ok {
		return
	}

	count, err := h.service.Delete(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not delete subscription")
		log.Error("failed to delete subscription", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("subscription deleted", slog.Int64("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_count": count,
	}))
}
