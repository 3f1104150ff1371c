// Package users реализует HTTP-обработчики для управления пользователями.
package users

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-manager/internal/http/handlers/params"
	"github.com/magabrotheeeer/subscription-manager/internal/http/response"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Service описывает бизнес-логику работы с пользователями.
type Service interface {
	Create(ctx context.Context, user models.User) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Update(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) (int, error)
}

// Handler обрабатывает запросы /users.
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

// CreateRequest описывает тело запроса на создание пользователя.
type CreateRequest struct {
	Email string      `json:"email" validate:"required,email,max=255" example:"anna@example.com"`
	Name  string      `json:"name" validate:"required,max=255" example:"Anna"`
	Mode  models.Mode `json:"mode,omitempty" swaggertype:"string" enums:"live,simulation"`
}

// UpdateRequest описывает тело запроса на частичное обновление пользователя.
type UpdateRequest struct {
	Email *string      `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Name  *string      `json:"name,omitempty" validate:"omitempty,max=255"`
	Mode  *models.Mode `json:"mode,omitempty" swaggertype:"string" enums:"live,simulation"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Create godoc
// @Summary Создать пользователя
// @Description Регистрирует пользователя. Email должен быть уникальным, режим по умолчанию live.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body CreateRequest true "Данные пользователя"
// @Success 201 {object} response.Response "Созданный пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Create")

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

	user, err := h.service.Create(r.Context(), models.User{
		Email: req.Email,
		Name:  req.Name,
		Mode:  req.Mode,
	})
	if err != nil {
		code := response.WriteError(w, r, err, "could not create user")
		log.Error("failed to create user", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("user created", slog.Int64("id", user.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(user))
}

// Get godoc
// @Summary Получить пользователя
// @Tags Users
// @Produce  json
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response "Пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Get")

	id, err := params.ID(r, "id")
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not read user")
		log.Error("failed to read user", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(user))
}

// List godoc
// @Summary Список пользователей
// @Tags Users
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 100, максимум 1000)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Пользователи"
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры пагинации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.List")

	limit, offset, err := params.Page(r)
	if err != nil {
		log.Error("invalid pagination", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	users, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		code := response.WriteError(w, r, err, "could not list users")
		log.Error("failed to list users", sl.Err(err), slog.Int("status", code))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(users))
}

// Update godoc
// @Summary Обновить пользователя
// @Description Частичное обновление: непереданные поля не меняются.
// @Tags Users
// @Accept  json
// @Produce  json
// @Param id path int true "ID пользователя"
// @Param request body UpdateRequest true "Изменяемые поля"
// @Success 200 {object} response.Response "Обновлённый пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный запрос"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Email уже занят или есть активная подписка при переходе в simulation"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Update")

	id, err := params.ID(r, "id")
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
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

	user, err := h.service.Update(r.Context(), id, models.UserUpdate{
		Email: req.Email,
		Name:  req.Name,
		Mode:  req.Mode,
	})
	if err != nil {
		code := response.WriteError(w, r, err, "could not update user")
		log.Error("failed to update user", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("user updated", slog.Int64("id", id))
	render.JSON(w, r, response.StatusOKWithData(user))
}

// Delete godoc
// @Summary Удалить пользователя
// @Tags Users
// @Produce  json
// @Param id path int true "ID пользователя"
// @Success 200 {object} response.Response "Количество удалённых записей"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "У пользователя есть подписки"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r, "handlers.users.Delete")

	id, err := params.ID(r, "id")
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	count, err := h.service.Delete(r.Context(), id)
	if err != nil {
		code := response.WriteError(w, r, err, "could not delete user")
		log.Error("failed to delete user", sl.Err(err), slog.Int("status", code))
		return
	}

	log.Info("user deleted", slog.Int64("id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"deleted_count": count,
	}))
}
