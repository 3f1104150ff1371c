// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
)

// Response описывает конверт JSON‑ответа сервера: Status равен "OK" или "Error",
// при ошибке заполняется Error, при успехе Data.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse описывает ответ с ошибкой в Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// FromError подбирает HTTP-код по виду бизнес-ошибки.
// Внутренние ошибки не раскрываются клиенту: вместо них возвращается fallback.
func FromError(err error, fallback string) (int, ErrorResponse) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, Error(message(err, fallback))
	case errors.Is(err, apperr.ErrInvalidOperation):
		return http.StatusBadRequest, Error(message(err, fallback))
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, Error(message(err, fallback))
	default:
		return http.StatusInternalServerError, Error(fallback)
	}
}

// WriteError записывает ответ FromError и возвращает выбранный HTTP-код.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback string) int {
	code, body := FromError(err, fallback)
	w.WriteHeader(code)
	render.JSON(w, r, body)
	return code
}

func message(err error, fallback string) string {
	if msg := apperr.Message(err); msg != "" {
		return msg
	}
	return fallback
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "gt":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "numeric":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}
