// Package apperr описывает типизированные ошибки бизнес-логики.
//
// Каждая ошибка относится к одному из видов NotFound, InvalidOperation или Conflict
// и разворачивается в соответствующий sentinel, поэтому вызывающий код проверяет вид
// через errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Виды ошибок.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrConflict         = errors.New("conflict")
)

// Error описывает ошибку бизнес-логики с понятным клиенту сообщением.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NotFound сообщает, что сущность с указанным идентификатором не существует.
func NotFound(entity string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s not found", entity)}
}

// InvalidOperation сообщает, что бизнес-правило запрещает операцию.
func InvalidOperation(msg string) *Error {
	return &Error{Kind: ErrInvalidOperation, Message: msg}
}

// Conflict сообщает о нарушении уникальности или исключительности.
func Conflict(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Message возвращает сообщение бизнес-ошибки из цепочки err или пустую строку.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// NotFoundAs заменяет ErrNotFound из хранилища на NotFound(entity) с понятным сообщением.
// Остальные ошибки возвращаются без изменений.
func NotFoundAs(err error, entity string) error {
	if errors.Is(err, ErrNotFound) {
		return NotFound(entity)
	}
	return err
}
