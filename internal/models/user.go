// Package models содержит доменные структуры пользователя, тарифа и подписки.
// Структуры не обращаются к хранилищу, бизнес-логика живёт в сервисах.
package models

import "time"

// User представляет пользователя системы.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSimulation сообщает, работает ли пользователь в режиме симуляции.
func (u *User) IsSimulation() bool {
	return u.Mode == ModeSimulation
}

// UserUpdate содержит поля для частичного обновления пользователя.
// nil означает «поле не передано» и оставляет значение без изменений.
type UserUpdate struct {
	Email *string `json:"email,omitempty"`
	Name  *string `json:"name,omitempty"`
	Mode  *Mode   `json:"mode,omitempty"`
}
