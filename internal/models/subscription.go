package models

import "time"

// Subscription связывает пользователя с тарифом.
// EndDate == nil означает подписку без даты окончания. CancelledAt заполняется только при отмене.
type Subscription struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	PlanID      int64      `json:"plan_id"`
	Status      Status     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// SubscriptionDetail содержит подписку вместе с пользователем и тарифом.
type SubscriptionDetail struct {
	Subscription
	User User `json:"user"`
	Plan Plan `json:"plan"`
}

// NewSubscription описывает входные данные для создания подписки.
type NewSubscription struct {
	UserID    int64      `json:"user_id" validate:"required,gt=0"`
	PlanID    int64      `json:"plan_id" validate:"required,gt=0"`
	StartDate time.Time  `json:"start_date" validate:"required"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// SubscriptionUpdate содержит поля для частичного обновления подписки.
// CancelledAt не приходит от клиента: его выставляет сервис при переходе в CANCELLED.
type SubscriptionUpdate struct {
	PlanID      *int64     `json:"plan_id,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CancelledAt *time.Time `json:"-"`
}

// IsEmpty сообщает, что ни одно поле не передано.
func (u SubscriptionUpdate) IsEmpty() bool {
	return u.PlanID == nil && u.Status == nil && u.EndDate == nil && u.CancelledAt == nil
}
