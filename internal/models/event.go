package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType задаёт тип события жизненного цикла подписки. Используется как routing key.
type EventType string

// Типы событий жизненного цикла.
const (
	EventSubscriptionCreated   EventType = "subscription.created"
	EventSubscriptionUpdated   EventType = "subscription.updated"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
	EventSubscriptionDeleted   EventType = "subscription.deleted"
	EventSubscriptionExpired   EventType = "subscription.expired"
)

// SubscriptionEvent публикуется в брокер после фиксации изменения подписки.
type SubscriptionEvent struct {
	ID             uuid.UUID `json:"id"`
	Type           EventType `json:"type"`
	SubscriptionID int64     `json:"subscription_id"`
	UserID         int64     `json:"user_id"`
	PlanID         int64     `json:"plan_id"`
	Status         Status    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewSubscriptionEvent формирует событие по текущему состоянию подписки.
func NewSubscriptionEvent(t EventType, sub *Subscription, at time.Time) SubscriptionEvent {
	return SubscriptionEvent{
		ID:             uuid.New(),
		Type:           t,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		OccurredAt:     at.UTC(),
	}
}
