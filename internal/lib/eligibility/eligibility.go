// Package eligibility содержит чистые предикаты активности тарифов и подписок
// и таблицу допустимых переходов статуса подписки. Пакет не выполняет ввод-вывод.
package eligibility

import (
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// PlanActive сообщает, активен ли тариф в момент t:
// ActiveFrom <= t и (ActiveTo не задан или t <= ActiveTo).
func PlanActive(p *models.Plan, t time.Time) bool {
	if t.Before(p.ActiveFrom) {
		return false
	}
	return p.ActiveTo == nil || !t.After(*p.ActiveTo)
}

// SubscriptionActive сообщает, функционально ли активна подписка в момент t:
// статус ACTIVE и (EndDate не задан или t <= EndDate).
// StartDate намеренно не учитывается: подписка с будущей датой начала уже считается активной.
func SubscriptionActive(s *models.Subscription, t time.Time) bool {
	if s.Status != models.StatusActive {
		return false
	}
	return s.EndDate == nil || !t.After(*s.EndDate)
}

// PlanActiveNow вызывает PlanActive для текущего момента.
func PlanActiveNow(p *models.Plan) bool {
	return PlanActive(p, time.Now())
}

// SubscriptionActiveNow вызывает SubscriptionActive для текущего момента.
func SubscriptionActiveNow(s *models.Subscription) bool {
	return SubscriptionActive(s, time.Now())
}

type transition struct {
	from models.Status
	to   models.Status
}

// Из CANCELLED и EXPIRED переходов нет.
var transitions = map[transition]bool{
	{models.StatusActive, models.StatusCancelled}: true,
	{models.StatusActive, models.StatusExpired}:   true,
}

// CanTransition сообщает, допустим ли переход статуса from -> to.
func CanTransition(from, to models.Status) bool {
	return transitions[transition{from, to}]
}
