package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan представляет тарифный план с окном активности [ActiveFrom, ActiveTo].
// ActiveTo == nil означает бессрочный тариф.
type Plan struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Tier          Tier            `json:"tier"`
	Description   *string         `json:"description"`
	Price         decimal.Decimal `json:"price"`
	BillingPeriod string          `json:"billing_period"`
	ActiveFrom    time.Time       `json:"active_from"`
	ActiveTo      *time.Time      `json:"active_to"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PlanUpdate содержит поля для частичного обновления тарифа.
type PlanUpdate struct {
	Name          *string          `json:"name,omitempty"`
	Tier          *Tier            `json:"tier,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	BillingPeriod *string          `json:"billing_period,omitempty"`
	ActiveFrom    *time.Time       `json:"active_from,omitempty"`
	ActiveTo      *time.Time       `json:"active_to,omitempty"`
}

// Apply возвращает копию тарифа с применёнными переданными полями.
func (u PlanUpdate) Apply(p Plan) Plan {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Tier != nil {
		p.Tier = *u.Tier
	}
	if u.Description != nil {
		p.Description = u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.BillingPeriod != nil {
		p.BillingPeriod = *u.BillingPeriod
	}
	if u.ActiveFrom != nil {
		p.ActiveFrom = *u.ActiveFrom
	}
	if u.ActiveTo != nil {
		p.ActiveTo = u.ActiveTo
	}
	return p
}
