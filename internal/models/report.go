package models

// PlanKey задаёт группировку отчёта по тарифу.
type PlanKey struct {
	Name string
	Tier Tier
}

// PlanCount хранит количество подписок на конкретный тариф.
type PlanCount struct {
	PlanName string `json:"plan_name"`
	Tier     Tier   `json:"tier"`
	Count    int    `json:"count"`
}

// SubscriptionReport содержит сводный отчёт по подпискам.
type SubscriptionReport struct {
	TotalSubscriptions int            `json:"total_subscriptions"`
	ByStatus           map[Status]int `json:"by_status"`
	ByPlan             []PlanCount    `json:"by_plan"`
}
