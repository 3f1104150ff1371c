package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// CountSubscriptions возвращает общее количество подписок.
func (q *Queries) CountSubscriptions(ctx context.Context) (int, error) {
	const op = "storage.CountSubscriptions"

	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(id) FROM subscriptions`).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// CountSubscriptionsByStatus возвращает количество подписок по каждому встречающемуся статусу.
func (q *Queries) CountSubscriptionsByStatus(ctx context.Context) (map[models.Status]int, error) {
	const op = "storage.CountSubscriptionsByStatus"

	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(id) FROM subscriptions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountSubscriptionsByPlan возвращает количество подписок по каждому тарифу.
// Тарифы без подписок в результат не попадают.
func (q *Queries) CountSubscriptionsByPlan(ctx context.Context) ([]models.PlanCount, error) {
	const op = "storage.CountSubscriptionsByPlan"

	query := `SELECT p.name, p.tier, COUNT(s.id)
			  FROM plans p
			  JOIN subscriptions s ON s.plan_id = p.id
			  GROUP BY p.id, p.name, p.tier
			  ORDER BY p.id`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.PlanCount, 0)
	for rows.Next() {
		var pc models.PlanCount
		if err := rows.Scan(&pc.PlanName, &pc.Tier, &pc.Count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
