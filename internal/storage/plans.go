package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

const planColumns = `id, name, tier, description, price, billing_period,
	active_from, active_to, created_at, updated_at`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	if err := row.Scan(&p.ID, &p.Name, &p.Tier, &p.Description, &p.Price, &p.BillingPeriod,
		&p.ActiveFrom, &p.ActiveTo, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q *Queries) listPlans(ctx context.Context, op, query string, args ...any) ([]*models.Plan, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreatePlan вставляет новый тариф.
func (q *Queries) CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error) {
	const op = "storage.CreatePlan"

	query := `INSERT INTO plans (name, tier, description, price, billing_period, active_from, active_to)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + planColumns
	res, err := scanPlan(q.db.QueryRowContext(ctx, query,
		plan.Name, plan.Tier, plan.Description, plan.Price, plan.BillingPeriod, plan.ActiveFrom, plan.ActiveTo))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GetPlan возвращает тариф по ID.
func (q *Queries) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlan"

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	res, err := scanPlan(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// GetPlanForUpdate возвращает тариф и блокирует строку до конца транзакции.
func (q *Queries) GetPlanForUpdate(ctx context.Context, id int64) (*models.Plan, error) {
	const op = "storage.GetPlanForUpdate"

	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1 FOR UPDATE`
	res, err := scanPlan(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// ListPlans возвращает тарифы с пагинацией.
func (q *Queries) ListPlans(ctx context.Context, limit, offset int) ([]*models.Plan, error) {
	const op = "storage.ListPlans"

	query := `SELECT ` + planColumns + ` FROM plans ORDER BY id LIMIT $1 OFFSET $2`
	return q.listPlans(ctx, op, query, limit, offset)
}

// ListActivePlans возвращает тарифы, активные в момент at.
func (q *Queries) ListActivePlans(ctx context.Context, at time.Time) ([]*models.Plan, error) {
	const op = "storage.ListActivePlans"

	query := `SELECT ` + planColumns + `
			  FROM plans
			  WHERE active_from <= $1
			    AND (active_to IS NULL OR active_to >= $1)
			  ORDER BY id`
	return q.listPlans(ctx, op, query, at)
}

// UpdatePlan перезаписывает все изменяемые поля тарифа.
func (q *Queries) UpdatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error) {
	const op = "storage.UpdatePlan"

	query := `UPDATE plans
			  SET name = $2, tier = $3, description = $4, price = $5, billing_period = $6,
			      active_from = $7, active_to = $8, updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + planColumns
	res, err := scanPlan(q.db.QueryRowContext(ctx, query, plan.ID,
		plan.Name, plan.Tier, plan.Description, plan.Price, plan.BillingPeriod, plan.ActiveFrom, plan.ActiveTo))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// DeletePlan удаляет тариф и возвращает количество удалённых строк.
func (q *Queries) DeletePlan(ctx context.Context, id int64) (int, error) {
	const op = "storage.DeletePlan"

	res, err := q.db.ExecContext(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, apperr.Conflict("plan is referenced by subscriptions"))
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}
