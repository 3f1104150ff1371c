package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date,
	cancelled_at, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var s models.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.StartDate, &s.EndDate,
		&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (q *Queries) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Subscription, 0)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateSubscription вставляет подписку и возвращает сохранённую запись.
func (q *Queries) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"

	query := `INSERT INTO subscriptions (user_id, plan_id, status, start_date, end_date, cancelled_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + subscriptionColumns
	res, err := scanSubscription(q.db.QueryRowContext(ctx, query,
		sub.UserID, sub.PlanID, sub.Status, sub.StartDate, sub.EndDate, sub.CancelledAt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GetSubscription возвращает подписку по ID.
func (q *Queries) GetSubscription(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscription"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	res, err := scanSubscription(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// GetSubscriptionForUpdate возвращает подписку и блокирует строку до конца транзакции.
func (q *Queries) GetSubscriptionForUpdate(ctx context.Context, id int64) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionForUpdate"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 FOR UPDATE`
	res, err := scanSubscription(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// ListSubscriptionsByUser возвращает все подписки пользователя.
func (q *Queries) ListSubscriptionsByUser(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByUser"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 ORDER BY id`
	return q.listSubscriptions(ctx, op, query, userID)
}

// ListActiveSubscriptionsByUser возвращает подписки пользователя со статусом ACTIVE.
// Функциональную активность (дату окончания) проверяет вызывающий код.
func (q *Queries) ListActiveSubscriptionsByUser(ctx context.Context, userID int64) ([]*models.Subscription, error) {
	const op = "storage.ListActiveSubscriptionsByUser"

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_id = $1 AND status = $2
			  ORDER BY id`
	return q.listSubscriptions(ctx, op, query, userID, models.StatusActive)
}

// UpdateSubscription обновляет только переданные поля подписки.
func (q *Queries) UpdateSubscription(ctx context.Context, id int64, upd models.SubscriptionUpdate) (*models.Subscription, error) {
	const op = "storage.UpdateSubscription"

	query := `UPDATE subscriptions
			  SET plan_id = COALESCE($2, plan_id),
			      status = COALESCE($3, status),
			      end_date = COALESCE($4, end_date),
			      cancelled_at = COALESCE($5, cancelled_at),
			      updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + subscriptionColumns
	res, err := scanSubscription(q.db.QueryRowContext(ctx, query, id,
		upd.PlanID, upd.Status, upd.EndDate, upd.CancelledAt))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// DeleteSubscription удаляет подписку и возвращает количество удалённых строк.
func (q *Queries) DeleteSubscription(ctx context.Context, id int64) (int, error) {
	const op = "storage.DeleteSubscription"

	res, err := q.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}

// ExpireSubscriptions переводит в EXPIRED все подписки со статусом ACTIVE,
// у которых дата окончания раньше now, и возвращает изменённые записи.
func (q *Queries) ExpireSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	const op = "storage.ExpireSubscriptions"

	query := `UPDATE subscriptions
			  SET status = $1, updated_at = NOW()
			  WHERE status = $2
			    AND end_date IS NOT NULL
			    AND end_date < $3
			  RETURNING ` + subscriptionColumns
	return q.listSubscriptions(ctx, op, query, models.StatusExpired, models.StatusActive, now)
}

const detailColumns = `s.id, s.user_id, s.plan_id, s.status, s.start_date, s.end_date,
	s.cancelled_at, s.created_at, s.updated_at,
	u.id, u.email, u.name, u.mode, u.created_at, u.updated_at,
	p.id, p.name, p.tier, p.description, p.price, p.billing_period,
	p.active_from, p.active_to, p.created_at, p.updated_at`

func scanDetail(row rowScanner) (*models.SubscriptionDetail, error) {
	var d models.SubscriptionDetail
	s, u, p := &d.Subscription, &d.User, &d.Plan
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.StartDate, &s.EndDate,
		&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
		&u.ID, &u.Email, &u.Name, &u.Mode, &u.CreatedAt, &u.UpdatedAt,
		&p.ID, &p.Name, &p.Tier, &p.Description, &p.Price, &p.BillingPeriod,
		&p.ActiveFrom, &p.ActiveTo, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetSubscriptionDetail возвращает подписку вместе с пользователем и тарифом.
func (q *Queries) GetSubscriptionDetail(ctx context.Context, id int64) (*models.SubscriptionDetail, error) {
	const op = "storage.GetSubscriptionDetail"

	query := `SELECT ` + detailColumns + `
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  JOIN plans p ON p.id = s.plan_id
			  WHERE s.id = $1`
	res, err := scanDetail(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// ListSubscriptionDetails возвращает подписки с пользователями и тарифами с пагинацией.
func (q *Queries) ListSubscriptionDetails(ctx context.Context, limit, offset int) ([]*models.SubscriptionDetail, error) {
	const op = "storage.ListSubscriptionDetails"

	query := `SELECT ` + detailColumns + `
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  JOIN plans p ON p.id = s.plan_id
			  ORDER BY s.id
			  LIMIT $1 OFFSET $2`
	rows, err := q.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.SubscriptionDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
