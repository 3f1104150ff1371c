package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

const userColumns = `id, email, name, mode, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Mode, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser вставляет пользователя. Занятый email возвращает Conflict.
func (q *Queries) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"

	query := `INSERT INTO users (email, name, mode)
			  VALUES ($1, $2, $3)
			  RETURNING ` + userColumns
	res, err := scanUser(q.db.QueryRowContext(ctx, query, user.Email, user.Name, user.Mode))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, apperr.Conflict("email already registered"))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GetUser возвращает пользователя по ID.
func (q *Queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUser"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	res, err := scanUser(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// GetUserForUpdate возвращает пользователя и блокирует строку до конца транзакции.
// Так параллельные операции над подписками одного пользователя выполняются по очереди.
func (q *Queries) GetUserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUserForUpdate"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	res, err := scanUser(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// GetUserByEmail возвращает пользователя по email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	res, err := scanUser(q.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, notFound(op, err)
	}
	return res, nil
}

// ListUsers возвращает пользователей с пагинацией.
func (q *Queries) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := q.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateUser обновляет только переданные поля пользователя.
func (q *Queries) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.UpdateUser"

	query := `UPDATE users
			  SET email = COALESCE($2, email),
			      name = COALESCE($3, name),
			      mode = COALESCE($4, mode),
			      updated_at = NOW()
			  WHERE id = $1
			  RETURNING ` + userColumns
	res, err := scanUser(q.db.QueryRowContext(ctx, query, id, upd.Email, upd.Name, upd.Mode))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, apperr.Conflict("email already registered"))
		}
		return nil, notFound(op, err)
	}
	return res, nil
}

// DeleteUser удаляет пользователя и возвращает количество удалённых строк.
// Каскадного удаления подписок нет: если они есть, возвращается Conflict.
func (q *Queries) DeleteUser(ctx context.Context, id int64) (int, error) {
	const op = "storage.DeleteUser"

	res, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, apperr.Conflict("user is referenced by subscriptions"))
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}
