package plan

import (
	"context"

	"github.com/magabrotheeeer/subscription-manager/internal/storage"
)

// PostgresStore реализует Store поверх storage.Storage.
type PostgresStore struct {
	*storage.Storage
}

// NewPostgresStore оборачивает хранилище PostgreSQL.
func NewPostgresStore(st *storage.Storage) PostgresStore {
	return PostgresStore{Storage: st}
}

// WithinTx выполняет fn в транзакции storage.WithTx.
func (s PostgresStore) WithinTx(ctx context.Context, fn func(repo Repository) error) error {
	return s.WithTx(ctx, func(q *storage.Queries) error {
		return fn(q)
	})
}
