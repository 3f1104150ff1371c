package report

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

// WithinReadTx выполняет fn в транзакции storage.WithReadTx.
func (s PostgresStore) WithinReadTx(ctx context.Context, fn func(repo Repository) error) error {
	return s.WithReadTx(ctx, func(q *storage.Queries) error {
		return fn(q)
	})
}
