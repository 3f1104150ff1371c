// Package storage реализует хранилище пользователей, тарифов и подписок на основе PostgreSQL.
//
// Все запросы выполняются через Queries, который работает поверх *sql.DB или *sql.Tx.
// Многошаговые операции (проверка и запись) выполняются внутри WithTx:
// обработчик получает Queries, привязанный к транзакции, и не полагается на неявное состояние.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
)

// DBTX описывает общее подмножество методов *sql.DB и *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries выполняет запросы к таблицам users, plans и subscriptions.
type Queries struct {
	db DBTX
}

// NewQueries создаёт Queries поверх соединения или транзакции.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// Storage инкапсулирует соединение с базой данных PostgreSQL.
// Встроенный Queries выполняет запросы вне транзакции.
type Storage struct {
	DB *sql.DB
	*Queries
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB:      db,
		Queries: NewQueries(db),
	}, nil
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.CheckDatabaseReady: required table subscriptions missing")
	}
	return nil
}

// WithTx выполняет fn в транзакции. Если fn вернула ошибку или запаниковала,
// транзакция откатывается, иначе фиксируется.
func (s *Storage) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	return s.withTx(ctx, "storage.WithTx", nil, fn)
}

// WithReadTx выполняет fn в транзакции только для чтения на уровне REPEATABLE READ:
// все запросы fn видят один снимок данных.
func (s *Storage) WithReadTx(ctx context.Context, fn func(q *Queries) error) error {
	return s.withTx(ctx, "storage.WithReadTx", &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	}, fn)
}

func (s *Storage) withTx(ctx context.Context, op string, opts *sql.TxOptions, fn func(q *Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewQueries(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("%s: rollback: %w", op, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// Close закрывает соединение с базой данных.
func (s *Storage) Close() error {
	return s.DB.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrCode(err) == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrCode(err) == pgerrcode.ForeignKeyViolation
}

func affected(op string, res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}
