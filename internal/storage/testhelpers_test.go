package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-manager/internal/migrations"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// setupTestStorage поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err, "failed to create storage")

	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(projectRoot, "migrations")))

	t.Cleanup(func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return storage
}

// testDataFactory создаёт тестовые записи через публичные методы хранилища.
type testDataFactory struct {
	t       *testing.T
	storage *Storage
	seq     int
}

func newTestDataFactory(t *testing.T, storage *Storage) *testDataFactory {
	return &testDataFactory{t: t, storage: storage}
}

func (f *testDataFactory) user(mode models.Mode) *models.User {
	f.seq++
	u, err := f.storage.CreateUser(context.Background(), models.User{
		Email: fmt.Sprintf("user%d@example.com", f.seq),
		Name:  "Test User",
		Mode:  mode,
	})
	require.NoError(f.t, err)
	return u
}

func (f *testDataFactory) plan(name string, tier models.Tier, from time.Time, to *time.Time) *models.Plan {
	p, err := f.storage.CreatePlan(context.Background(), models.Plan{
		Name:          name,
		Tier:          tier,
		Price:         decimal.RequireFromString("9.99"),
		BillingPeriod: "monthly",
		ActiveFrom:    from,
		ActiveTo:      to,
	})
	require.NoError(f.t, err)
	return p
}

func (f *testDataFactory) subscription(userID, planID int64, status models.Status, end *time.Time) *models.Subscription {
	s, err := f.storage.CreateSubscription(context.Background(), models.Subscription{
		UserID:    userID,
		PlanID:    planID,
		Status:    status,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   end,
	})
	require.NoError(f.t, err)
	return s
}

func ptr[T any](v T) *T {
	return &v
}
