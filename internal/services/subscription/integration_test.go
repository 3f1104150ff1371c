package subscription

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-manager/internal/cache"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-manager/internal/migrations"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
	"github.com/magabrotheeeer/subscription-manager/internal/rabbitmq"
	"github.com/magabrotheeeer/subscription-manager/internal/storage"
)

func setupIntegration(t *testing.T) (*storage.Storage, *SubscriptionService) {
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
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	st, err := storage.New(connStr)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(st.DB, filepath.Join(root, "migrations")))

	svc := NewSubscriptionService(NewPostgresStore(st), cache.Noop{}, rabbitmq.NoopPublisher{}, sl.Discard())
	return st, svc
}

func TestIntegration_ConcurrentCreateKeepsSingleActive(t *testing.T) {
	st, svc := setupIntegration(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, models.User{Email: "race@example.com", Name: "Race", Mode: models.ModeLive})
	require.NoError(t, err)
	plan, err := st.CreatePlan(ctx, models.Plan{
		Name: "Basic", Tier: models.TierBasic, Price: decimal.RequireFromString("9.99"),
		BillingPeriod: "monthly", ActiveFrom: time.Now().AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, models.NewSubscription{UserID: user.ID, PlanID: plan.ID, StartDate: time.Now()})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperr.Message(err) == "user already has an active subscription":
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	active, err := st.ListActiveSubscriptionsByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestIntegration_CancelTwice(t *testing.T) {
	st, svc := setupIntegration(t)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, models.User{Email: "cancel@example.com", Name: "C", Mode: models.ModeLive})
	require.NoError(t, err)
	plan, err := st.CreatePlan(ctx, models.Plan{
		Name: "Pro", Tier: models.TierPro, Price: decimal.RequireFromString("29.99"),
		BillingPeriod: "monthly", ActiveFrom: time.Now().AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	sub, err := svc.Create(ctx, models.NewSubscription{UserID: user.ID, PlanID: plan.ID, StartDate: time.Now()})
	require.NoError(t, err)

	first, err := svc.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CancelledAt)

	_, err = svc.Cancel(ctx, sub.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidOperation)

	stored, err := st.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
	assert.True(t, stored.CancelledAt.Equal(*first.CancelledAt), "cancelled_at is set once")

	detail, err := svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, detail.User.Email)
}
