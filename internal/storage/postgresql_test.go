package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

func TestStorage_Users(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	created, err := storage.CreateUser(ctx, models.User{Email: "ann@example.com", Name: "Ann", Mode: models.ModeLive})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.ModeLive, created.Mode)

	_, err = storage.CreateUser(ctx, models.User{Email: "ann@example.com", Name: "Other", Mode: models.ModeLive})
	require.ErrorIs(t, err, apperr.ErrConflict)

	byEmail, err := storage.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	updated, err := storage.UpdateUser(ctx, created.ID, models.UserUpdate{Mode: ptr(models.ModeSimulation)})
	require.NoError(t, err)
	assert.Equal(t, models.ModeSimulation, updated.Mode)
	assert.Equal(t, "Ann", updated.Name, "незаданные поля не меняются")

	_, err = storage.UpdateUser(ctx, 999999, models.UserUpdate{Name: ptr("x")})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	list, err := storage.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := storage.DeleteUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = storage.GetUser(ctx, created.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	n, err = storage.DeleteUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStorage_Plans(t *testing.T) {
	storage := setupTestStorage(t)
	f := newTestDataFactory(t, storage)
	ctx := context.Background()

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	endJan := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	closed := f.plan("January", models.TierBasic, jan, &endJan)
	open := f.plan("Forever", models.TierFree, jan, nil)

	got, err := storage.GetPlan(ctx, closed.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("9.99").Equal(got.Price))
	require.NotNil(t, got.ActiveTo)
	assert.True(t, got.ActiveTo.Equal(endJan))

	active, err := storage.ListActivePlans(ctx, endJan)
	require.NoError(t, err)
	assert.Len(t, active, 2, "граница окна включительна")

	active, err = storage.ListActivePlans(ctx, endJan.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)

	closed.Name = "Renamed"
	closed.Price = decimal.RequireFromString("19.50")
	upd, err := storage.UpdatePlan(ctx, *closed)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", upd.Name)
	assert.True(t, decimal.RequireFromString("19.5").Equal(upd.Price))

	u := f.user(models.ModeLive)
	f.subscription(u.ID, open.ID, models.StatusActive, nil)

	_, err = storage.DeletePlan(ctx, open.ID)
	require.ErrorIs(t, err, apperr.ErrConflict)

	n, err := storage.DeletePlan(ctx, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorage_Subscriptions(t *testing.T) {
	storage := setupTestStorage(t)
	f := newTestDataFactory(t, storage)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	u := f.user(models.ModeLive)
	p := f.plan("Pro", models.TierPro, now.AddDate(-1, 0, 0), nil)

	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)
	lapsed := f.subscription(u.ID, p.ID, models.StatusActive, &past)
	current := f.subscription(u.ID, p.ID, models.StatusActive, &future)

	byUser, err := storage.ListSubscriptionsByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	detail, err := storage.GetSubscriptionDetail(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, detail.User.Email)
	assert.Equal(t, p.Name, detail.Plan.Name)

	details, err := storage.ListSubscriptionDetails(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, details, 2)

	expired, err := storage.ExpireSubscriptions(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, lapsed.ID, expired[0].ID)
	assert.Equal(t, models.StatusExpired, expired[0].Status)

	active, err := storage.ListActiveSubscriptionsByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, current.ID, active[0].ID)

	cancelledAt := now
	upd, err := storage.UpdateSubscription(ctx, current.ID, models.SubscriptionUpdate{
		Status:      ptr(models.StatusCancelled),
		CancelledAt: &cancelledAt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, upd.Status)
	require.NotNil(t, upd.CancelledAt)
	require.NotNil(t, upd.EndDate, "незаданная дата окончания сохраняется")

	_, err = storage.UpdateSubscription(ctx, 999999, models.SubscriptionUpdate{Status: ptr(models.StatusExpired)})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	n, err := storage.DeleteSubscription(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = storage.GetSubscription(ctx, lapsed.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStorage_Reports(t *testing.T) {
	storage := setupTestStorage(t)
	f := newTestDataFactory(t, storage)
	ctx := context.Background()

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := f.user(models.ModeLive)
	basic := f.plan("Basic", models.TierBasic, from, nil)
	pro := f.plan("Pro", models.TierPro, from, nil)
	f.plan("Unused", models.TierFree, from, nil)

	f.subscription(u.ID, basic.ID, models.StatusActive, nil)
	f.subscription(u.ID, basic.ID, models.StatusCancelled, nil)
	f.subscription(u.ID, pro.ID, models.StatusExpired, nil)

	total, err := storage.CountSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	byStatus, err := storage.CountSubscriptionsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.Status]int{
		models.StatusActive:    1,
		models.StatusCancelled: 1,
		models.StatusExpired:   1,
	}, byStatus)

	byPlan, err := storage.CountSubscriptionsByPlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.PlanCount{
		{PlanName: "Basic", Tier: models.TierBasic, Count: 2},
		{PlanName: "Pro", Tier: models.TierPro, Count: 1},
	}, byPlan)
}

func TestStorage_WithTx(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	errBoom := errors.New("boom")
	err := storage.WithTx(ctx, func(q *Queries) error {
		_, err := q.CreateUser(ctx, models.User{Email: "tx@example.com", Name: "Tx", Mode: models.ModeLive})
		require.NoError(t, err)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = storage.GetUserByEmail(ctx, "tx@example.com")
	require.ErrorIs(t, err, apperr.ErrNotFound, "изменения откатываются")

	err = storage.WithTx(ctx, func(q *Queries) error {
		u, err := q.CreateUser(ctx, models.User{Email: "tx@example.com", Name: "Tx", Mode: models.ModeLive})
		if err != nil {
			return err
		}
		_, err = q.GetUserForUpdate(ctx, u.ID)
		return err
	})
	require.NoError(t, err)

	_, err = storage.GetUserByEmail(ctx, "tx@example.com")
	require.NoError(t, err)

	require.NoError(t, CheckDatabaseReady(ctx, storage))
}

func TestStorage_WithReadTx(t *testing.T) {
	storage := setupTestStorage(t)
	f := newTestDataFactory(t, storage)
	ctx := context.Background()

	u := f.user(models.ModeLive)
	p := f.plan("Basic", models.TierBasic, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	f.subscription(u.ID, p.ID, models.StatusActive, nil)

	err := storage.WithReadTx(ctx, func(q *Queries) error {
		before, err := q.CountSubscriptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, before)

		f.subscription(u.ID, p.ID, models.StatusCancelled, nil)

		after, err := q.CountSubscriptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after, "запросы транзакции видят один снимок")

		byStatus, err := q.CountSubscriptionsByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[models.Status]int{models.StatusActive: 1}, byStatus)

		_, err = q.CreateUser(ctx, models.User{Email: "ro@example.com", Name: "RO", Mode: models.ModeLive})
		return err
	})
	require.Error(t, err, "запись в транзакции только для чтения запрещена")

	total, err := storage.CountSubscriptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestStorage_GetPlanForUpdate(t *testing.T) {
	storage := setupTestStorage(t)
	f := newTestDataFactory(t, storage)
	ctx := context.Background()

	p := f.plan("Basic", models.TierBasic, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	err := storage.WithTx(ctx, func(q *Queries) error {
		locked, err := q.GetPlanForUpdate(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Basic", locked.Name)

		locked.Name = "Gold"
		_, err = q.UpdatePlan(ctx, *locked)
		return err
	})
	require.NoError(t, err)

	got, err := storage.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gold", got.Name)

	err = storage.WithTx(ctx, func(q *Queries) error {
		_, err := q.GetPlanForUpdate(ctx, p.ID+100)
		return err
	})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
