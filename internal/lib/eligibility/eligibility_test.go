package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestPlanActive(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name string
		plan models.Plan
		at   time.Time
		want bool
	}{
		{"до начала окна", models.Plan{ActiveFrom: from}, from.Add(-time.Second), false},
		{"ровно в начале окна", models.Plan{ActiveFrom: from}, from, true},
		{"бессрочный тариф далеко в будущем", models.Plan{ActiveFrom: from}, from.AddDate(10, 0, 0), true},
		{"внутри окна", models.Plan{ActiveFrom: from, ActiveTo: &to}, from.AddDate(0, 6, 0), true},
		{"ровно в конце окна", models.Plan{ActiveFrom: from, ActiveTo: &to}, to, true},
		{"после окна", models.Plan{ActiveFrom: from, ActiveTo: &to}, to.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanActive(&tt.plan, tt.at))
		})
	}
}

func TestPlanActive_MatchesDefinition(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{-48 * time.Hour, -time.Hour, 0, time.Hour, 48 * time.Hour}

	for _, fromOff := range offsets {
		for _, toOff := range append(offsets, -1) {
			p := models.Plan{ActiveFrom: base.Add(fromOff)}
			if toOff != -1 {
				p.ActiveTo = ptr(base.Add(toOff))
			}
			for _, atOff := range offsets {
				at := base.Add(atOff)
				want := !p.ActiveFrom.After(at) && (p.ActiveTo == nil || !at.After(*p.ActiveTo))
				assert.Equal(t, want, PlanActive(&p, at), "from=%v to=%v at=%v", fromOff, toOff, atOff)
			}
		}
	}
}

func TestSubscriptionActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  models.Subscription
		want bool
	}{
		{"активна без даты окончания", models.Subscription{Status: models.StatusActive, StartDate: now.AddDate(0, -1, 0)}, true},
		{"активна до даты окончания", models.Subscription{Status: models.StatusActive, EndDate: ptr(now.Add(time.Hour))}, true},
		{"ровно в дату окончания", models.Subscription{Status: models.StatusActive, EndDate: ptr(now)}, true},
		{"дата окончания прошла", models.Subscription{Status: models.StatusActive, EndDate: ptr(now.Add(-time.Second))}, false},
		{"отменена", models.Subscription{Status: models.StatusCancelled}, false},
		{"истекла", models.Subscription{Status: models.StatusExpired, EndDate: ptr(now.Add(time.Hour))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubscriptionActive(&tt.sub, now))
		})
	}
}

// Подписка с датой начала в будущем уже считается активной: StartDate не проверяется.
func TestSubscriptionActive_IgnoresStartDate(t *testing.T) {
	now := time.Now()
	sub := models.Subscription{
		Status:    models.StatusActive,
		StartDate: now.AddDate(1, 0, 0),
	}
	assert.True(t, SubscriptionActive(&sub, now))
	assert.True(t, SubscriptionActiveNow(&sub))
}

func TestPlanActiveNow(t *testing.T) {
	yesterday := time.Now().AddDate(0, 0, -1)
	assert.True(t, PlanActiveNow(&models.Plan{ActiveFrom: yesterday}))
	assert.False(t, PlanActiveNow(&models.Plan{ActiveFrom: yesterday.AddDate(0, 0, -1), ActiveTo: &yesterday}))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.StatusActive, models.StatusCancelled))
	assert.True(t, CanTransition(models.StatusActive, models.StatusExpired))

	for _, from := range []models.Status{models.StatusCancelled, models.StatusExpired} {
		for _, to := range models.Statuses() {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(models.StatusActive, models.StatusActive))
}
