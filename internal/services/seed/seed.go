// Package seed наполняет пустую базу демонстрационными тарифами, пользователями и подписками.
// Подписки создаются через менеджер жизненного цикла, поэтому данные соблюдают все его правила.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Repository создаёт тарифы и пользователей.
type Repository interface {
	CreatePlan(ctx context.Context, plan models.Plan) (*models.Plan, error)
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
}

// SubscriptionCreator создаёт подписки через менеджер жизненного цикла.
type SubscriptionCreator interface {
	Create(ctx context.Context, req models.NewSubscription) (*models.Subscription, error)
}

// Result содержит количество созданных записей.
type Result struct {
	Plans         int
	Users         int
	Subscriptions int
}

// SeedService генерирует данные.
type SeedService struct {
	repo Repository
	subs SubscriptionCreator
	log  *slog.Logger
	rnd  *rand.Rand
	now  func() time.Time
}

// NewSeedService создает генератор. Одинаковый seed даёт одинаковые данные.
func NewSeedService(repo Repository, subs SubscriptionCreator, log *slog.Logger, seed uint64) *SeedService {
	return &SeedService{
		repo: repo,
		subs: subs,
		log:  log,
		rnd:  rand.New(rand.NewPCG(seed, seed)),
		now:  time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *SeedService) WithClock(now func() time.Time) *SeedService {
	s.now = now
	return s
}

var (
	basePrices = map[models.Tier]decimal.Decimal{
		models.TierFree:  decimal.Zero,
		models.TierBasic: decimal.RequireFromString("9.99"),
		models.TierPro:   decimal.RequireFromString("29.99"),
	}
	descriptions = map[models.Tier]string{
		models.TierFree:  "Basic access with limited features",
		models.TierBasic: "Standard features for individual users",
		models.TierPro:   "Full access with premium features and priority support",
	}
	tiers          = []models.Tier{models.TierFree, models.TierBasic, models.TierPro}
	billingPeriods = []string{"monthly", "yearly"}

	firstNames = []string{"Anna", "Boris", "Clara", "Dmitry", "Elena", "Fedor", "Galina", "Igor", "Maria", "Oleg"}
	lastNames  = []string{"Ivanova", "Petrov", "Smirnova", "Kuznetsov", "Popova", "Volkov", "Sokolova", "Lebedev"}
)

// Plans формирует тарифы на текущий и следующий год. Бесплатные тарифы текущего
// года бессрочные, тарифы следующего года дороже на 10%, годовые стоят как 10 месяцев.
func Plans(now time.Time) []models.Plan {
	year := now.UTC().Year()
	plans := make([]models.Plan, 0, len(tiers)*len(billingPeriods)*2)

	for _, y := range []int{year, year + 1} {
		from := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(y, 12, 31, 23, 59, 59, 0, time.UTC)

		for _, tier := range tiers {
			for _, period := range billingPeriods {
				price := basePrices[tier]
				if y > year {
					price = price.Mul(decimal.RequireFromString("1.10"))
				}
				if period == "yearly" {
					price = price.Mul(decimal.NewFromInt(10))
				}

				activeTo := &to
				if tier == models.TierFree && y == year {
					activeTo = nil
				}

				desc := descriptions[tier]
				plans = append(plans, models.Plan{
					Name:          fmt.Sprintf("%s %s %d", title(tier.String()), title(period), y),
					Tier:          tier,
					Description:   &desc,
					Price:         price.Round(2),
					BillingPeriod: period,
					ActiveFrom:    from,
					ActiveTo:      activeTo,
				})
			}
		}
	}
	return plans
}

// Run создаёт тарифы, users пользователей (около 10% в режиме SIMULATION)
// и по одной подписке на каждого LIVE пользователя.
func (s *SeedService) Run(ctx context.Context, users int) (Result, error) {
	const op = "services.seed.Run"

	var res Result
	now := s.now()

	var current []*models.Plan
	for _, p := range Plans(now) {
		created, err := s.repo.CreatePlan(ctx, p)
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Plans++
		if created.ActiveFrom.Year() == now.UTC().Year() {
			current = append(current, created)
		}
	}

	for i := range users {
		first := firstNames[s.rnd.IntN(len(firstNames))]
		last := lastNames[s.rnd.IntN(len(lastNames))]
		mode := models.ModeLive
		if s.rnd.IntN(10) == 0 {
			mode = models.ModeSimulation
		}

		user, err := s.repo.CreateUser(ctx, models.User{
			Email: fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i+1),
			Name:  first + " " + last,
			Mode:  mode,
		})
		if err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Users++

		if user.IsSimulation() || len(current) == 0 {
			continue
		}

		plan := current[s.rnd.IntN(len(current))]
		start := now.AddDate(0, 0, -s.rnd.IntN(28))
		if _, err := s.subs.Create(ctx, models.NewSubscription{
			UserID:    user.ID,
			PlanID:    plan.ID,
			StartDate: start,
			EndDate:   endDate(plan, start),
		}); err != nil {
			return res, fmt.Errorf("%s: %w", op, err)
		}
		res.Subscriptions++
	}

	s.log.Info("seed completed",
		slog.Int("plans", res.Plans),
		slog.Int("users", res.Users),
		slog.Int("subscriptions", res.Subscriptions),
	)
	return res, nil
}

// endDate возвращает дату окончания оплаченного периода. У бесплатных тарифов её нет.
func endDate(plan *models.Plan, start time.Time) *time.Time {
	if plan.Tier == models.TierFree {
		return nil
	}
	end := start.AddDate(0, 1, 0)
	if plan.BillingPeriod == "yearly" {
		end = start.AddDate(1, 0, 0)
	}
	return &end
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
