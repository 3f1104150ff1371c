// Package user содержит бизнес-логику управления пользователями.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-manager/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/eligibility"
	"github.com/magabrotheeeer/subscription-manager/internal/models"
)

// Repository определяет методы хранилища для работы с пользователями.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) (int, error)
	ListActiveSubscriptionsByUser(ctx context.Context, userID int64) ([]*models.Subscription, error)
}

// Store добавляет к Repository транзакции.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// UserService реализует CRUD пользователей с проверкой уникальности email.
type UserService struct {
	repo Store
	log  *slog.Logger
	now  func() time.Time
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(store Store, log *slog.Logger) *UserService {
	return &UserService{
		repo: store,
		log:  log,
		now:  time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

var (
	errEmailTaken         = apperr.Conflict("email already registered")
	errActiveSubscription = apperr.Conflict("user with an active subscription cannot switch to simulation mode")
)

// Create регистрирует пользователя. По умолчанию режим LIVE.
func (s *UserService) Create(ctx context.Context, user models.User) (*models.User, error) {
	const op = "services.user.Create"

	if user.Mode == models.ModeUnknown {
		user.Mode = models.ModeLive
	}

	if err := ensureEmailFree(ctx, s.repo, user.Email, 0); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created user", slog.Int64("id", created.ID), slog.String("mode", created.Mode.String()))
	return created, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, apperr.NotFoundAs(err, "user")
	}
	return user, nil
}

// List возвращает пользователей с пагинацией.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.repo.ListUsers(ctx, limit, offset)
}

// Update частично обновляет пользователя. Новый email не должен принадлежать другому пользователю.
// Перевести в режим SIMULATION можно только пользователя без активной подписки.
// Строка пользователя блокируется так же, как при создании подписки, поэтому
// смена режима и создание подписки не выполняются одновременно.
func (s *UserService) Update(ctx context.Context, id int64, upd models.UserUpdate) (*models.User, error) {
	now := s.now()
	var updated *models.User
	err := s.repo.WithinTx(ctx, func(repo Repository) error {
		user, err := repo.GetUserForUpdate(ctx, id)
		if err != nil {
			return apperr.NotFoundAs(err, "user")
		}

		if upd.Email != nil {
			if err := ensureEmailFree(ctx, repo, *upd.Email, id); err != nil {
				return err
			}
		}

		if upd.Mode != nil && *upd.Mode == models.ModeSimulation && !user.IsSimulation() {
			subs, err := repo.ListActiveSubscriptionsByUser(ctx, id)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				if eligibility.SubscriptionActive(sub, now) {
					return errActiveSubscription
				}
			}
		}

		updated, err = repo.UpdateUser(ctx, id, upd)
		return apperr.NotFoundAs(err, "user")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("updated user", slog.Int64("id", id))
	return updated, nil
}

// Delete удаляет пользователя. Пользователя с подписками удалить нельзя.
func (s *UserService) Delete(ctx context.Context, id int64) (int, error) {
	count, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, apperr.NotFound("user")
	}

	s.log.Info("deleted user", slog.Int64("id", id))
	return count, nil
}

// ensureEmailFree проверяет, что email свободен или принадлежит пользователю selfID.
func ensureEmailFree(ctx context.Context, repo Repository, email string, selfID int64) error {
	existing, err := repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return errEmailTaken
	}
	return nil
}
