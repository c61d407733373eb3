package service

import (
	"context"
	"strings"

	"sparkclean/internal/domain"
	"sparkclean/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo domain.UserRepository
	broadcaster
}

func NewUserService(repo domain.UserRepository, changes domain.ChangePublisher, logger *zerolog.Logger) *UserService {
	return &UserService{repo: repo, broadcaster: broadcaster{changes: changes, logger: logger}}
}

// GetProfile returns the user with first_name and total_spent filled in.
func (s *UserService) GetProfile(ctx context.Context, actor Actor, userID int64) (*models.User, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if userID == 0 {
		userID = actor.UserID
	}
	if !actor.Owns(userID) {
		return nil, ErrForbidden
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, user)
}

func (s *UserService) enrich(ctx context.Context, user *models.User) (*models.User, error) {
	spent, err := s.repo.GetUserTotalSpent(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.FirstName = models.DeriveFirstName(user.FullName, user.Email)
	user.TotalSpent = spent
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, actor Actor, patch models.UserProfilePatch) (*models.User, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return nil, invalid("must not be blank", "full_name")
		}
		patch.FullName = &name
	}
	if patch.Phone != nil {
		phone := strings.TrimSpace(*patch.Phone)
		patch.Phone = &phone
	}

	user, err := s.repo.UpdateUserProfile(ctx, actor.UserID, patch)
	if err != nil {
		return nil, err
	}
	user, err = s.enrich(ctx, user)
	if err != nil {
		return nil, err
	}
	s.change(models.TableUsers, models.ChangeUpdate, *user)
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, actor Actor) ([]models.User, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	users, err := s.repo.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].FirstName = models.DeriveFirstName(users[i].FullName, users[i].Email)
	}
	return users, nil
}

// AdjustCredits adds delta (negative to deduct) to a user's credit balance.
func (s *UserService) AdjustCredits(ctx context.Context, actor Actor, userID int64, delta float64) (*models.User, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, invalid("must not be zero", "delta")
	}
	current, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Credits+delta < 0 {
		return nil, invalid("would make the balance negative", "delta")
	}
	user, err := s.repo.AdjustUserCredits(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	s.change(models.TableUsers, models.ChangeUpdate, *user)
	return user, nil
}
