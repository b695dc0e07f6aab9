package services

import (
	"context"
	"errors"
	"strings"

	"github.com/revenac/apiserver/internal/store"
	"github.com/revenac/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapStoreError(err, "User not found")
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return types.User{}, mapStoreError(err, "User not found")
	}
	return user, nil
}

// Create registers a new account with a zero balance. The role defaults to
// USER.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.City = strings.TrimSpace(user.City)
	if user.Name == "" || user.Email == "" || user.PasswordHash == "" {
		return types.User{}, invalidInput("missing required fields")
	}
	if !strings.Contains(user.Email, "@") {
		return types.User{}, invalidInput("invalid email")
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	user.TokenBalance = 0
	user.BottleCount = 0
	user.CarbonSaved = 0

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, newError(KindConflict, "email already registered", err)
		}
		return types.User{}, storeFailure(err)
	}
	return created, nil
}
