package services

import (
	"context"
	"strings"

	"github.com/dlms-org/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
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
		return types.User{}, storeErr("load user", err)
	}
	return user, nil
}

// Create registers a reference record for a person known to the identity provider.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)
	if user.Name == "" || user.Email == "" {
		return types.User{}, invalidInput("name and email are required")
	}
	switch user.Role {
	case "":
		user.Role = types.RoleUser
	case types.RoleUser, types.RoleAdmin, types.RoleExaminer, types.RoleTrafficPolice:
	default:
		return types.User{}, invalidInput("unknown role " + user.Role)
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, storeErr("create user", err)
	}
	return created, nil
}
