package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/models"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.UserDetail, error)
}

// UserService exposes read access to platform accounts. Listing is
// superadmin-only; detail reads additionally allow a user to fetch
// their own account.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter, principal *models.Principal) ([]models.UserDetail, int, error) {
	if !principal.IsSuperAdmin() {
		return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "access denied: superadmin only")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, total, nil
}

// Get returns a single account by id.
func (s *UserService) Get(ctx context.Context, id string, principal *models.Principal) (*models.UserDetail, error) {
	if !principal.IsSuperAdmin() && principal.ID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: superadmin only")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}
