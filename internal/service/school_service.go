package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/repository"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id string) error
}

// CreateSchoolRequest holds payload for creating schools.
type CreateSchoolRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Address string `json:"address" validate:"required,min=5"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Website string `json:"website" validate:"omitempty,url"`
	Logo    string `json:"logo"`
}

// UpdateSchoolRequest holds payload for partially updating schools.
type UpdateSchoolRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=100"`
	Address *string `json:"address" validate:"omitempty,min=5"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Website *string `json:"website" validate:"omitempty,url"`
	Logo    *string `json:"logo"`
	Active  *bool   `json:"active"`
}

// SchoolService handles school use-cases. Creation, update and deletion
// are superadmin-only, enforced at the route level.
type SchoolService struct {
	repo      schoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs the school service.
func NewSchoolService(repo schoolRepository, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, validator: validate, logger: logger}
}

// List returns schools and the total count. Any authenticated user may
// browse schools; scoping applies to individual resources, not the index.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	return schools, total, nil
}

// Get returns a single school, enforcing the principal's school scope.
func (s *SchoolService) Get(ctx context.Context, id string, principal *models.Principal) (*models.School, error) {
	if !principal.AllowsSchool(id) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Create registers a new school. School names are globally unique.
func (s *SchoolService) Create(ctx context.Context, req CreateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
	}
	school := &models.School{
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
		Email:   req.Email,
		Website: req.Website,
		Logo:    req.Logo,
		Active:  true,
	}
	if err := s.repo.Create(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	return school, nil
}

// Update modifies an existing school record.
func (s *SchoolService) Update(ctx context.Context, id string, req UpdateSchoolRequest) (*models.School, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	if req.Name != nil && *req.Name != school.Name {
		exists, err := s.repo.ExistsByName(ctx, *req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
		}
		school.Name = *req.Name
	}
	if req.Address != nil {
		school.Address = *req.Address
	}
	if req.Phone != nil {
		school.Phone = *req.Phone
	}
	if req.Email != nil {
		school.Email = *req.Email
	}
	if req.Website != nil {
		school.Website = *req.Website
	}
	if req.Logo != nil {
		school.Logo = *req.Logo
	}
	if req.Active != nil {
		school.Active = *req.Active
	}
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	return school, nil
}

// Delete removes a school.
func (s *SchoolService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		if errors.Is(err, repository.ErrSchoolInUse) {
			return appErrors.Clone(appErrors.ErrConflict, "school still has classrooms or students")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}
	return nil
}
