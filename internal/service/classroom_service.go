package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/models"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
	"github.com/andriyansah/school-api/pkg/export"
)

type classroomRepository interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassroomDetail, error)
	ExistsByName(ctx context.Context, name, schoolID, excludeID string) (bool, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Update(ctx context.Context, classroom *models.Classroom) error
	Delete(ctx context.Context, id string) error
	ListStudents(ctx context.Context, classroomID string) ([]models.Student, error)
}

type classroomSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// CreateClassroomRequest holds payload for creating classrooms.
type CreateClassroomRequest struct {
	Name      string            `json:"name" validate:"required,min=1,max=50"`
	School    string            `json:"school" validate:"required"`
	Capacity  int               `json:"capacity" validate:"required,min=1"`
	Resources []models.Resource `json:"resources" validate:"omitempty,dive"`
}

// UpdateClassroomRequest holds payload for partially updating classrooms.
type UpdateClassroomRequest struct {
	Name      *string           `json:"name" validate:"omitempty,min=1,max=50"`
	Capacity  *int              `json:"capacity" validate:"omitempty,min=1"`
	Resources []models.Resource `json:"resources" validate:"omitempty,dive"`
	Active    *bool             `json:"active"`
}

// ClassroomService handles classroom use-cases with school scoping.
type ClassroomService struct {
	repo      classroomRepository
	schools   classroomSchoolRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassroomService constructs the classroom service.
func NewClassroomService(repo classroomRepository, schools classroomSchoolRepository, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, schools: schools, validator: validate, logger: logger}
}

// List returns classrooms. School admins are pinned to their own school
// regardless of the requested filter.
func (s *ClassroomService) List(ctx context.Context, filter models.ClassroomFilter, principal *models.Principal) ([]models.ClassroomDetail, int, error) {
	if !principal.IsSuperAdmin() && principal.SchoolID != nil {
		filter.SchoolID = *principal.SchoolID
	}
	classrooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, total, nil
}

// Get returns a classroom, enforcing scope against the owning school.
func (s *ClassroomService) Get(ctx context.Context, id string, principal *models.Principal) (*models.ClassroomDetail, error) {
	classroom, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.AllowsSchool(classroom.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}
	return classroom, nil
}

// Create registers a classroom under a school the principal manages.
func (s *ClassroomService) Create(ctx context.Context, req CreateClassroomRequest, principal *models.Principal) (*models.ClassroomDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	if !principal.AllowsSchool(req.School) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}
	if _, err := s.schools.FindByID(ctx, req.School); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, req.School, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a classroom with this name already exists in this school")
	}
	classroom := &models.Classroom{
		Name:      req.Name,
		SchoolID:  req.School,
		Capacity:  req.Capacity,
		Resources: req.Resources,
		Active:    true,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return s.load(ctx, classroom.ID)
}

// Update modifies a classroom's mutable fields.
func (s *ClassroomService) Update(ctx context.Context, id string, req UpdateClassroomRequest, principal *models.Principal) (*models.ClassroomDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.AllowsSchool(detail.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}

	classroom := detail.Classroom
	if req.Name != nil && *req.Name != classroom.Name {
		exists, err := s.repo.ExistsByName(ctx, *req.Name, classroom.SchoolID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom name")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a classroom with this name already exists in this school")
		}
		classroom.Name = *req.Name
	}
	if req.Capacity != nil {
		classroom.Capacity = *req.Capacity
	}
	if req.Resources != nil {
		classroom.Resources = req.Resources
	}
	if req.Active != nil {
		classroom.Active = *req.Active
	}
	if err := s.repo.Update(ctx, &classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return s.load(ctx, id)
}

// Delete removes a classroom. Students currently assigned have their
// classroom reference cleared by the schema, not withdrawn.
func (s *ClassroomService) Delete(ctx context.Context, id string, principal *models.Principal) error {
	detail, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !principal.AllowsSchool(detail.SchoolID) {
		return appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	return nil
}

// Roster builds a printable dataset of the classroom's active students.
func (s *ClassroomService) Roster(ctx context.Context, id string, principal *models.Principal) (*export.Dataset, error) {
	detail, err := s.Get(ctx, id, principal)
	if err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := &export.Dataset{
		Title:   fmt.Sprintf("%s - %s roster", detail.SchoolName, detail.Name),
		Headers: []string{"First name", "Last name", "Email", "Enrolled"},
	}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, []string{
			st.FirstName,
			st.LastName,
			st.Email,
			st.EnrolledAt.Format("2006-01-02"),
		})
	}
	return dataset, nil
}

func (s *ClassroomService) load(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}
