package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/repository"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
	"github.com/andriyansah/school-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	CountInClassroom(ctx context.Context, classroomID string, excludeID string) (int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Transfer(ctx context.Context, student *models.Student, record *models.TransferRecord) error
	ListTransfers(ctx context.Context, studentID string) ([]models.TransferRecord, error)
	Delete(ctx context.Context, id string) error
}

type studentClassroomRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassroomDetail, error)
}

type studentSchoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// EnrollStudentRequest holds payload for enrolling students.
type EnrollStudentRequest struct {
	FirstName   string     `json:"first_name" validate:"required,min=1"`
	LastName    string     `json:"last_name" validate:"required,min=1"`
	Email       string     `json:"email" validate:"required,email"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" validate:"omitempty,oneof=male female other"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	School      string     `json:"school" validate:"required"`
	Classroom   *string    `json:"classroom"`
}

// UpdateStudentRequest holds payload for partially updating students.
// A nil Classroom leaves the assignment unchanged; a pointer to the
// empty string clears it. Email is fixed at enrollment.
type UpdateStudentRequest struct {
	FirstName   *string    `json:"first_name" validate:"omitempty,min=1"`
	LastName    *string    `json:"last_name" validate:"omitempty,min=1"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *string    `json:"gender" validate:"omitempty,oneof=male female other"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
	Classroom   *string    `json:"classroom"`
	Active      *bool      `json:"active"`
}

// TransferStudentRequest holds payload for transferring students.
// Omitting the destination classroom always clears the assignment.
type TransferStudentRequest struct {
	ToSchool    *string `json:"toSchool"`
	ToClassroom *string `json:"toClassroom"`
	Note        string  `json:"note"`
}

// StudentService handles enrollment, updates, transfers and listing.
type StudentService struct {
	repo       studentRepository
	classrooms studentClassroomRepository
	schools    studentSchoolRepository
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classrooms studentClassroomRepository, schools studentSchoolRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classrooms: classrooms, schools: schools, metrics: metrics, validator: validate, logger: logger}
}

// List returns students. School admins are pinned to their own school
// regardless of the requested filter.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter, principal *models.Principal) ([]models.StudentDetail, int, error) {
	if !principal.IsSuperAdmin() && principal.SchoolID != nil {
		filter.SchoolID = *principal.SchoolID
	}
	start := time.Now()
	students, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("students_list", time.Since(start))
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, total, nil
}

// Get returns a student with transfer history, enforcing scope against
// the student's current school.
func (s *StudentService) Get(ctx context.Context, id string, principal *models.Principal) (*models.StudentDetail, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.AllowsSchool(student.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}
	return s.withHistory(ctx, student)
}

// Enroll registers a new student. The capacity invariant runs when a
// classroom is requested; history starts empty.
func (s *StudentService) Enroll(ctx context.Context, req EnrollStudentRequest, principal *models.Principal) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
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

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
	}

	if req.Classroom != nil && *req.Classroom != "" {
		if err := s.checkCapacity(ctx, *req.Classroom, ""); err != nil {
			return nil, err
		}
	}

	student := &models.Student{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Phone:       req.Phone,
		Address:     req.Address,
		SchoolID:    req.School,
		Active:      true,
	}
	if req.Classroom != nil && *req.Classroom != "" {
		student.ClassroomID = req.Classroom
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, s.mapWriteErr(err, "failed to create student")
	}
	return s.load(ctx, student.ID)
}

// Update applies a partial update. A classroom change re-runs the
// capacity invariant, excluding the student's own seat. Transfer history
// is never touched here.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest, principal *models.Principal) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.AllowsSchool(detail.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}

	student := detail.Student
	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		student.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		student.Gender = *req.Gender
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if req.Address != nil {
		student.Address = *req.Address
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	if req.Classroom != nil {
		if *req.Classroom == "" {
			student.ClassroomID = nil
		} else {
			if err := s.checkCapacity(ctx, *req.Classroom, id); err != nil {
				return nil, err
			}
			student.ClassroomID = req.Classroom
		}
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, s.mapWriteErr(err, "failed to update student")
	}
	return s.Get(ctx, id, principal)
}

// Transfer reassigns a student's school and/or classroom, appending one
// immutable history entry. Scope is checked against the ORIGIN school.
// Omitting the destination school keeps the current one; omitting the
// destination classroom clears the assignment.
func (s *StudentService) Transfer(ctx context.Context, id string, req TransferStudentRequest, principal *models.Principal) (*models.StudentDetail, error) {
	if (req.ToSchool == nil || *req.ToSchool == "") && (req.ToClassroom == nil || *req.ToClassroom == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "toSchool or toClassroom is required")
	}

	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.AllowsSchool(detail.SchoolID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}

	toSchool := detail.SchoolID
	if req.ToSchool != nil && *req.ToSchool != "" {
		if _, err := s.schools.FindByID(ctx, *req.ToSchool); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
		}
		toSchool = *req.ToSchool
	}

	var toClassroom *string
	if req.ToClassroom != nil && *req.ToClassroom != "" {
		if err := s.checkCapacity(ctx, *req.ToClassroom, id); err != nil {
			return nil, err
		}
		toClassroom = req.ToClassroom
	}

	record := &models.TransferRecord{
		FromSchoolID:    detail.SchoolID,
		ToSchoolID:      toSchool,
		FromClassroomID: detail.ClassroomID,
		ToClassroomID:   toClassroom,
		Note:            req.Note,
	}

	student := detail.Student
	student.SchoolID = toSchool
	student.ClassroomID = toClassroom

	if err := s.repo.Transfer(ctx, &student, record); err != nil {
		return nil, s.mapWriteErr(err, "failed to transfer student")
	}

	s.logger.Info("student transferred",
		zap.String("student_id", id),
		zap.String("from_school", record.FromSchoolID),
		zap.String("to_school", record.ToSchoolID))

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withHistory(ctx, updated)
}

// Delete removes a student record.
func (s *StudentService) Delete(ctx context.Context, id string, principal *models.Principal) error {
	detail, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !principal.AllowsSchool(detail.SchoolID) {
		return appErrors.Clone(appErrors.ErrForbidden, "access denied: not your school")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// Export builds a CSV-ready dataset of the students visible to the
// principal under the given filter.
func (s *StudentService) Export(ctx context.Context, filter models.StudentFilter, principal *models.Principal) (*export.Dataset, error) {
	filter.Page = 1
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	students, _, err := s.List(ctx, filter, principal)
	if err != nil {
		return nil, err
	}
	dataset := &export.Dataset{
		Title:   "students",
		Headers: []string{"First name", "Last name", "Email", "School", "Classroom", "Enrolled", "Active"},
	}
	for _, st := range students {
		classroom := ""
		if st.ClassroomName != nil {
			classroom = *st.ClassroomName
		}
		dataset.Rows = append(dataset.Rows, []string{
			st.FirstName,
			st.LastName,
			st.Email,
			st.SchoolName,
			classroom,
			st.EnrolledAt.Format("2006-01-02"),
			fmt.Sprintf("%t", st.Active),
		})
	}
	return dataset, nil
}

// checkCapacity is the shared capacity invariant. It resolves the
// classroom, counts its active occupants excluding the given student,
// and fails when the room is already at capacity. The repository's
// transactional guard re-validates the same rule at write time.
func (s *StudentService) checkCapacity(ctx context.Context, classroomID string, excludeStudentID string) error {
	classroom, err := s.classrooms.FindByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	count, err := s.repo.CountInClassroom(ctx, classroomID, excludeStudentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classroom students")
	}
	if count >= classroom.Capacity {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("classroom is full (capacity: %d)", classroom.Capacity))
	}
	return nil
}

func (s *StudentService) load(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) withHistory(ctx context.Context, student *models.StudentDetail) (*models.StudentDetail, error) {
	history, err := s.repo.ListTransfers(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfer history")
	}
	student.TransferHistory = history
	return student, nil
}

func (s *StudentService) mapWriteErr(err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrClassroomFull):
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "classroom is full")
	case errors.Is(err, repository.ErrClassroomMissing):
		return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
	}
}
