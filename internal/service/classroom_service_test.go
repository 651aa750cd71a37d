package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/models"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
)

type mockClassroomRepo struct {
	classrooms map[string]models.ClassroomDetail
	students   map[string][]models.Student
	nameTaken  bool
	lastFilter models.ClassroomFilter
	created    *models.Classroom
	updated    *models.Classroom
}

func (m *mockClassroomRepo) List(ctx context.Context, filter models.ClassroomFilter) ([]models.ClassroomDetail, int, error) {
	m.lastFilter = filter
	var list []models.ClassroomDetail
	for _, c := range m.classrooms {
		if filter.SchoolID != "" && c.SchoolID != filter.SchoolID {
			continue
		}
		list = append(list, c)
	}
	return list, len(list), nil
}

func (m *mockClassroomRepo) FindByID(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	if c, ok := m.classrooms[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassroomRepo) ExistsByName(ctx context.Context, name, schoolID, excludeID string) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockClassroomRepo) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = "new-room"
	}
	if m.classrooms == nil {
		m.classrooms = make(map[string]models.ClassroomDetail)
	}
	m.classrooms[classroom.ID] = models.ClassroomDetail{Classroom: *classroom}
	m.created = classroom
	return nil
}

func (m *mockClassroomRepo) Update(ctx context.Context, classroom *models.Classroom) error {
	m.classrooms[classroom.ID] = models.ClassroomDetail{Classroom: *classroom}
	m.updated = classroom
	return nil
}

func (m *mockClassroomRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.classrooms[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.classrooms, id)
	return nil
}

func (m *mockClassroomRepo) ListStudents(ctx context.Context, classroomID string) ([]models.Student, error) {
	return m.students[classroomID], nil
}

func newClassroomFixture() (*ClassroomService, *mockClassroomRepo) {
	repo := &mockClassroomRepo{classrooms: map[string]models.ClassroomDetail{}}
	schools := &mockSchoolReader{schools: map[string]models.School{
		"school-1": {ID: "school-1", Name: "North High"},
		"school-2": {ID: "school-2", Name: "South High"},
	}}
	return NewClassroomService(repo, schools, validator.New(), zap.NewNop()), repo
}

func TestClassroomServiceCreate(t *testing.T) {
	svc, repo := newClassroomFixture()

	detail, err := svc.Create(context.Background(), CreateClassroomRequest{
		Name:      "Room A",
		School:    "school-1",
		Capacity:  30,
		Resources: []models.Resource{{Name: "projector", Quantity: 1}},
	}, superadmin())
	require.NoError(t, err)
	assert.Equal(t, 30, detail.Capacity)
	assert.True(t, repo.created.Active)
}

func TestClassroomServiceCreateUnknownSchool(t *testing.T) {
	svc, _ := newClassroomFixture()

	_, err := svc.Create(context.Background(), CreateClassroomRequest{
		Name:     "Room A",
		School:   "ghost",
		Capacity: 30,
	}, superadmin())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "school not found", appErr.Message)
}

func TestClassroomServiceCreateScopedToOwnSchool(t *testing.T) {
	svc, _ := newClassroomFixture()

	_, err := svc.Create(context.Background(), CreateClassroomRequest{
		Name:     "Room A",
		School:   "school-2",
		Capacity: 30,
	}, schoolAdmin("school-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestClassroomServiceCreateDuplicateNameInSchool(t *testing.T) {
	svc, repo := newClassroomFixture()
	repo.nameTaken = true

	_, err := svc.Create(context.Background(), CreateClassroomRequest{
		Name:     "Room A",
		School:   "school-1",
		Capacity: 30,
	}, superadmin())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "a classroom with this name already exists in this school", appErr.Message)
}

func TestClassroomServiceCreateRejectsZeroCapacity(t *testing.T) {
	svc, _ := newClassroomFixture()

	_, err := svc.Create(context.Background(), CreateClassroomRequest{
		Name:     "Room A",
		School:   "school-1",
		Capacity: 0,
	}, superadmin())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestClassroomServiceListPinsSchoolAdmin(t *testing.T) {
	svc, repo := newClassroomFixture()
	repo.classrooms["room-1"] = models.ClassroomDetail{Classroom: models.Classroom{ID: "room-1", SchoolID: "school-1"}}
	repo.classrooms["room-2"] = models.ClassroomDetail{Classroom: models.Classroom{ID: "room-2", SchoolID: "school-2"}}

	list, total, err := svc.List(context.Background(), models.ClassroomFilter{SchoolID: "school-2"}, schoolAdmin("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "school-1", repo.lastFilter.SchoolID)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "room-1", list[0].ID)
}

func TestClassroomServiceUpdateScope(t *testing.T) {
	svc, repo := newClassroomFixture()
	repo.classrooms["room-2"] = models.ClassroomDetail{Classroom: models.Classroom{ID: "room-2", SchoolID: "school-2", Name: "Room B", Capacity: 20}}

	_, err := svc.Update(context.Background(), "room-2", UpdateClassroomRequest{}, schoolAdmin("school-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	capacity := 25
	detail, err := svc.Update(context.Background(), "room-2", UpdateClassroomRequest{Capacity: &capacity}, schoolAdmin("school-2"))
	require.NoError(t, err)
	assert.Equal(t, 25, detail.Capacity)
	assert.Equal(t, "Room B", detail.Name)
}

func TestClassroomServiceRoster(t *testing.T) {
	svc, repo := newClassroomFixture()
	repo.classrooms["room-1"] = models.ClassroomDetail{
		Classroom:  models.Classroom{ID: "room-1", SchoolID: "school-1", Name: "Room A", Capacity: 30},
		SchoolName: "North High",
	}
	repo.students = map[string][]models.Student{
		"room-1": {
			{ID: "stu-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", EnrolledAt: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	dataset, err := svc.Roster(context.Background(), "room-1", superadmin())
	require.NoError(t, err)
	assert.Equal(t, "North High - Room A roster", dataset.Title)
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, []string{"Ada", "Lovelace", "ada@example.com", "2025-09-01"}, dataset.Rows[0])
}
