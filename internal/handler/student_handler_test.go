package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/middleware"
	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/service"
	"github.com/andriyansah/school-api/pkg/export"
	"github.com/andriyansah/school-api/pkg/response"
)

type fakeUserRepo struct {
	users   map[string]models.UserDetail
	byEmail map[string]string
}

func (m *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.UserDetail, error) {
	if id, ok := m.byEmail[email]; ok {
		u := m.users[id]
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.UserDetail, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeUserRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *fakeUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error) {
	var list []models.UserDetail
	for _, u := range m.users {
		list = append(list, u)
	}
	return list, len(list), nil
}

func (m *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	if m.users == nil {
		m.users = make(map[string]models.UserDetail)
		m.byEmail = make(map[string]string)
	}
	m.users[user.ID] = models.UserDetail{User: *user}
	m.byEmail[user.Email] = user.ID
	return nil
}

type fakeStudentRepo struct {
	students  map[string]models.StudentDetail
	counts    map[string]int
	transfers map[string][]models.TransferRecord
}

func (m *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var list []models.StudentDetail
	for _, s := range m.students {
		if filter.SchoolID != "" && s.SchoolID != filter.SchoolID {
			continue
		}
		list = append(list, s)
	}
	return list, len(list), nil
}

func (m *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *fakeStudentRepo) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.Email == email && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *fakeStudentRepo) CountInClassroom(ctx context.Context, classroomID string, excludeID string) (int, error) {
	if count, ok := m.counts[classroomID]; ok {
		return count, nil
	}
	count := 0
	for _, s := range m.students {
		if s.ClassroomID != nil && *s.ClassroomID == classroomID && s.Active && s.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (m *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "stu-" + student.Email
	}
	if m.students == nil {
		m.students = make(map[string]models.StudentDetail)
	}
	m.students[student.ID] = models.StudentDetail{Student: *student}
	return nil
}

func (m *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = models.StudentDetail{Student: *student}
	return nil
}

func (m *fakeStudentRepo) Transfer(ctx context.Context, student *models.Student, record *models.TransferRecord) error {
	if m.transfers == nil {
		m.transfers = make(map[string][]models.TransferRecord)
	}
	record.StudentID = student.ID
	record.TransferredAt = time.Now()
	m.transfers[student.ID] = append(m.transfers[student.ID], *record)
	m.students[student.ID] = models.StudentDetail{Student: *student}
	return nil
}

func (m *fakeStudentRepo) ListTransfers(ctx context.Context, studentID string) ([]models.TransferRecord, error) {
	return m.transfers[studentID], nil
}

func (m *fakeStudentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.students, id)
	return nil
}

type fakeClassroomRepo struct {
	classrooms map[string]models.ClassroomDetail
}

func (m *fakeClassroomRepo) FindByID(ctx context.Context, id string) (*models.ClassroomDetail, error) {
	if c, ok := m.classrooms[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSchoolRepo struct {
	schools map[string]models.School
}

func (m *fakeSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	if s, ok := m.schools[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type studentAPIFixture struct {
	router      *gin.Engine
	auth        *service.AuthService
	studentRepo *fakeStudentRepo
}

func newStudentAPIFixture(t *testing.T) *studentAPIFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	userRepo := &fakeUserRepo{}
	studentRepo := &fakeStudentRepo{
		students: map[string]models.StudentDetail{},
		counts:   map[string]int{},
	}
	classroomRepo := &fakeClassroomRepo{classrooms: map[string]models.ClassroomDetail{
		"room-1": {Classroom: models.Classroom{ID: "room-1", SchoolID: "school-1", Name: "Room A", Capacity: 2}},
	}}
	schoolRepo := &fakeSchoolRepo{schools: map[string]models.School{
		"school-1": {ID: "school-1", Name: "North High"},
		"school-2": {ID: "school-2", Name: "South High"},
	}}

	authSvc := service.NewAuthService(userRepo, validator.New(), zap.NewNop(), service.AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "school-api-test",
	})
	studentSvc := service.NewStudentService(studentRepo, classroomRepo, schoolRepo, nil, validator.New(), zap.NewNop())
	h := NewStudentHandler(studentSvc, service.NewMetricsService(), export.NewCSVExporter())

	r := gin.New()
	students := r.Group("/api/students")
	students.Use(middleware.JWT(authSvc))
	students.GET("", h.List)
	students.GET("/export", h.Export)
	students.GET("/:id", h.Get)
	students.POST("", h.Enroll)
	students.POST("/:id/transfer", h.Transfer)
	students.PUT("/:id", h.Update)
	students.DELETE("/:id", h.Delete)

	return &studentAPIFixture{router: r, auth: authSvc, studentRepo: studentRepo}
}

func (f *studentAPIFixture) token(t *testing.T, role, email string, school *string) string {
	t.Helper()
	resp, err := f.auth.Register(context.Background(), models.RegisterRequest{
		Username: "u" + email[:3] + role,
		Email:    email,
		Password: "Secret1!",
		Role:     role,
		School:   school,
	})
	require.NoError(t, err)
	return resp.Token
}

func (f *studentAPIFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestStudentHandlerRequiresToken(t *testing.T) {
	f := newStudentAPIFixture(t)

	w := f.do(http.MethodGet, "/api/students", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.False(t, envelope.Success)
}

func TestStudentHandlerEnroll(t *testing.T) {
	f := newStudentAPIFixture(t)
	token := f.token(t, "superadmin", "admin@example.com", nil)

	w := f.do(http.MethodPost, "/api/students", token, gin.H{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"school":     "school-1",
		"classroom":  "room-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.True(t, envelope.Success)
	assert.Equal(t, "Student enrolled successfully", envelope.Message)
}

func TestStudentHandlerEnrollFullClassroom(t *testing.T) {
	f := newStudentAPIFixture(t)
	token := f.token(t, "superadmin", "admin@example.com", nil)
	f.studentRepo.counts["room-1"] = 2

	w := f.do(http.MethodPost, "/api/students", token, gin.H{
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"email":      "ada@example.com",
		"school":     "school-1",
		"classroom":  "room-1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.False(t, envelope.Success)
	assert.Equal(t, "classroom is full (capacity: 2)", envelope.Message)
}

func TestStudentHandlerTransfer(t *testing.T) {
	f := newStudentAPIFixture(t)
	token := f.token(t, "superadmin", "admin@example.com", nil)
	f.studentRepo.students["stu-1"] = models.StudentDetail{Student: models.Student{
		ID: "stu-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		SchoolID: "school-1", Active: true,
	}}

	w := f.do(http.MethodPost, "/api/students/stu-1/transfer", token, gin.H{
		"toSchool": "school-2",
		"note":     "family moved",
	})
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "Student transferred successfully", envelope.Message)
	require.Len(t, f.studentRepo.transfers["stu-1"], 1)
}

func TestStudentHandlerCrossSchoolForbidden(t *testing.T) {
	f := newStudentAPIFixture(t)
	school := "school-1"
	token := f.token(t, "school_admin", "jdoe@example.com", &school)
	f.studentRepo.students["stu-1"] = models.StudentDetail{Student: models.Student{
		ID: "stu-1", SchoolID: "school-2", Active: true,
	}}

	w := f.do(http.MethodGet, "/api/students/stu-1", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "access denied: not your school", envelope.Message)
}

func TestStudentHandlerExportCSV(t *testing.T) {
	f := newStudentAPIFixture(t)
	token := f.token(t, "superadmin", "admin@example.com", nil)
	f.studentRepo.students["stu-1"] = models.StudentDetail{
		Student:    models.Student{ID: "stu-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", SchoolID: "school-1", Active: true},
		SchoolName: "North High",
	}

	w := f.do(http.MethodGet, "/api/students/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Body.String(), "ada@example.com")
}
