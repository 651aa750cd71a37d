package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andriyansah/school-api/internal/models"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]models.UserDetail
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error) {
	var list []models.UserDetail
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		list = append(list, u)
	}
	return list, len(list), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.UserDetail, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func TestUserServiceListSuperadminOnly(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.UserDetail{
		"user-1": {User: models.User{ID: "user-1", Role: models.RoleSuperAdmin, Active: true}},
		"user-2": {User: models.User{ID: "user-2", Role: models.RoleSchoolAdmin, Active: true}},
	}}
	svc := NewUserService(repo, zap.NewNop())

	_, _, err := svc.List(context.Background(), models.UserFilter{}, schoolAdmin("school-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	users, total, err := svc.List(context.Background(), models.UserFilter{}, superadmin())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 2)
}

func TestUserServiceListFiltersByRole(t *testing.T) {
	repo := &mockUserRepo{users: map[string]models.UserDetail{
		"user-1": {User: models.User{ID: "user-1", Role: models.RoleSuperAdmin, Active: true}},
		"user-2": {User: models.User{ID: "user-2", Role: models.RoleSchoolAdmin, Active: true}},
	}}
	svc := NewUserService(repo, zap.NewNop())

	role := models.RoleSchoolAdmin
	users, total, err := svc.List(context.Background(), models.UserFilter{Role: &role}, superadmin())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "user-2", users[0].ID)
}

func TestUserServiceGetSelf(t *testing.T) {
	schoolID := "school-1"
	repo := &mockUserRepo{users: map[string]models.UserDetail{
		"sa-school-1": {User: models.User{ID: "sa-school-1", Role: models.RoleSchoolAdmin, SchoolID: &schoolID, Active: true}},
		"user-2":      {User: models.User{ID: "user-2", Role: models.RoleSchoolAdmin, Active: true}},
	}}
	svc := NewUserService(repo, zap.NewNop())

	// A school admin can read their own record but nobody else's.
	self, err := svc.Get(context.Background(), "sa-school-1", schoolAdmin("school-1"))
	require.NoError(t, err)
	assert.Equal(t, "sa-school-1", self.ID)

	_, err = svc.Get(context.Background(), "user-2", schoolAdmin("school-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestUserServiceGetMissing(t *testing.T) {
	svc := NewUserService(&mockUserRepo{}, zap.NewNop())

	_, err := svc.Get(context.Background(), "ghost", superadmin())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
