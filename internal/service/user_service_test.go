package service

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edutenant-api/internal/models"
)

type userRepoStub struct {
	users     map[string]*models.User
	revoked   []string
	auditLogs []*models.AuditLog
	filter    models.UserFilter
}

func newUserRepoStub(users ...models.User) *userRepoStub {
	stub := &userRepoStub{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		stub.users[u.ID] = &u
	}
	return stub
}

func (m *userRepoStub) List(ctx context.Context, schoolID string, filter models.UserFilter) ([]models.User, int, error) {
	m.filter = filter
	var users []models.User
	for _, u := range m.users {
		if u.SchoolID != nil && *u.SchoolID == schoolID {
			users = append(users, *u)
		}
	}
	return users, len(users), nil
}

func (m *userRepoStub) FindInSchool(ctx context.Context, schoolID, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok || u.SchoolID == nil || *u.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

func (m *userRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "u-new"
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *userRepoStub) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *userRepoStub) Deactivate(ctx context.Context, schoolID, id string) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Active = false
	return nil
}

func (m *userRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func (m *userRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func schoolUser(id, schoolID, email string, role models.UserRole) models.User {
	tenant := "t1"
	return models.User{ID: id, TenantID: &tenant, SchoolID: &schoolID, Email: email, FullName: "User " + id, Role: role, Active: true}
}

func TestUserServiceListScopesSchool(t *testing.T) {
	repo := newUserRepoStub(
		schoolUser("u1", testScope.SchoolID, "a@example.com", models.RoleAdmin),
		schoolUser("u2", "other", "b@example.com", models.RoleTeacher),
	)
	svc := NewUserService(repo, nil, zap.NewNop())

	users, pagination, err := svc.List(context.Background(), testScope, models.UserFilter{Role: models.RoleAdmin, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, models.RoleAdmin, repo.filter.Role)

	_, err = svc.Get(context.Background(), testScope, "u2")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, _, err = svc.List(context.Background(), models.TenantScope{}, models.UserFilter{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestUserServiceCreate(t *testing.T) {
	repo := newUserRepoStub(schoolUser("u1", testScope.SchoolID, "taken@example.com", models.RoleAdmin))
	svc := NewUserService(repo, nil, zap.NewNop())
	actor := Actor{UserID: "u1", IP: "127.0.0.1"}

	user, err := svc.Create(context.Background(), testScope, actor, CreateUserRequest{
		Email: " Bursar@Example.com ", FullName: "Finance", Role: models.RoleBursar, Password: "secret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "bursar@example.com", user.Email)
	assert.True(t, user.Active)
	require.NotNil(t, user.SchoolID)
	assert.Equal(t, testScope.SchoolID, *user.SchoolID)
	assert.Equal(t, testScope.TenantID, *user.TenantID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-pass")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)

	_, err = svc.Create(context.Background(), testScope, actor, CreateUserRequest{
		Email: "TAKEN@example.com", FullName: "Dup", Role: models.RoleStaff, Password: "secret-pass",
	})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = svc.Create(context.Background(), testScope, actor, CreateUserRequest{
		Email: "root@example.com", FullName: "Root", Role: models.RoleSuperAdmin, Password: "secret-pass",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))

	_, err = svc.Create(context.Background(), testScope, actor, CreateUserRequest{
		Email: "blank@example.com", FullName: "   ", Role: models.RoleStaff, Password: "secret-pass",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	assert.Len(t, repo.users, 2)
}

func TestUserServiceUpdateDeactivationRevokesSessions(t *testing.T) {
	repo := newUserRepoStub(
		schoolUser("u1", testScope.SchoolID, "admin@example.com", models.RoleAdmin),
		schoolUser("u2", testScope.SchoolID, "teacher@example.com", models.RoleTeacher),
	)
	svc := NewUserService(repo, nil, zap.NewNop())
	actor := Actor{UserID: "u1"}
	inactive := false

	user, err := svc.Update(context.Background(), testScope, actor, "u2", UpdateUserRequest{
		Email: " Teacher@Example.com ", FullName: "Renamed", Role: models.RoleStaff, Active: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher@example.com", user.Email)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, []string{"u2"}, repo.revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.NotEmpty(t, repo.auditLogs[0].OldValues)

	_, err = svc.Update(context.Background(), testScope, actor, "u1", UpdateUserRequest{
		Email: "admin@example.com", FullName: "Self", Role: models.RoleAdmin, Active: &inactive,
	})
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(err))

	_, err = svc.Update(context.Background(), testScope, actor, "u2", UpdateUserRequest{
		Email: "admin@example.com", FullName: "Clash", Role: models.RoleStaff,
	})
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestUserServiceDelete(t *testing.T) {
	repo := newUserRepoStub(
		schoolUser("u1", testScope.SchoolID, "admin@example.com", models.RoleAdmin),
		schoolUser("u2", testScope.SchoolID, "teacher@example.com", models.RoleTeacher),
	)
	svc := NewUserService(repo, nil, zap.NewNop())
	actor := Actor{UserID: "u1"}

	require.NoError(t, svc.Delete(context.Background(), testScope, actor, "u2"))
	assert.False(t, repo.users["u2"].Active)
	assert.Equal(t, []string{"u2"}, repo.revoked)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.auditLogs[0].Action)

	err := svc.Delete(context.Background(), testScope, actor, "u1")
	assert.Equal(t, http.StatusPreconditionFailed, statusOf(err))

	err = svc.Delete(context.Background(), testScope, actor, "missing")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}
