package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edutenant-api/internal/models"
	appErrors "github.com/noah-isme/edutenant-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, schoolID string, filter models.UserFilter) ([]models.User, int, error)
	FindInSchool(ctx context.Context, schoolID, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, schoolID, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating school accounts.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=150"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN BURSAR TEACHER STAFF"`
	Active   *bool           `json:"active"`
	Password string          `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating school accounts.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required,max=150"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN BURSAR TEACHER STAFF"`
	Active   *bool           `json:"active"`
}

// UserService handles school account management.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users of the scoped school.
func (s *UserService) List(ctx context.Context, scope models.TenantScope, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireScope(scope); err != nil {
		return nil, nil, err
	}
	users, total, err := s.repo.List(ctx, scope.SchoolID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return users, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a user of the scoped school.
func (s *UserService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.User, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	user, err := s.repo.FindInSchool(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "user")
	}
	return user, nil
}

// Create adds an account bound to the scoped tenant and school.
func (s *UserService) Create(ctx context.Context, scope models.TenantScope, actor Actor, req CreateUserRequest) (*models.User, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid user payload")
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}

	tenantID, schoolID := scope.TenantID, scope.SchoolID
	user := &models.User{
		TenantID:     &tenantID,
		SchoolID:     &schoolID,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       req.Active == nil || *req.Active,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, internalError(err, "failed to create user")
	}

	recordAudit(ctx, s.repo, s.logger, actor, scope.SchoolID, models.AuditActionUserCreate, "users", user.ID, nil,
		map[string]interface{}{"email": user.Email, "role": user.Role})
	return user, nil
}

// Update modifies the account attributes; deactivation revokes open sessions.
func (s *UserService) Update(ctx context.Context, scope models.TenantScope, actor Actor, id string, req UpdateUserRequest) (*models.User, error) {
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid user payload")
	}
	user, err := s.repo.FindInSchool(ctx, scope.SchoolID, id)
	if err != nil {
		return nil, loadError(err, "user")
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}
	if id == actor.UserID && req.Active != nil && !*req.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot deactivate your own account")
	}

	before := map[string]interface{}{"email": user.Email, "role": user.Role, "active": user.Active}
	wasActive := user.Active

	user.Email = req.Email
	user.FullName = req.FullName
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, loadError(err, "user")
	}
	if wasActive && !user.Active {
		s.revokeSessions(ctx, user.ID)
	}

	recordAudit(ctx, s.repo, s.logger, actor, scope.SchoolID, models.AuditActionUserUpdate, "users", user.ID, before,
		map[string]interface{}{"email": user.Email, "role": user.Role, "active": user.Active})
	return user, nil
}

// Delete deactivates the account and revokes its refresh tokens.
func (s *UserService) Delete(ctx context.Context, scope models.TenantScope, actor Actor, id string) error {
	if err := requireScope(scope); err != nil {
		return err
	}
	if id == actor.UserID {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot delete your own account")
	}
	user, err := s.repo.FindInSchool(ctx, scope.SchoolID, id)
	if err != nil {
		return loadError(err, "user")
	}
	if err := s.repo.Deactivate(ctx, scope.SchoolID, id); err != nil {
		return loadError(err, "user")
	}
	s.revokeSessions(ctx, id)

	recordAudit(ctx, s.repo, s.logger, actor, scope.SchoolID, models.AuditActionUserDelete, "users", id,
		map[string]interface{}{"active": user.Active}, map[string]interface{}{"active": false})
	return nil
}

func (s *UserService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return internalError(err, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return nil
}

func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke user sessions", zap.String("user_id", userID), zap.Error(err))
	}
}
