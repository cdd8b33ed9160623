package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/prendaria/backoffice/internal/models"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time, forceChange bool) error
}

// UserService handles user management business logic
type UserService struct {
	repo        UserRepository
	authz       *AuthzService
	guard       SecurityGuard
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(repo UserRepository, authz *AuthzService, guard SecurityGuard, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		authz:       authz,
		guard:       guard,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetUser retrieves a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// ListUsers retrieves users with pagination
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return users, nil
}

// CreateUser creates a new account and installs the role's default grant
// set so the account is usable immediately.
func (s *UserService) CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if !user.Role.Valid() {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.PasswordHash = hashedPassword

	now := time.Now()
	user.PasswordChangedAt = &now
	user.Active = true

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.authz.AssignDefaultPermissions(ctx, createdUser); err != nil {
		s.logger.Error("failed to assign default permissions", slog.String("user_id", createdUser.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user created",
		slog.String("user_id", createdUser.ID),
		slog.String("role", string(createdUser.Role)))
	s.auditLogger.LogAccountAction("user_created", createdUser.ID, "", map[string]string{
		"role": string(createdUser.Role),
	})

	return createdUser, nil
}

// UpdateUser applies profile updates. A role change replaces the user's
// grant set with the new role's defaults, so stale grants from the previous
// role never survive the transition.
func (s *UserService) UpdateUser(ctx context.Context, id string, user *models.User) (*models.User, error) {
	existingUser, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	roleChanged := false
	if user.Name != "" {
		existingUser.Name = user.Name
	}
	if user.Email != "" {
		existingUser.Email = user.Email
	}
	if user.Role != "" {
		if !user.Role.Valid() {
			return nil, models.ErrBadRequest
		}
		roleChanged = user.Role != existingUser.Role
		existingUser.Role = user.Role
	}

	updatedUser, err := s.repo.Update(ctx, id, existingUser)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if roleChanged {
		if err := s.authz.AssignDefaultPermissions(ctx, updatedUser); err != nil {
			s.logger.Error("failed to reset permissions after role change", slog.String("user_id", id), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.auditLogger.LogAccountAction("role_changed", id, "", map[string]string{
			"role": string(updatedUser.Role),
		})
	}

	s.logger.Info("user updated", slog.String("user_id", id))
	return updatedUser, nil
}

// DeleteUser deletes a user
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user deleted", slog.String("user_id", id))
	s.auditLogger.LogAccountAction("user_deleted", user.ID, "", nil)
	return nil
}

// ToggleActive flips the account's active flag and returns the new state.
// Deactivation also revokes every outstanding token so open sessions die
// with the account.
func (s *UserService) ToggleActive(ctx context.Context, id string) (bool, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	newState := !user.Active
	if err := s.repo.SetActive(ctx, id, newState); err != nil {
		s.logger.Error("failed to toggle active flag", slog.String("user_id", id), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	user.Active = newState

	if !newState {
		if err := s.guard.RevokeAllTokens(ctx, user, "account_deactivated"); err != nil {
			s.logger.Error("failed to revoke tokens on deactivation", slog.String("user_id", id), slog.Any("error", err))
			return false, models.ErrInternalServer
		}
	}

	s.logger.Info("user active flag toggled",
		slog.String("user_id", id),
		slog.Bool("active", newState))
	s.auditLogger.LogAccountAction("active_toggled", id, "", map[string]string{
		"active": strconv.FormatBool(newState),
	})

	return newState, nil
}

// AdminResetPassword sets a new password on behalf of an administrator. The
// account is flagged to change it at next login and every outstanding token
// is revoked.
func (s *UserService) AdminResetPassword(ctx context.Context, id, newPassword string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.repo.UpdatePassword(ctx, id, hash, time.Now(), true); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.guard.RevokeAllTokens(ctx, user, "admin_password_reset"); err != nil {
		s.logger.Error("failed to revoke tokens after password reset", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset by administrator", slog.String("user_id", id))
	s.auditLogger.LogAccountAction("admin_password_reset", id, "", nil)
	return nil
}
