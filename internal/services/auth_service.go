package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prendaria/backoffice/internal/auth"
	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	"github.com/prendaria/backoffice/internal/security"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

// TokenRevocationRepository defines the interface for token revocation operations
type TokenRevocationRepository interface {
	RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error)
}

// SecurityGuard is the lockout and token-revocation surface the auth flow
// depends on. *security.Guard satisfies it.
type SecurityGuard interface {
	IsIPBlocked(ctx context.Context, ip string) bool
	IsUserLocked(ctx context.Context, user *models.User) (bool, error)
	LockoutRemainingMinutes(user *models.User) int
	RecordFailedAttempt(ctx context.Context, user *models.User, ip string) (int, bool, error)
	RecordFailedAttemptForUnknownUser(ctx context.Context, usernameAttempted, ip string)
	ClearFailedAttempts(ctx context.Context, user *models.User, ip string) error
	NeedsPasswordChange(user *models.User) bool
	RevokeAllTokens(ctx context.Context, user *models.User, reason string) error
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	revokeRepo  TokenRevocationRepository
	guard       SecurityGuard
	authz       *AuthzService
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, revokeRepo TokenRevocationRepository, guard SecurityGuard, authz *AuthzService, tm *auth.TokenManager, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		repo:        repo,
		revokeRepo:  revokeRepo,
		guard:       guard,
		authz:       authz,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID          string                     `json:"id"`
	Username    string                     `json:"username"`
	Email       string                     `json:"email"`
	Name        string                     `json:"name"`
	Role        string                     `json:"rol"`
	Active      bool                       `json:"activo"`
	LastLoginAt *string                    `json:"last_login_at,omitempty"`
	Permissions []permissions.ModuleGrants `json:"permisos,omitempty"`
	CreatedAt   string                     `json:"created_at"`
	UpdatedAt   string                     `json:"updated_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken           string        `json:"access_token"`
	RefreshToken          string        `json:"refresh_token"`
	ExpiresIn             int64         `json:"expires_in"`
	RequirePasswordChange bool          `json:"require_password_change"`
	User                  *UserResponse `json:"user"`
}

func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		Active:    user.Active,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		t := user.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &t
	}
	return resp
}

// Login authenticates a user by username or email. Checks run in a fixed
// order so each failure reveals no more than the previous one: the source IP
// block first, then account existence, then the lockout state, then the
// password, and only then the active flag.
func (s *AuthService) Login(ctx context.Context, login, password, ip string) (*AuthResponse, error) {
	if login = strings.ToLower(strings.TrimSpace(login)); login == "" {
		s.logger.Warn("login attempt with empty identifier", slog.String("ip", ip))
		return nil, models.ErrUnauthorized
	}

	if s.guard.IsIPBlocked(ctx, ip) {
		s.logger.Warn("login blocked: ip over failure threshold", slog.String("ip", ip))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			IPAddress:     ip,
			FailureReason: "ip_blocked",
		})
		return nil, models.ErrIPBlocked
	}

	user, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Charge the IP even when no account matches; guard audits it.
			s.guard.RecordFailedAttemptForUnknownUser(ctx, login, ip)
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	locked, err := s.guard.IsUserLocked(ctx, user)
	if err != nil {
		s.logger.Error("failed to evaluate lockout state", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if locked {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ip,
			FailureReason: "account_locked",
		})
		return nil, &models.AccountLockedError{RemainingMinutes: s.guard.LockoutRemainingMinutes(user)}
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		attempts, nowLocked, recErr := s.guard.RecordFailedAttempt(ctx, user, ip)
		if recErr != nil {
			s.logger.Error("failed to record failed attempt", slog.String("user_id", user.ID), slog.Any("error", recErr))
			return nil, models.ErrInternalServer
		}
		if nowLocked {
			return nil, &models.AccountLockedError{RemainingMinutes: s.guard.LockoutRemainingMinutes(user)}
		}
		remaining := security.MaxFailedAttempts - attempts
		if remaining < 1 || remaining > 3 {
			// Only warn when the account is close to locking.
			remaining = -1
		}
		return nil, &models.InvalidCredentialsError{AttemptsRemaining: remaining}
	}

	if !user.Active {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        user.ID,
			IPAddress:     ip,
			FailureReason: "account_inactive",
		})
		return nil, models.ErrAccountInactive
	}

	if err := s.guard.ClearFailedAttempts(ctx, user, ip); err != nil {
		s.logger.Error("failed to clear attempt counters", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &AuthResponse{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		ExpiresIn:             int64(s.tm.AccessTokenExpiry().Seconds()),
		RequirePasswordChange: s.guard.NeedsPasswordChange(user),
		User:                  userModelToResponse(user),
	}

	perms, err := s.authz.FormattedPermissions(ctx, user)
	if err != nil {
		s.logger.Error("failed to load permissions for login response", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	resp.User.Permissions = perms

	s.logger.Info("user logged in", slog.String("user_id", user.ID), slog.String("ip", ip))
	return resp, nil
}

// Me returns the authenticated user's profile with their permission set.
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := userModelToResponse(user)
	perms, err := s.authz.FormattedPermissions(ctx, user)
	if err != nil {
		s.logger.Error("failed to load permissions", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	resp.Permissions = perms
	return resp, nil
}

// Logout revokes the current access token
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	expiresAt := claims.ExpiresAt.Time
	if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, expiresAt, "logout"); err != nil {
		s.logger.Error("failed to revoke token", slog.String("jti", claims.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// LogoutAll revokes every outstanding token for the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.guard.RevokeAllTokens(ctx, user, "logout_all"); err != nil {
		s.logger.Error("failed to revoke user tokens", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user logged out of all sessions", slog.String("user_id", userID))
	return nil
}

// RefreshToken rotates a refresh token into a new token pair. The presented
// token must be unrevoked, the account active and unlocked, and the token
// issued after the last password change. The old refresh token is revoked so
// each one is redeemable once.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}
	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	revoked, err := s.revokeRepo.IsTokenRevoked(ctx, claims.ID, claims.UserID, issuedAt)
	if err != nil {
		s.logger.Error("failed to check token revocation", slog.String("jti", claims.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if revoked {
		s.logger.Warn("refresh attempt with revoked token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !user.Active {
		s.logger.Info("token refresh blocked: account inactive", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}
	locked, err := s.guard.IsUserLocked(ctx, user)
	if err != nil {
		s.logger.Error("failed to evaluate lockout state", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if locked {
		s.logger.Info("token refresh blocked: account locked", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	if user.PasswordChangedAt != nil && claims.IssuedAt != nil && claims.IssuedAt.Time.Before(*user.PasswordChangedAt) {
		s.logger.Info("token refresh blocked: issued before password change", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	newRefreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if claims.ExpiresAt != nil {
		if err := s.revokeRepo.RevokeToken(ctx, claims.ID, claims.UserID, claims.Type, claims.ExpiresAt.Time, "rotated"); err != nil {
			s.logger.Error("failed to revoke rotated refresh token", slog.String("jti", claims.ID), slog.Any("error", err))
		}
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))
	return &AuthResponse{
		AccessToken:           accessToken,
		RefreshToken:          newRefreshToken,
		ExpiresIn:             int64(s.tm.AccessTokenExpiry().Seconds()),
		RequirePasswordChange: s.guard.NeedsPasswordChange(user),
		User:                  userModelToResponse(user),
	}, nil
}

// ChangePassword verifies the current password, enforces the strength
// policy on the new one, and rotates every session: all outstanding tokens
// are revoked and a fresh pair is returned to the caller.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ip string) (*AuthResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(user.ID, ip, false)
		return nil, models.ErrUnauthorized
	}

	if newPassword == currentPassword {
		return nil, &pkgauth.PasswordValidationError{
			Violations: []string{"new password must be different from the current password"},
		}
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, now, false); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.PasswordChangedAt = &now
	user.ForcePasswordChange = false

	if err := s.guard.RevokeAllTokens(ctx, user, "password_change"); err != nil {
		s.logger.Error("failed to revoke user tokens", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Sessions are dead now, so hand back a fresh pair minted after the
	// revocation timestamp.
	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange(user.ID, ip, true)
	s.logger.Info("password changed", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tm.AccessTokenExpiry().Seconds()),
		User:         userModelToResponse(user),
	}, nil
}
