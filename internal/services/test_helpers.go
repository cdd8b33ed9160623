package services

import (
	"context"
	"time"

	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByLoginFunc     func(ctx context.Context, login string) (*models.User, error)
	ListFunc           func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateFunc         func(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteFunc         func(ctx context.Context, id string) error
	SetActiveFunc      func(ctx context.Context, id string, active bool) error
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string, changedAt time.Time, forceChange bool) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetActive(ctx context.Context, id string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time, forceChange bool) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash, changedAt, forceChange)
	}
	return nil
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc    func(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error
	IsTokenRevokedFunc func(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error)
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID, tokenType string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, tokenType, expiresAt, reason)
	}
	return nil
}

func (m *MockTokenRevocationRepository) IsTokenRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error) {
	if m.IsTokenRevokedFunc != nil {
		return m.IsTokenRevokedFunc(ctx, jti, userID, issuedAt)
	}
	return false, nil
}

// MockSecurityGuard implements SecurityGuard for testing
type MockSecurityGuard struct {
	IsIPBlockedFunc                       func(ctx context.Context, ip string) bool
	IsUserLockedFunc                      func(ctx context.Context, user *models.User) (bool, error)
	LockoutRemainingMinutesFunc           func(user *models.User) int
	RecordFailedAttemptFunc               func(ctx context.Context, user *models.User, ip string) (int, bool, error)
	RecordFailedAttemptForUnknownUserFunc func(ctx context.Context, usernameAttempted, ip string)
	ClearFailedAttemptsFunc               func(ctx context.Context, user *models.User, ip string) error
	NeedsPasswordChangeFunc               func(user *models.User) bool
	RevokeAllTokensFunc                   func(ctx context.Context, user *models.User, reason string) error
}

func (m *MockSecurityGuard) IsIPBlocked(ctx context.Context, ip string) bool {
	if m.IsIPBlockedFunc != nil {
		return m.IsIPBlockedFunc(ctx, ip)
	}
	return false
}

func (m *MockSecurityGuard) IsUserLocked(ctx context.Context, user *models.User) (bool, error) {
	if m.IsUserLockedFunc != nil {
		return m.IsUserLockedFunc(ctx, user)
	}
	return false, nil
}

func (m *MockSecurityGuard) LockoutRemainingMinutes(user *models.User) int {
	if m.LockoutRemainingMinutesFunc != nil {
		return m.LockoutRemainingMinutesFunc(user)
	}
	return 0
}

func (m *MockSecurityGuard) RecordFailedAttempt(ctx context.Context, user *models.User, ip string) (int, bool, error) {
	if m.RecordFailedAttemptFunc != nil {
		return m.RecordFailedAttemptFunc(ctx, user, ip)
	}
	return 1, false, nil
}

func (m *MockSecurityGuard) RecordFailedAttemptForUnknownUser(ctx context.Context, usernameAttempted, ip string) {
	if m.RecordFailedAttemptForUnknownUserFunc != nil {
		m.RecordFailedAttemptForUnknownUserFunc(ctx, usernameAttempted, ip)
	}
}

func (m *MockSecurityGuard) ClearFailedAttempts(ctx context.Context, user *models.User, ip string) error {
	if m.ClearFailedAttemptsFunc != nil {
		return m.ClearFailedAttemptsFunc(ctx, user, ip)
	}
	return nil
}

func (m *MockSecurityGuard) NeedsPasswordChange(user *models.User) bool {
	if m.NeedsPasswordChangeFunc != nil {
		return m.NeedsPasswordChangeFunc(user)
	}
	return false
}

func (m *MockSecurityGuard) RevokeAllTokens(ctx context.Context, user *models.User, reason string) error {
	if m.RevokeAllTokensFunc != nil {
		return m.RevokeAllTokensFunc(ctx, user, reason)
	}
	return nil
}

// MockGrantStore implements GrantStore for testing
type MockGrantStore struct {
	GrantsForFunc      func(ctx context.Context, userID string) ([]permissions.Grant, error)
	HasGrantFunc       func(ctx context.Context, userID, module, action string) (bool, error)
	HasModuleGrantFunc func(ctx context.Context, userID, module string) (bool, error)
	ReplaceGrantsFunc  func(ctx context.Context, userID string, grants []permissions.Grant) error
}

func (m *MockGrantStore) GrantsFor(ctx context.Context, userID string) ([]permissions.Grant, error) {
	if m.GrantsForFunc != nil {
		return m.GrantsForFunc(ctx, userID)
	}
	return []permissions.Grant{}, nil
}

func (m *MockGrantStore) HasGrant(ctx context.Context, userID, module, action string) (bool, error) {
	if m.HasGrantFunc != nil {
		return m.HasGrantFunc(ctx, userID, module, action)
	}
	return false, nil
}

func (m *MockGrantStore) HasModuleGrant(ctx context.Context, userID, module string) (bool, error) {
	if m.HasModuleGrantFunc != nil {
		return m.HasModuleGrantFunc(ctx, userID, module)
	}
	return false, nil
}

func (m *MockGrantStore) ReplaceGrants(ctx context.Context, userID string, grants []permissions.Grant) error {
	if m.ReplaceGrantsFunc != nil {
		return m.ReplaceGrantsFunc(ctx, userID, grants)
	}
	return nil
}

// NewTestUser builds an active user with the given role for tests.
func NewTestUser(id, username, role string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id,
		Username:  username,
		Email:     username + "@prendaria.test",
		Name:      "Test User",
		Role:      permissions.Role(role),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
