package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

func newTestUserService(repo *MockUserRepository, store *MockGrantStore, guard *MockSecurityGuard) *UserService {
	logger := slog.Default()
	auditLogger := pkglogger.NewAuditLogger(logger)
	authz := NewAuthzService(permissions.NewCatalog(), store, logger, auditLogger)
	return NewUserService(repo, authz, guard, logger, auditLogger)
}

func TestUserService_CreateUser_AssignsRoleDefaults(t *testing.T) {
	var replaced []permissions.Grant
	mockRepo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "user123"
			user.CreatedAt = time.Now()
			user.UpdatedAt = time.Now()
			return user, nil
		},
	}
	store := &MockGrantStore{
		ReplaceGrantsFunc: func(ctx context.Context, userID string, grants []permissions.Grant) error {
			assert.Equal(t, "user123", userID)
			replaced = grants
			return nil
		},
	}
	svc := newTestUserService(mockRepo, store, &MockSecurityGuard{})

	user := &models.User{Username: "tasador1", Email: "tasador1@prendaria.test", Name: "Eva", Role: permissions.RoleAppraiser}
	created, err := svc.CreateUser(context.Background(), user, "Str0ng!Pass")

	require.NoError(t, err)
	assert.Equal(t, "user123", created.ID)
	assert.True(t, created.Active)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotNil(t, created.PasswordChangedAt)
	assert.Contains(t, replaced, permissions.Grant{Module: "simulador", Action: "usar"})
	assert.NotContains(t, replaced, permissions.Grant{Module: "caja", Action: "abrir"})
}

func TestUserService_CreateUser_InvalidRole(t *testing.T) {
	svc := newTestUserService(&MockUserRepository{}, &MockGrantStore{}, &MockSecurityGuard{})

	user := &models.User{Username: "x", Role: permissions.Role("gerente")}
	created, err := svc.CreateUser(context.Background(), user, "Str0ng!Pass")

	assert.Nil(t, created)
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestUserService_CreateUser_WeakPassword(t *testing.T) {
	svc := newTestUserService(&MockUserRepository{}, &MockGrantStore{}, &MockSecurityGuard{})

	user := &models.User{Username: "x", Role: permissions.RoleCashier}
	created, err := svc.CreateUser(context.Background(), user, "password")

	assert.Nil(t, created)
	var valErr *pkgauth.PasswordValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestUserService_CreateUser_DuplicateUsername(t *testing.T) {
	mockRepo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	svc := newTestUserService(mockRepo, &MockGrantStore{}, &MockSecurityGuard{})

	user := &models.User{Username: "cajero1", Role: permissions.RoleCashier}
	created, err := svc.CreateUser(context.Background(), user, "Str0ng!Pass")

	assert.Nil(t, created)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUserService_UpdateUser_RoleChangeResetsPermissions(t *testing.T) {
	existing := NewTestUser("user123", "cajero1", "cajero")

	var replaced []permissions.Grant
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) { return existing, nil },
		UpdateFunc: func(ctx context.Context, id string, user *models.User) (*models.User, error) {
			return user, nil
		},
	}
	store := &MockGrantStore{
		ReplaceGrantsFunc: func(ctx context.Context, userID string, grants []permissions.Grant) error {
			replaced = grants
			return nil
		},
	}
	svc := newTestUserService(mockRepo, store, &MockSecurityGuard{})

	updated, err := svc.UpdateUser(context.Background(), "user123", &models.User{Role: permissions.RoleSupervisor})

	require.NoError(t, err)
	assert.Equal(t, permissions.RoleSupervisor, updated.Role)
	assert.Contains(t, replaced, permissions.Grant{Module: "reportes", Action: "generar"})
	assert.NotContains(t, replaced, permissions.Grant{Module: "caja", Action: "abrir"})
}

func TestUserService_UpdateUser_SameRoleKeepsPermissions(t *testing.T) {
	existing := NewTestUser("user123", "cajero1", "cajero")

	replaceCalled := false
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) { return existing, nil },
		UpdateFunc: func(ctx context.Context, id string, user *models.User) (*models.User, error) {
			return user, nil
		},
	}
	store := &MockGrantStore{
		ReplaceGrantsFunc: func(ctx context.Context, userID string, grants []permissions.Grant) error {
			replaceCalled = true
			return nil
		},
	}
	svc := newTestUserService(mockRepo, store, &MockSecurityGuard{})

	updated, err := svc.UpdateUser(context.Background(), "user123", &models.User{Name: "Nuevo Nombre", Role: permissions.RoleCashier})

	require.NoError(t, err)
	assert.Equal(t, "Nuevo Nombre", updated.Name)
	assert.False(t, replaceCalled)
}

func TestUserService_UpdateUser_NotFound(t *testing.T) {
	svc := newTestUserService(&MockUserRepository{}, &MockGrantStore{}, &MockSecurityGuard{})

	updated, err := svc.UpdateUser(context.Background(), "missing", &models.User{Name: "X"})

	assert.Nil(t, updated)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserService_ToggleActive_DeactivationRevokesTokens(t *testing.T) {
	user := NewTestUser("user123", "cajero1", "cajero")

	var setTo *bool
	var revokeReason string
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) { return user, nil },
		SetActiveFunc: func(ctx context.Context, id string, active bool) error {
			setTo = &active
			return nil
		},
	}
	mockGuard := &MockSecurityGuard{
		RevokeAllTokensFunc: func(ctx context.Context, u *models.User, reason string) error {
			revokeReason = reason
			return nil
		},
	}
	svc := newTestUserService(mockRepo, &MockGrantStore{}, mockGuard)

	newState, err := svc.ToggleActive(context.Background(), "user123")

	require.NoError(t, err)
	assert.False(t, newState)
	require.NotNil(t, setTo)
	assert.False(t, *setTo)
	assert.Equal(t, "account_deactivated", revokeReason)
}

func TestUserService_ToggleActive_ReactivationKeepsTokensAlone(t *testing.T) {
	user := NewTestUser("user123", "cajero1", "cajero")
	user.Active = false

	revokeCalled := false
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) { return user, nil },
	}
	mockGuard := &MockSecurityGuard{
		RevokeAllTokensFunc: func(ctx context.Context, u *models.User, reason string) error {
			revokeCalled = true
			return nil
		},
	}
	svc := newTestUserService(mockRepo, &MockGrantStore{}, mockGuard)

	newState, err := svc.ToggleActive(context.Background(), "user123")

	require.NoError(t, err)
	assert.True(t, newState)
	assert.False(t, revokeCalled)
}

func TestUserService_AdminResetPassword(t *testing.T) {
	user := NewTestUser("user123", "cajero1", "cajero")

	var forceChange *bool
	var revokeReason string
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) { return user, nil },
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string, changedAt time.Time, force bool) error {
			forceChange = &force
			return nil
		},
	}
	mockGuard := &MockSecurityGuard{
		RevokeAllTokensFunc: func(ctx context.Context, u *models.User, reason string) error {
			revokeReason = reason
			return nil
		},
	}
	svc := newTestUserService(mockRepo, &MockGrantStore{}, mockGuard)

	err := svc.AdminResetPassword(context.Background(), "user123", "N3w!Password")

	require.NoError(t, err)
	require.NotNil(t, forceChange)
	assert.True(t, *forceChange)
	assert.Equal(t, "admin_password_reset", revokeReason)
}

func TestUserService_AdminResetPassword_WeakPassword(t *testing.T) {
	user := NewTestUser("user123", "cajero1", "cajero")

	updateCalled := false
	mockRepo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) { return user, nil },
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string, changedAt time.Time, force bool) error {
			updateCalled = true
			return nil
		},
	}
	svc := newTestUserService(mockRepo, &MockGrantStore{}, &MockSecurityGuard{})

	err := svc.AdminResetPassword(context.Background(), "user123", "qwerty")

	var valErr *pkgauth.PasswordValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.False(t, updateCalled)
}

func TestUserService_DeleteUser_NotFound(t *testing.T) {
	svc := newTestUserService(&MockUserRepository{}, &MockGrantStore{}, &MockSecurityGuard{})

	err := svc.DeleteUser(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
}
