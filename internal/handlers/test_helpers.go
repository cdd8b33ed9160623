package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prendaria/backoffice/internal/auth"
	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	"github.com/prendaria/backoffice/internal/services"
	pkghttp "github.com/prendaria/backoffice/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID, username string) *http.Request {
	claims := &models.TokenClaims{
		UserID:   userID,
		Username: username,
		Type:     "access",
	}
	ctx := context.WithValue(req.Context(), auth.UserContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error)
	MeFunc             func(ctx context.Context, userID string) (*services.UserResponse, error)
	LogoutFunc         func(ctx context.Context, accessToken string) error
	LogoutAllFunc      func(ctx context.Context, userID string) error
	RefreshTokenFunc   func(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword, ip string) (*services.AuthResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, login, password, ip)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Me(ctx context.Context, userID string) (*services.UserResponse, error) {
	if m.MeFunc != nil {
		return m.MeFunc(ctx, userID)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, accessToken)
	}
	return nil
}

func (m *MockAuthService) LogoutAll(ctx context.Context, userID string) error {
	if m.LogoutAllFunc != nil {
		return m.LogoutAllFunc(ctx, userID)
	}
	return nil
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ip string) (*services.AuthResponse, error) {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword, ip)
	}
	return nil, models.ErrUnauthorized
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserFunc            func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc          func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUserFunc         func(ctx context.Context, user *models.User, password string) (*models.User, error)
	UpdateUserFunc         func(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteUserFunc         func(ctx context.Context, id string) error
	ToggleActiveFunc       func(ctx context.Context, id string) (bool, error)
	AdminResetPasswordFunc func(ctx context.Context, id, newPassword string) error
}

func (m *MockUserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserService) CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, user, password)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) UpdateUser(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) DeleteUser(ctx context.Context, id string) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, id)
	}
	return nil
}

func (m *MockUserService) ToggleActive(ctx context.Context, id string) (bool, error) {
	if m.ToggleActiveFunc != nil {
		return m.ToggleActiveFunc(ctx, id)
	}
	return false, models.ErrNotFound
}

func (m *MockUserService) AdminResetPassword(ctx context.Context, id, newPassword string) error {
	if m.AdminResetPasswordFunc != nil {
		return m.AdminResetPasswordFunc(ctx, id, newPassword)
	}
	return nil
}

// MockAuthzService implements AuthzServiceInterface for testing
type MockAuthzService struct {
	CatalogValue                 *permissions.Catalog
	FormattedPermissionsFunc     func(ctx context.Context, user *models.User) ([]permissions.ModuleGrants, error)
	SyncPermissionsFunc          func(ctx context.Context, user *models.User, requested []permissions.ModuleGrants) error
	AssignDefaultPermissionsFunc func(ctx context.Context, user *models.User) error
}

func (m *MockAuthzService) Catalog() *permissions.Catalog {
	if m.CatalogValue != nil {
		return m.CatalogValue
	}
	return permissions.NewCatalog()
}

func (m *MockAuthzService) FormattedPermissions(ctx context.Context, user *models.User) ([]permissions.ModuleGrants, error) {
	if m.FormattedPermissionsFunc != nil {
		return m.FormattedPermissionsFunc(ctx, user)
	}
	return []permissions.ModuleGrants{}, nil
}

func (m *MockAuthzService) SyncPermissions(ctx context.Context, user *models.User, requested []permissions.ModuleGrants) error {
	if m.SyncPermissionsFunc != nil {
		return m.SyncPermissionsFunc(ctx, user, requested)
	}
	return nil
}

func (m *MockAuthzService) AssignDefaultPermissions(ctx context.Context, user *models.User) error {
	if m.AssignDefaultPermissionsFunc != nil {
		return m.AssignDefaultPermissionsFunc(ctx, user)
	}
	return nil
}
