package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
)

type stubRevocationChecker struct {
	revoked bool
	err     error
	gotJTI  string
}

func (s *stubRevocationChecker) IsTokenRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error) {
	s.gotJTI = jti
	return s.revoked, s.err
}

type stubUserFetcher struct {
	user *models.User
	err  error
}

func (s *stubUserFetcher) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type stubPermissionChecker struct {
	allowed bool
	err     error
}

func (s *stubPermissionChecker) HasPermission(ctx context.Context, user *models.User, module, action string) (bool, error) {
	return s.allowed, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidAccessToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	token, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)

	var gotClaims *models.TokenClaims
	handler := Middleware(tm, &stubRevocationChecker{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "user-1", gotClaims.UserID)
}

func TestMiddleware_MissingOrMalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	handler := Middleware(tm, nil)(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc123"},
		{"bare token", "sometoken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestMiddleware_RejectsRefreshToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	token, err := tm.GenerateRefreshToken("user-1", "cajero1")
	require.NoError(t, err)

	handler := Middleware(tm, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_RejectsRevokedToken(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	token, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)

	checker := &stubRevocationChecker{revoked: true}
	handler := Middleware(tm, checker)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, checker.gotJTI)
}

func TestMiddleware_FailsOpenOnRevocationCheckerError(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Hour, 24*time.Hour)
	token, err := tm.GenerateAccessToken("user-1", "cajero1")
	require.NoError(t, err)

	handler := Middleware(tm, &stubRevocationChecker{err: errors.New("db down")})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func requestWithClaims(claims *models.TokenClaims) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/usuarios", nil)
	if claims == nil {
		return req
	}
	ctx := context.WithValue(req.Context(), UserContextKey, claims)
	return req.WithContext(ctx)
}

func TestRequirePermission(t *testing.T) {
	activeUser := &models.User{ID: "user-1", Role: permissions.RoleCashier, Active: true}
	claims := &models.TokenClaims{UserID: "user-1", Username: "cajero1", Type: "access"}

	tests := []struct {
		name     string
		claims   *models.TokenClaims
		users    *stubUserFetcher
		checker  *stubPermissionChecker
		wantCode int
	}{
		{
			name:     "granted",
			claims:   claims,
			users:    &stubUserFetcher{user: activeUser},
			checker:  &stubPermissionChecker{allowed: true},
			wantCode: http.StatusOK,
		},
		{
			name:     "denied",
			claims:   claims,
			users:    &stubUserFetcher{user: activeUser},
			checker:  &stubPermissionChecker{allowed: false},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unauthenticated",
			claims:   nil,
			users:    &stubUserFetcher{user: activeUser},
			checker:  &stubPermissionChecker{allowed: true},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "user no longer exists",
			claims:   claims,
			users:    &stubUserFetcher{err: models.ErrNotFound},
			checker:  &stubPermissionChecker{allowed: true},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "inactive account",
			claims:   claims,
			users:    &stubUserFetcher{user: &models.User{ID: "user-1", Role: permissions.RoleCashier, Active: false}},
			checker:  &stubPermissionChecker{allowed: true},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "checker error",
			claims:   claims,
			users:    &stubUserFetcher{user: activeUser},
			checker:  &stubPermissionChecker{err: errors.New("db down")},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequirePermission(tt.users, tt.checker, "usuarios", "ver")(okHandler())

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestWithClaims(tt.claims))

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
