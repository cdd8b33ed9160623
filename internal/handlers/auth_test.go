package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prendaria/backoffice/internal/handlers"
	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/services"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
)

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
			assert.Equal(t, "cajero1", login)
			return &services.AuthResponse{
				AccessToken:  "access_token_123",
				RefreshToken: "refresh_token_123",
				ExpiresIn:    3600,
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login:    "Cajero1",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "access_token_123", resp.AccessToken)
	assert.Equal(t, "refresh_token_123", resp.RefreshToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
			return nil, &models.InvalidCredentialsError{AttemptsRemaining: -1}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login:    "cajero1",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_InvalidCredentialsWithAttemptsWarning(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
			return nil, &models.InvalidCredentialsError{AttemptsRemaining: 2}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login:    "cajero1",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
	assert.Contains(t, w.Body.String(), "2 intentos")
}

func TestLogin_AccountLocked(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
			return nil, &models.AccountLockedError{RemainingMinutes: 12}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login:    "cajero1",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 423, "account_locked")
	assert.Contains(t, w.Body.String(), "12 minutos")
}

func TestLogin_IPBlocked(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
			return nil, models.ErrIPBlocked
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login:    "cajero1",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
}

func TestLogin_InactiveAccount(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, login, password, ip string) (*services.AuthResponse, error) {
			return nil, models.ErrAccountInactive
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login:    "cajero1",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
}

func TestLogin_MissingFields(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/login", handlers.LoginRequest{
		Login: "cajero1",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestMe_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		MeFunc: func(ctx context.Context, userID string) (*services.UserResponse, error) {
			assert.Equal(t, "user123", userID)
			return &services.UserResponse{ID: userID, Username: "cajero1", Role: "cajero"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "GET", "/v1/auth/me", nil)
	req = handlers.WithAuthContext(req, "user123", "cajero1")

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "cajero1", resp.Username)
}

func TestMe_Unauthenticated(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "GET", "/v1/auth/me", nil)

	w := httptest.NewRecorder()
	handler.Me(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_Success(t *testing.T) {
	var revokedToken string
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, accessToken string) error {
			revokedToken = accessToken
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer token_abc")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertJSONResponse(t, w, 200, nil)
	assert.Equal(t, "token_abc", revokedToken)
}

func TestLogout_MissingToken(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/logout", nil)

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRefreshToken_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshTokenFunc: func(ctx context.Context, refreshToken string) (*services.AuthResponse, error) {
			return &services.AuthResponse{AccessToken: "new_access", RefreshToken: "new_refresh"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/refresh-token", handlers.RefreshTokenRequest{
		RefreshToken: "old_refresh",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "new_access", resp.AccessToken)
}

func TestRefreshToken_Invalid(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/refresh-token", handlers.RefreshTokenRequest{
		RefreshToken: "bad_token",
	})

	w := httptest.NewRecorder()
	handler.RefreshToken(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestChangePassword_PolicyViolation(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword, ip string) (*services.AuthResponse, error) {
			return nil, &pkgauth.PasswordValidationError{
				Violations: []string{"must be at least 8 characters long"},
			}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/change-password", handlers.ChangePasswordRequest{
		CurrentPassword: "old",
		NewPassword:     "short",
	})
	req = handlers.WithAuthContext(req, "user123", "cajero1")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 422, "validation_failed")
	assert.Contains(t, w.Body.String(), "8 characters")
}

func TestChangePassword_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, userID, currentPassword, newPassword, ip string) (*services.AuthResponse, error) {
			assert.Equal(t, "user123", userID)
			return &services.AuthResponse{AccessToken: "fresh_access", RefreshToken: "fresh_refresh"}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/v1/auth/change-password", handlers.ChangePasswordRequest{
		CurrentPassword: "Old!Pass1",
		NewPassword:     "N3w!Password",
	})
	req = handlers.WithAuthContext(req, "user123", "cajero1")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	var resp services.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "fresh_access", resp.AccessToken)
}
