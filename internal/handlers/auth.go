package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prendaria/backoffice/internal/auth"
	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/services"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
	pkghttp "github.com/prendaria/backoffice/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, login, password, ip string) (*services.AuthResponse, error)
	Me(ctx context.Context, userID string) (*services.UserResponse, error)
	Logout(ctx context.Context, accessToken string) error
	LogoutAll(ctx context.Context, userID string) error
	RefreshToken(ctx context.Context, refreshToken string) (*services.AuthResponse, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ip string) (*services.AuthResponse, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Login    string `json:"login" validate:"required,min=3"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login handles user login by username or email
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	req.Login = strings.ToLower(strings.TrimSpace(req.Login))
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	authResp, err := h.service.Login(r.Context(), req.Login, req.Password, ipAddress)
	if err != nil {
		writeLoginError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResp)
}

// writeLoginError maps every login failure to its HTTP shape. Lockout and
// credential errors carry extra context for the client.
func writeLoginError(w http.ResponseWriter, err error) {
	var lockedErr *models.AccountLockedError
	var credErr *models.InvalidCredentialsError

	switch {
	case errors.Is(err, models.ErrIPBlocked):
		pkghttp.WriteTooManyRequests(w, "Demasiados intentos fallidos desde esta dirección. Intente más tarde.")
	case errors.As(err, &lockedErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusLocked, "account_locked",
			fmt.Sprintf("Cuenta bloqueada. Intente nuevamente en %d minutos.", lockedErr.RemainingMinutes), "")
	case errors.As(err, &credErr):
		if credErr.AttemptsRemaining > 0 {
			pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, "unauthorized",
				"Credenciales incorrectas.",
				fmt.Sprintf("Le quedan %d intentos antes del bloqueo.", credErr.AttemptsRemaining))
			return
		}
		pkghttp.WriteUnauthorized(w, "Credenciales incorrectas.")
	case errors.Is(err, models.ErrAccountInactive):
		pkghttp.WriteForbidden(w, "Cuenta desactivada. Contacte al administrador.")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Credenciales incorrectas.")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// Me returns the authenticated user's profile and permissions
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	resp, err := h.service.Me(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout revokes the presented access token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Sesión cerrada."})
}

// LogoutAll revokes every session of the authenticated user
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.LogoutAll(r.Context(), claims.UserID); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Todas las sesiones cerradas."})
}

// RefreshToken exchanges a refresh token for a new token pair
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	authResp, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Sesión inválida o expirada.")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, authResp)
}

// ChangePassword changes the authenticated user's password and returns a
// fresh token pair, since the change revokes every open session
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	authResp, err := h.service.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, ipAddress)
	if err != nil {
		var valErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &valErr):
			pkghttp.WriteUnprocessable(w, "La nueva contraseña no cumple la política.", strings.Join(valErr.Violations, "; "))
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "La contraseña actual es incorrecta.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, authResp)
}

// bearerToken extracts the raw token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
