package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	pkgauth "github.com/prendaria/backoffice/pkg/auth"
	pkghttp "github.com/prendaria/backoffice/pkg/http"
)

// UserServiceInterface defines the interface for user management logic
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, user *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	ToggleActive(ctx context.Context, id string) (bool, error)
	AdminResetPassword(ctx context.Context, id, newPassword string) error
}

// UserHandler handles user management HTTP requests
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Role     string `json:"rol" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Name  string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Role  string `json:"rol,omitempty"`
}

// ResetPasswordRequest represents the request body for an admin password reset
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

func userToSummary(user *models.User) map[string]any {
	return map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"name":     user.Name,
		"rol":      string(user.Role),
		"activo":   user.Active,
	}
}

// List returns users with pagination
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	summaries := make([]map[string]any, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, userToSummary(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": summaries, "limit": limit, "offset": offset})
}

// Get returns a single user
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Usuario no encontrado.")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, userToSummary(user))
}

// Create creates a user with the role's default permission set
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user := &models.User{
		Username: strings.ToLower(strings.TrimSpace(req.Username)),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Name:     strings.TrimSpace(req.Name),
		Role:     permissions.Role(req.Role),
	}

	created, err := h.service.CreateUser(r.Context(), user, req.Password)
	if err != nil {
		var valErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &valErr):
			pkghttp.WriteUnprocessable(w, "La contraseña no cumple la política.", strings.Join(valErr.Violations, "; "))
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Rol inválido.")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "El usuario o correo ya existe.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, userToSummary(created))
}

// Update applies profile changes to a user
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	updates := &models.User{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Role:  permissions.Role(req.Role),
	}

	updated, err := h.service.UpdateUser(r.Context(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Usuario no encontrado.")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Rol inválido.")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "El correo ya está en uso.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, userToSummary(updated))
}

// Delete removes a user
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Usuario no encontrado.")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Usuario eliminado."})
}

// ToggleActive flips the account's active flag
func (h *UserHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	active, err := h.service.ToggleActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Usuario no encontrado.")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "activo": active})
}

// ResetPassword sets a new password on behalf of an administrator. The user
// must change it at next login.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.AdminResetPassword(r.Context(), id, req.NewPassword); err != nil {
		var valErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &valErr):
			pkghttp.WriteUnprocessable(w, "La contraseña no cumple la política.", strings.Join(valErr.Violations, "; "))
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Usuario no encontrado.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Contraseña restablecida. El usuario deberá cambiarla al iniciar sesión."})
}
