package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	pkghttp "github.com/prendaria/backoffice/pkg/http"
)

// AuthzServiceInterface defines the interface for permission management
type AuthzServiceInterface interface {
	Catalog() *permissions.Catalog
	FormattedPermissions(ctx context.Context, user *models.User) ([]permissions.ModuleGrants, error)
	SyncPermissions(ctx context.Context, user *models.User, requested []permissions.ModuleGrants) error
	AssignDefaultPermissions(ctx context.Context, user *models.User) error
}

// PermissionHandler handles the permission catalog and per-user grant routes
type PermissionHandler struct {
	authz AuthzServiceInterface
	users UserServiceInterface
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(authz AuthzServiceInterface, users UserServiceInterface) *PermissionHandler {
	return &PermissionHandler{authz: authz, users: users}
}

// SyncPermissionsRequest is the full replacement grant set for a user
type SyncPermissionsRequest struct {
	Permissions []permissions.ModuleGrants `json:"permisos" validate:"required"`
}

// ListCatalog returns every module and action the system knows about
func (h *PermissionHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"permisos": h.authz.Catalog().Formatted()})
}

// RoleDefaults returns the template grant set for a role
func (h *PermissionHandler) RoleDefaults(w http.ResponseWriter, r *http.Request) {
	role := permissions.Role(chi.URLParam(r, "rol"))
	if !role.Valid() {
		pkghttp.WriteNotFound(w, "Rol no encontrado.")
		return
	}

	defaults, ok := h.authz.Catalog().RoleDefaultsFormatted(role)
	if !ok {
		pkghttp.WriteNotFound(w, "Rol no encontrado.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"rol": string(role), "permisos": defaults})
}

// UserPermissions returns a user's effective permission set
func (h *PermissionHandler) UserPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.fetchUser(w, r)
	if !ok {
		return
	}

	formatted, err := h.authz.FormattedPermissions(r.Context(), user)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"rol":      string(user.Role),
		"permisos": formatted,
	})
}

// SyncUserPermissions replaces a user's entire grant set. Unknown module or
// action names are dropped silently, so the response echoes what was kept.
func (h *PermissionHandler) SyncUserPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.fetchUser(w, r)
	if !ok {
		return
	}

	if user.Role.IsAdministrator() {
		pkghttp.WriteBadRequest(w, "Los permisos del administrador no se pueden modificar.")
		return
	}

	var req SyncPermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := h.authz.SyncPermissions(r.Context(), user, req.Permissions); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	formatted, err := h.authz.FormattedPermissions(r.Context(), user)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"permisos": formatted,
	})
}

// ResetUserPermissions reinstalls the role's default grant set
func (h *PermissionHandler) ResetUserPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.fetchUser(w, r)
	if !ok {
		return
	}

	if err := h.authz.AssignDefaultPermissions(r.Context(), user); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	formatted, err := h.authz.FormattedPermissions(r.Context(), user)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":  user.ID,
		"permisos": formatted,
	})
}

func (h *PermissionHandler) fetchUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id := chi.URLParam(r, "id")

	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Usuario no encontrado.")
			return nil, false
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return nil, false
	}
	return user, true
}
