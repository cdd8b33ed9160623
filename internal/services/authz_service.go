package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

// GrantStore is the persistence interface for explicit grant sets.
type GrantStore interface {
	GrantsFor(ctx context.Context, userID string) ([]permissions.Grant, error)
	HasGrant(ctx context.Context, userID, module, action string) (bool, error)
	HasModuleGrant(ctx context.Context, userID, module string) (bool, error)
	ReplaceGrants(ctx context.Context, userID string, grants []permissions.Grant) error
}

// AuthzService resolves whether an identity may perform (module, action).
// The administrator bypass is structural: it is checked on the role variant
// before any grant lookup, so administrator access cannot be stripped by
// manipulating grant rows.
type AuthzService struct {
	catalog *permissions.Catalog
	store   GrantStore
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

func NewAuthzService(catalog *permissions.Catalog, store GrantStore, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthzService {
	return &AuthzService{
		catalog: catalog,
		store:   store,
		logger:  logger,
		audit:   audit,
	}
}

// HasPermission reports whether the user may perform (module, action).
// Denials are audited with the denied tuple.
func (s *AuthzService) HasPermission(ctx context.Context, user *models.User, module, action string) (bool, error) {
	if user.Role.IsAdministrator() {
		return true, nil
	}

	allowed, err := s.store.HasGrant(ctx, user.ID, module, action)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}

	if !allowed {
		s.audit.LogPermissionDenied(user.ID, module, action)
	}

	return allowed, nil
}

// HasModuleAccess reports whether the user holds any grant for the module.
func (s *AuthzService) HasModuleAccess(ctx context.Context, user *models.User, module string) (bool, error) {
	if user.Role.IsAdministrator() {
		return true, nil
	}

	allowed, err := s.store.HasModuleGrant(ctx, user.ID, module)
	if err != nil {
		return false, fmt.Errorf("check module grant: %w", err)
	}

	return allowed, nil
}

// FormattedPermissions returns the user's permissions grouped by module.
// Administrators see the entire catalog; everyone else sees their explicit
// grant set, with modules and actions in the order the grants were
// installed.
func (s *AuthzService) FormattedPermissions(ctx context.Context, user *models.User) ([]permissions.ModuleGrants, error) {
	if user.Role.IsAdministrator() {
		return s.catalog.Formatted(), nil
	}

	grants, err := s.store.GrantsFor(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}

	return groupGrants(grants), nil
}

// groupGrants groups a grant list by module preserving insertion order of
// both modules and actions.
func groupGrants(grants []permissions.Grant) []permissions.ModuleGrants {
	grouped := make([]permissions.ModuleGrants, 0)
	index := make(map[string]int)

	for _, g := range grants {
		i, ok := index[g.Module]
		if !ok {
			i = len(grouped)
			index[g.Module] = i
			grouped = append(grouped, permissions.ModuleGrants{Module: g.Module})
		}
		grouped[i].Actions = append(grouped[i].Actions, g.Action)
	}

	return grouped
}

// SyncPermissions replaces the user's entire grant set with the requested
// one. Requested tuples are resolved against the catalog; unknown pairs are
// silently dropped rather than rejected.
func (s *AuthzService) SyncPermissions(ctx context.Context, user *models.User, requested []permissions.ModuleGrants) error {
	resolved := s.catalog.Resolve(requested)

	if err := s.store.ReplaceGrants(ctx, user.ID, resolved); err != nil {
		return fmt.Errorf("replace grants: %w", err)
	}

	s.logger.Info("user permissions synced",
		slog.String("user_id", user.ID),
		slog.Int("grants", len(resolved)))
	s.audit.LogAccountAction("permissions_synced", user.ID, "", map[string]string{
		"grants": fmt.Sprintf("%d", len(resolved)),
	})

	return nil
}

// AssignDefaultPermissions installs the role-default grant set, replacing
// whatever the user held. Administrators receive every catalog tuple.
func (s *AuthzService) AssignDefaultPermissions(ctx context.Context, user *models.User) error {
	defaults, ok := s.catalog.DefaultsFor(user.Role)
	if !ok {
		return fmt.Errorf("no default permissions for role %q", user.Role)
	}

	if err := s.store.ReplaceGrants(ctx, user.ID, defaults); err != nil {
		return fmt.Errorf("replace grants: %w", err)
	}

	s.logger.Info("default permissions assigned",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
		slog.Int("grants", len(defaults)))

	return nil
}

// Catalog exposes the injected catalog for handlers that list it.
func (s *AuthzService) Catalog() *permissions.Catalog {
	return s.catalog
}
