package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prendaria/backoffice/internal/permissions"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

func newTestAuthzService(store GrantStore) *AuthzService {
	logger := slog.Default()
	return NewAuthzService(permissions.NewCatalog(), store, logger, pkglogger.NewAuditLogger(logger))
}

func TestAuthzService_HasPermission_AdministratorBypassesGrants(t *testing.T) {
	storeCalled := false
	store := &MockGrantStore{
		HasGrantFunc: func(ctx context.Context, userID, module, action string) (bool, error) {
			storeCalled = true
			return false, nil
		},
	}
	svc := newTestAuthzService(store)
	admin := NewTestUser("admin1", "admin", "administrador")

	allowed, err := svc.HasPermission(context.Background(), admin, "usuarios", "eliminar")

	require.NoError(t, err)
	assert.True(t, allowed)
	assert.False(t, storeCalled)
}

func TestAuthzService_HasPermission_ChecksGrantForOtherRoles(t *testing.T) {
	store := &MockGrantStore{
		HasGrantFunc: func(ctx context.Context, userID, module, action string) (bool, error) {
			return module == "caja" && action == "abrir", nil
		},
	}
	svc := newTestAuthzService(store)
	cashier := NewTestUser("user1", "cajero1", "cajero")

	allowed, err := svc.HasPermission(context.Background(), cashier, "caja", "abrir")
	require.NoError(t, err)
	assert.True(t, allowed)

	denied, err := svc.HasPermission(context.Background(), cashier, "usuarios", "eliminar")
	require.NoError(t, err)
	assert.False(t, denied)
}

func TestAuthzService_HasModuleAccess(t *testing.T) {
	store := &MockGrantStore{
		HasModuleGrantFunc: func(ctx context.Context, userID, module string) (bool, error) {
			return module == "cobros", nil
		},
	}
	svc := newTestAuthzService(store)
	cashier := NewTestUser("user1", "cajero1", "cajero")

	allowed, err := svc.HasModuleAccess(context.Background(), cashier, "cobros")
	require.NoError(t, err)
	assert.True(t, allowed)

	denied, err := svc.HasModuleAccess(context.Background(), cashier, "reportes")
	require.NoError(t, err)
	assert.False(t, denied)
}

func TestAuthzService_FormattedPermissions_AdministratorSeesFullCatalog(t *testing.T) {
	svc := newTestAuthzService(&MockGrantStore{})
	admin := NewTestUser("admin1", "admin", "administrador")

	formatted, err := svc.FormattedPermissions(context.Background(), admin)

	require.NoError(t, err)
	require.Len(t, formatted, 12)
	assert.Equal(t, "dashboard", formatted[0].Module)
	assert.Equal(t, []string{"ver"}, formatted[0].Actions)
}

func TestAuthzService_FormattedPermissions_GroupsByModuleInOrder(t *testing.T) {
	store := &MockGrantStore{
		GrantsForFunc: func(ctx context.Context, userID string) ([]permissions.Grant, error) {
			return []permissions.Grant{
				{Module: "caja", Action: "abrir"},
				{Module: "cobros", Action: "realizar"},
				{Module: "caja", Action: "cerrar"},
				{Module: "cobros", Action: "ver"},
			}, nil
		},
	}
	svc := newTestAuthzService(store)
	cashier := NewTestUser("user1", "cajero1", "cajero")

	formatted, err := svc.FormattedPermissions(context.Background(), cashier)

	require.NoError(t, err)
	require.Len(t, formatted, 2)
	assert.Equal(t, "caja", formatted[0].Module)
	assert.Equal(t, []string{"abrir", "cerrar"}, formatted[0].Actions)
	assert.Equal(t, "cobros", formatted[1].Module)
	assert.Equal(t, []string{"realizar", "ver"}, formatted[1].Actions)
}

func TestAuthzService_SyncPermissions_DropsUnknownTuples(t *testing.T) {
	var replaced []permissions.Grant
	store := &MockGrantStore{
		ReplaceGrantsFunc: func(ctx context.Context, userID string, grants []permissions.Grant) error {
			replaced = grants
			return nil
		},
	}
	svc := newTestAuthzService(store)
	cashier := NewTestUser("user1", "cajero1", "cajero")

	requested := []permissions.ModuleGrants{
		{Module: "caja", Actions: []string{"abrir", "volar"}},
		{Module: "inventado", Actions: []string{"ver"}},
		{Module: "cobros", Actions: []string{"realizar"}},
	}

	err := svc.SyncPermissions(context.Background(), cashier, requested)

	require.NoError(t, err)
	assert.Equal(t, []permissions.Grant{
		{Module: "caja", Action: "abrir"},
		{Module: "cobros", Action: "realizar"},
	}, replaced)
}

func TestAuthzService_AssignDefaultPermissions_Cashier(t *testing.T) {
	var replaced []permissions.Grant
	store := &MockGrantStore{
		ReplaceGrantsFunc: func(ctx context.Context, userID string, grants []permissions.Grant) error {
			replaced = grants
			return nil
		},
	}
	svc := newTestAuthzService(store)
	cashier := NewTestUser("user1", "cajero1", "cajero")

	err := svc.AssignDefaultPermissions(context.Background(), cashier)

	require.NoError(t, err)
	assert.Equal(t, []permissions.Grant{
		{Module: "dashboard", Action: "ver"},
		{Module: "clientes", Action: "ver"},
		{Module: "clientes", Action: "crear"},
		{Module: "creditos", Action: "ver"},
		{Module: "creditos", Action: "crear"},
		{Module: "caja", Action: "abrir"},
		{Module: "caja", Action: "cerrar"},
		{Module: "caja", Action: "ver_movimientos"},
		{Module: "cobros", Action: "realizar"},
		{Module: "cobros", Action: "ver"},
		{Module: "cobros", Action: "imprimir_recibo"},
		{Module: "prendas", Action: "ver"},
		{Module: "historial", Action: "ver"},
	}, replaced)
}

func TestAuthzService_AssignDefaultPermissions_AdministratorGetsEverything(t *testing.T) {
	var replaced []permissions.Grant
	store := &MockGrantStore{
		ReplaceGrantsFunc: func(ctx context.Context, userID string, grants []permissions.Grant) error {
			replaced = grants
			return nil
		},
	}
	svc := newTestAuthzService(store)
	admin := NewTestUser("admin1", "admin", "administrador")

	err := svc.AssignDefaultPermissions(context.Background(), admin)

	require.NoError(t, err)
	assert.Equal(t, svc.Catalog().AllGrants(), replaced)
}

func TestAuthzService_AssignDefaultPermissions_UnknownRole(t *testing.T) {
	svc := newTestAuthzService(&MockGrantStore{})
	user := NewTestUser("user1", "someone", "gerente")

	err := svc.AssignDefaultPermissions(context.Background(), user)

	assert.Error(t, err)
}
