package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prendaria/backoffice/internal/database"
	"github.com/prendaria/backoffice/internal/permissions"
)

// PermissionRepository manages the permission catalog rows and the
// user_permissions pivot. A user's grant set is only ever replaced
// wholesale, never patched row by row.
type PermissionRepository struct {
	db *database.DB
}

func NewPermissionRepository(db *database.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// SeedCatalog inserts every catalog tuple that is not already present.
// Run once at startup; existing rows are left untouched.
func (r *PermissionRepository) SeedCatalog(ctx context.Context, catalog *permissions.Catalog) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, grant := range catalog.AllGrants() {
			_, err := tx.Exec(ctx, `
				INSERT INTO permissions (modulo, accion)
				VALUES ($1, $2)
				ON CONFLICT (modulo, accion) DO NOTHING
			`, grant.Module, grant.Action)
			if err != nil {
				return fmt.Errorf("seed permission %s:%s: %w", grant.Module, grant.Action, err)
			}
		}
		return nil
	})
}

// GrantsFor returns the user's explicit grant set in the order the grants
// were installed (pivot insertion order, not catalog order).
func (r *PermissionRepository) GrantsFor(ctx context.Context, userID string) ([]permissions.Grant, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT p.modulo, p.accion
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY up.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user grants: %w", err)
	}
	defer rows.Close()

	var grants []permissions.Grant
	for rows.Next() {
		var g permissions.Grant
		if err := rows.Scan(&g.Module, &g.Action); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return grants, nil
}

// HasGrant reports whether the user holds the exact (module, action) tuple.
func (r *PermissionRepository) HasGrant(ctx context.Context, userID, module, action string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM user_permissions up
			JOIN permissions p ON p.id = up.permission_id
			WHERE up.user_id = $1 AND p.modulo = $2 AND p.accion = $3
		)
	`, userID, module, action).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// HasModuleGrant reports whether the user holds any grant for the module.
func (r *PermissionRepository) HasModuleGrant(ctx context.Context, userID, module string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM user_permissions up
			JOIN permissions p ON p.id = up.permission_id
			WHERE up.user_id = $1 AND p.modulo = $2
		)
	`, userID, module).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// ReplaceGrants swaps the user's entire grant set for the given tuples in a
// single transaction. Tuples must already be catalog-resolved; anything not
// found in the permissions table is skipped.
func (r *PermissionRepository) ReplaceGrants(ctx context.Context, userID string, grants []permissions.Grant) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear user grants: %w", err)
		}

		for _, grant := range grants {
			_, err := tx.Exec(ctx, `
				INSERT INTO user_permissions (user_id, permission_id)
				SELECT $1, id FROM permissions WHERE modulo = $2 AND accion = $3
				ON CONFLICT (user_id, permission_id) DO NOTHING
			`, userID, grant.Module, grant.Action)
			if err != nil {
				return fmt.Errorf("install grant %s:%s: %w", grant.Module, grant.Action, err)
			}
		}

		return nil
	})
}
