package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prendaria/backoffice/internal/database"
	"github.com/prendaria/backoffice/internal/models"
	"github.com/prendaria/backoffice/internal/permissions"
)

const userColumns = `id, username, email, name, password_hash, rol, activo,
		failed_login_attempts, last_failed_login_at, locked_until,
		last_login_at, last_login_ip, password_changed_at, force_password_change,
		created_at, updated_at`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string
	var lastFailedLoginAt, lockedUntil, lastLoginAt, passwordChangedAt *time.Time
	var lastLoginIP *string

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.Name, &user.PasswordHash,
		&role, &user.Active,
		&user.FailedLoginAttempts, &lastFailedLoginAt, &lockedUntil,
		&lastLoginAt, &lastLoginIP, &passwordChangedAt, &user.ForcePasswordChange,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.Role = permissions.Role(role)
	user.LastFailedLoginAt = lastFailedLoginAt
	user.LockedUntil = lockedUntil
	user.LastLoginAt = lastLoginAt
	if lastLoginIP != nil {
		user.LastLoginIP = *lastLoginIP
	}
	user.PasswordChangedAt = passwordChangedAt

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByLogin resolves a user by username or email, the two identifiers the
// login form accepts.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, login))
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, username, email, name, password_hash, rol, activo, password_changed_at, force_password_change, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.Name, user.PasswordHash,
		string(user.Role), user.Active, user.PasswordChangedAt, user.ForcePasswordChange,
		user.CreatedAt, user.UpdatedAt,
	))
}

// Update writes the profile fields an administrator may edit. Security
// fields are excluded on purpose; those go through the dedicated methods
// below, which only the account security guard calls.
func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET username = $1, email = $2, name = $3, rol = $4, updated_at = $5
		WHERE id = $6
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.Username, user.Email, user.Name, string(user.Role), user.UpdatedAt, id,
	))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET activo = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash, stamps password_changed_at and
// sets the force-change flag (true for admin resets, false for self-service
// changes).
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time, forceChange bool) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, password_changed_at = $2, force_password_change = $3, updated_at = $2
		WHERE id = $4
	`, passwordHash, changedAt, forceChange, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordFailedLogin is the atomic per-user failure increment. The counter
// advances inside a single UPDATE so concurrent failed attempts against the
// same account serialize at the database and never undercount.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, userID string, at time.Time) (int, error) {
	var attempts int
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    last_failed_login_at = $1,
		    updated_at = $1
		WHERE id = $2
		RETURNING failed_login_attempts
	`, at, userID).Scan(&attempts)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return attempts, nil
}

func (r *UserRepository) LockAccount(ctx context.Context, userID string, until time.Time) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET locked_until = $1, updated_at = $2 WHERE id = $3`,
		until, time.Now(), userID,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ResetLock clears an expired lock and zeroes the failure counter.
func (r *UserRepository) ResetLock(ctx context.Context, userID string) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET locked_until = NULL, failed_login_attempts = 0, updated_at = $1
		WHERE id = $2
	`, time.Now(), userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReleaseExpiredLocks bulk-clears locks that have run out. Login reconciles
// lazily on read; this sweep keeps listings and reports honest for accounts
// nobody has touched since their lock expired.
func (r *UserRepository) ReleaseExpiredLocks(ctx context.Context) (int64, error) {
	now := time.Now()
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET locked_until = NULL, failed_login_attempts = 0, updated_at = $1
		WHERE locked_until IS NOT NULL AND locked_until <= $1
	`, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// ClearFailedLogins is the success-path reset: counters and lock cleared,
// last login stamped.
func (r *UserRepository) ClearFailedLogins(ctx context.Context, userID string, at time.Time, ip string) error {
	result, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    last_failed_login_at = NULL,
		    locked_until = NULL,
		    last_login_at = $1,
		    last_login_ip = $2,
		    updated_at = $1
		WHERE id = $3
	`, at, ip, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
