package models

import (
	"time"

	"github.com/prendaria/backoffice/internal/permissions"
)

// User is an identity record in the back office. The security fields
// (FailedLoginAttempts, LastFailedLoginAt, LockedUntil) are owned exclusively
// by the account security guard; no other component writes them.
type User struct {
	ID                  string
	Username            string
	Email               string
	Name                string
	PasswordHash        string
	Role                permissions.Role
	Active              bool
	FailedLoginAttempts int
	LastFailedLoginAt   *time.Time
	LockedUntil         *time.Time // non-nil and in the future means the account is locked
	LastLoginAt         *time.Time
	LastLoginIP         string
	PasswordChangedAt   *time.Time
	ForcePasswordChange bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
