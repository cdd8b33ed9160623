package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Authentication security outcomes
	ErrIPBlocked       = errors.New("too many failed attempts from this address")
	ErrAccountLocked   = errors.New("account is temporarily locked")
	ErrAccountInactive = errors.New("account is inactive")
)

// AccountLockedError carries the remaining lockout time so the caller can
// tell the user when to retry. Matches ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	RemainingMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked, retry in %d minutes", e.RemainingMinutes)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// InvalidCredentialsError is returned on a failed password check. When three
// or fewer attempts remain before lockout, AttemptsRemaining carries the
// hint; otherwise it is negative and no hint is shown. Matches
// ErrUnauthorized under errors.Is.
type InvalidCredentialsError struct {
	AttemptsRemaining int
}

func (e *InvalidCredentialsError) Error() string {
	if e.AttemptsRemaining >= 0 {
		return fmt.Sprintf("invalid credentials, %d attempts remaining", e.AttemptsRemaining)
	}
	return "invalid credentials"
}

func (e *InvalidCredentialsError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ForbiddenError records the denied (module, action) tuple for audit
// purposes. Matches ErrForbidden under errors.Is.
type ForbiddenError struct {
	Module string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: missing permission %s:%s", e.Module, e.Action)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
