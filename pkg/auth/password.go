package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
)

// specialChars is the fixed symbol set that satisfies the special-character
// requirement. Anything outside this set does not count.
const specialChars = `!@#$%^&*(),.?":{}|<>_-+=[]\/`

// commonPasswords is a deny-list of passwords rejected regardless of the
// character-class rules. Checked case-insensitively.
var commonPasswords = map[string]bool{
	"password": true,
	"123456":   true,
	"12345678": true,
	"qwerty":   true,
	"admin":    true,
	"letmein":  true,
	"welcome":  true,
}

// PasswordValidationError wraps the full violation list for callers that
// want a single error value.
type PasswordValidationError struct {
	Violations []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "password validation failed"
	}
	return "password does not meet security requirements: " + strings.Join(e.Violations, "; ")
}

// ValidateStrength evaluates every password rule independently and returns
// one message per violated rule. An empty slice means the password is
// acceptable. The function has no side effects, so it serves both
// declarative request validation and free-form checks (e.g. "differs from
// current password" flows that need extra context).
func ValidateStrength(password string) []string {
	var violations []string

	if len(password) < MinPasswordLen {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
		if strings.ContainsRune(specialChars, r) {
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}
	if !hasSpecial {
		violations = append(violations, "must contain at least one special character (!@#$%^&*...)")
	}

	if commonPasswords[strings.ToLower(password)] {
		violations = append(violations, "is too common to be secure")
	}

	return violations
}

// ValidatePassword is the error-typed form of ValidateStrength.
func ValidatePassword(password string) error {
	if violations := ValidateStrength(password); len(violations) > 0 {
		return &PasswordValidationError{Violations: violations}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
