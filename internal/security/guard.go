package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prendaria/backoffice/internal/models"
	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

// SecurityStore is the durable side of the guard: the user record fields it
// owns. The counter increment must be atomic in the store (a lost update
// that undercounts failures is a security regression).
type SecurityStore interface {
	// RecordFailedLogin atomically increments failed_login_attempts, stamps
	// last_failed_login_at, and returns the updated count.
	RecordFailedLogin(ctx context.Context, userID string, at time.Time) (int, error)
	// LockAccount sets locked_until.
	LockAccount(ctx context.Context, userID string, until time.Time) error
	// ResetLock clears locked_until and zeroes the failure counter.
	ResetLock(ctx context.Context, userID string) error
	// ClearFailedLogins resets all failure state and records the successful
	// login timestamp and source IP.
	ClearFailedLogins(ctx context.Context, userID string, at time.Time, ip string) error
}

// TokenRevoker invalidates session tokens. Issuance and transport are not
// the guard's concern; it only needs revoke-all.
type TokenRevoker interface {
	RevokeAllUserTokens(ctx context.Context, userID, reason string) error
}

// Config holds the guard's tunable policy. PasswordMaxAge enables age-based
// forced rotation when non-zero; it ships disabled.
type Config struct {
	PasswordMaxAge time.Duration
}

// Guard orchestrates login attempt security for user accounts: IP blocking,
// the Open/Locked account state machine, and success-path cleanup. Callers
// must invoke its checks in the fixed order IsIPBlocked → resolve user →
// IsUserLocked → verify credentials; the ordering keeps enumeration cheap to
// reject and prevents a locked account from leaking password correctness.
type Guard struct {
	store   SecurityStore
	tracker *AttemptTracker
	revoker TokenRevoker
	cfg     Config
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
	now     func() time.Time
}

func NewGuard(store SecurityStore, tracker *AttemptTracker, revoker TokenRevoker, cfg Config, logger *slog.Logger, audit *pkglogger.AuditLogger) *Guard {
	return &Guard{
		store:   store,
		tracker: tracker,
		revoker: revoker,
		cfg:     cfg,
		logger:  logger,
		audit:   audit,
		now:     time.Now,
	}
}

// SetClock overrides the guard's time source. Test use only.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

// IsIPBlocked reports whether ip has accumulated enough failures across any
// accounts to be refused before any account lookup happens. Cache errors
// fail open: an unavailable counter store should not lock out the whole
// branch office.
func (g *Guard) IsIPBlocked(ctx context.Context, ip string) bool {
	count, err := g.tracker.Count(ctx, ip)
	if err != nil {
		g.logger.Error("failed to read ip attempt counter", slog.String("ip", ip), slog.Any("error", err))
		return false
	}
	return count >= IPBlockThreshold
}

// IsLockExpired is the pure form of the lock check: it reports whether a
// lock timestamp exists and has already passed. It never mutates anything.
func IsLockExpired(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.Before(now)
}

// ReconcileLock clears an expired lock, both in the store and on the
// in-memory user. Idempotent: reconciling an unlocked or still-locked user
// is a no-op.
func (g *Guard) ReconcileLock(ctx context.Context, user *models.User) error {
	if !IsLockExpired(user.LockedUntil, g.now()) {
		return nil
	}

	if err := g.store.ResetLock(ctx, user.ID); err != nil {
		return fmt.Errorf("reset expired lock: %w", err)
	}

	user.LockedUntil = nil
	user.FailedLoginAttempts = 0

	g.logger.Info("account lock expired and cleared",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))
	return nil
}

// IsUserLocked reconciles an expired lock and then reports the current lock
// state. Callers who want the pure query without the side effect should use
// IsLockExpired directly.
func (g *Guard) IsUserLocked(ctx context.Context, user *models.User) (bool, error) {
	if user.LockedUntil == nil {
		return false, nil
	}

	if err := g.ReconcileLock(ctx, user); err != nil {
		return false, err
	}

	return user.LockedUntil != nil && !user.LockedUntil.Before(g.now()), nil
}

// LockoutRemainingMinutes returns whole minutes until the lock expires,
// floored at zero.
func (g *Guard) LockoutRemainingMinutes(user *models.User) int {
	if user.LockedUntil == nil {
		return 0
	}
	remaining := user.LockedUntil.Sub(g.now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Round(time.Minute) / time.Minute)
}

// RecordFailedAttempt registers a failed login for a known account: the
// durable per-user counter and the rolling IP counter both advance, and the
// account transitions to Locked when the user counter reaches the threshold.
// Returns the updated per-user count and whether this call triggered a lock.
func (g *Guard) RecordFailedAttempt(ctx context.Context, user *models.User, ip string) (int, bool, error) {
	now := g.now()

	attempts, err := g.store.RecordFailedLogin(ctx, user.ID, now)
	if err != nil {
		return 0, false, fmt.Errorf("record failed login: %w", err)
	}
	user.FailedLoginAttempts = attempts
	user.LastFailedLoginAt = &now

	// IP counter failures are logged but never abort the flow.
	if _, err := g.tracker.Increment(ctx, ip); err != nil {
		g.logger.Error("failed to increment ip attempt counter", slog.String("ip", ip), slog.Any("error", err))
	}

	locked := false
	if attempts >= MaxFailedAttempts {
		until := now.Add(LockoutDuration)
		if err := g.store.LockAccount(ctx, user.ID, until); err != nil {
			return attempts, false, fmt.Errorf("lock account: %w", err)
		}
		user.LockedUntil = &until
		locked = true

		g.logger.Warn("account locked after repeated failed logins",
			slog.String("user_id", user.ID),
			slog.String("username", user.Username),
			slog.String("ip", ip),
			slog.Int("attempts", attempts))
		g.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "account_locked",
			UserID:        user.ID,
			IPAddress:     ip,
			FailureReason: "max_failed_attempts",
			Attempts:      attempts,
		})
	}

	g.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        user.ID,
		IPAddress:     ip,
		FailureReason: "invalid_credentials",
		Attempts:      attempts,
	})

	return attempts, locked, nil
}

// RecordFailedAttemptForUnknownUser advances only the IP counter; there is
// no user record to charge. Still audited for threat detection.
func (g *Guard) RecordFailedAttemptForUnknownUser(ctx context.Context, usernameAttempted, ip string) {
	count, err := g.tracker.Increment(ctx, ip)
	if err != nil {
		g.logger.Error("failed to increment ip attempt counter", slog.String("ip", ip), slog.Any("error", err))
	}

	g.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ip,
		FailureReason: "unknown_user",
		Attempts:      count,
		Metadata:      map[string]string{"username_attempted": usernameAttempted},
	})
}

// ClearFailedAttempts is the success-path reset: failure counters and lock
// cleared, last login stamped, and the counter for this specific IP dropped.
func (g *Guard) ClearFailedAttempts(ctx context.Context, user *models.User, ip string) error {
	now := g.now()

	if err := g.store.ClearFailedLogins(ctx, user.ID, now, ip); err != nil {
		return fmt.Errorf("clear failed logins: %w", err)
	}

	user.FailedLoginAttempts = 0
	user.LastFailedLoginAt = nil
	user.LockedUntil = nil
	user.LastLoginAt = &now
	user.LastLoginIP = ip

	if err := g.tracker.Clear(ctx, ip); err != nil {
		g.logger.Error("failed to clear ip attempt counter", slog.String("ip", ip), slog.Any("error", err))
	}

	g.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ip,
		Success:   true,
	})

	return nil
}

// NeedsPasswordChange reports whether the user must change their password
// before proceeding: either the force flag is set (admin reset) or, when the
// age policy is enabled, the password is older than PasswordMaxAge.
func (g *Guard) NeedsPasswordChange(user *models.User) bool {
	if user.ForcePasswordChange {
		return true
	}

	if g.cfg.PasswordMaxAge > 0 && user.PasswordChangedAt != nil {
		return g.now().Sub(*user.PasswordChangedAt) > g.cfg.PasswordMaxAge
	}

	return false
}

// RevokeAllTokens invalidates every outstanding session token for the user.
func (g *Guard) RevokeAllTokens(ctx context.Context, user *models.User, reason string) error {
	if err := g.revoker.RevokeAllUserTokens(ctx, user.ID, reason); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	g.audit.LogAccountAction("tokens_revoked", user.ID, "", map[string]string{"reason": reason})
	return nil
}
