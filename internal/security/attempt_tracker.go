// Package security implements the authentication security core: per-IP
// failure counters, the account lockout state machine, and the password
// change policy.
package security

import (
	"context"
	"fmt"
	"time"
)

// Fixed security thresholds. These mirror the operational policy of the
// business and are deliberately not environment-driven.
const (
	// MaxFailedAttempts is the per-account failure count that triggers a lock.
	MaxFailedAttempts = 5

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 15 * time.Minute

	// AttemptResetWindow is the rolling TTL on IP failure counters. Each new
	// failure re-arms the window.
	AttemptResetWindow = 30 * time.Minute

	// ipBlockMultiplier derives the IP block threshold from the per-account
	// one. An IP is blocked across all accounts at MaxFailedAttempts *
	// ipBlockMultiplier failures within the rolling window.
	ipBlockMultiplier = 2
)

// IPBlockThreshold is the failure count at which an IP is blocked.
const IPBlockThreshold = MaxFailedAttempts * ipBlockMultiplier

// KeyedCache is the ephemeral keyed store behind IP counters. Increment must
// be atomic at the storage layer: concurrent failures against the same IP
// must never undercount.
type KeyedCache interface {
	// IncrementTTL atomically increments the counter at key and re-arms its
	// time-to-live, returning the new value.
	IncrementTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Count returns the current counter value, 0 when absent.
	Count(ctx context.Context, key string) (int64, error)
	// Forget removes the key.
	Forget(ctx context.Context, key string) error
}

// AttemptTracker maintains per-IP failed login counters with a rolling
// expiry window. Per-user counters live on the user record itself, not here,
// so they survive cache eviction and stay auditable.
type AttemptTracker struct {
	cache KeyedCache
}

func NewAttemptTracker(cache KeyedCache) *AttemptTracker {
	return &AttemptTracker{cache: cache}
}

func ipKey(ip string) string {
	return fmt.Sprintf("login_attempts_ip:%s", ip)
}

// Increment records one failed attempt from ip and re-arms the rolling
// window. Returns the updated count.
func (t *AttemptTracker) Increment(ctx context.Context, ip string) (int, error) {
	count, err := t.cache.IncrementTTL(ctx, ipKey(ip), AttemptResetWindow)
	if err != nil {
		return 0, fmt.Errorf("increment attempts for ip: %w", err)
	}
	return int(count), nil
}

// Count returns the current failure count for ip within the window.
func (t *AttemptTracker) Count(ctx context.Context, ip string) (int, error) {
	count, err := t.cache.Count(ctx, ipKey(ip))
	if err != nil {
		return 0, fmt.Errorf("read attempts for ip: %w", err)
	}
	return int(count), nil
}

// Clear removes the counter for ip. Called on successful login from that IP;
// counters for other IPs that tried the same account are left alone.
func (t *AttemptTracker) Clear(ctx context.Context, ip string) error {
	if err := t.cache.Forget(ctx, ipKey(ip)); err != nil {
		return fmt.Errorf("clear attempts for ip: %w", err)
	}
	return nil
}
