package security

import (
	"context"
	"io"
	"log/slog"
	"time"

	pkglogger "github.com/prendaria/backoffice/pkg/logger"
)

// MockSecurityStore implements SecurityStore with configurable behavior
type MockSecurityStore struct {
	RecordFailedLoginFunc func(ctx context.Context, userID string, at time.Time) (int, error)
	LockAccountFunc       func(ctx context.Context, userID string, until time.Time) error
	ResetLockFunc         func(ctx context.Context, userID string) error
	ClearFailedLoginsFunc func(ctx context.Context, userID string, at time.Time, ip string) error
}

func (m *MockSecurityStore) RecordFailedLogin(ctx context.Context, userID string, at time.Time) (int, error) {
	if m.RecordFailedLoginFunc != nil {
		return m.RecordFailedLoginFunc(ctx, userID, at)
	}
	return 1, nil
}

func (m *MockSecurityStore) LockAccount(ctx context.Context, userID string, until time.Time) error {
	if m.LockAccountFunc != nil {
		return m.LockAccountFunc(ctx, userID, until)
	}
	return nil
}

func (m *MockSecurityStore) ResetLock(ctx context.Context, userID string) error {
	if m.ResetLockFunc != nil {
		return m.ResetLockFunc(ctx, userID)
	}
	return nil
}

func (m *MockSecurityStore) ClearFailedLogins(ctx context.Context, userID string, at time.Time, ip string) error {
	if m.ClearFailedLoginsFunc != nil {
		return m.ClearFailedLoginsFunc(ctx, userID, at, ip)
	}
	return nil
}

// MockTokenRevoker implements TokenRevoker with configurable behavior
type MockTokenRevoker struct {
	RevokeAllUserTokensFunc func(ctx context.Context, userID, reason string) error
}

func (m *MockTokenRevoker) RevokeAllUserTokens(ctx context.Context, userID, reason string) error {
	if m.RevokeAllUserTokensFunc != nil {
		return m.RevokeAllUserTokensFunc(ctx, userID, reason)
	}
	return nil
}

// MockKeyedCache implements KeyedCache with configurable behavior
type MockKeyedCache struct {
	IncrementTTLFunc func(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CountFunc        func(ctx context.Context, key string) (int64, error)
	ForgetFunc       func(ctx context.Context, key string) error
}

func (m *MockKeyedCache) IncrementTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.IncrementTTLFunc != nil {
		return m.IncrementTTLFunc(ctx, key, ttl)
	}
	return 1, nil
}

func (m *MockKeyedCache) Count(ctx context.Context, key string) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, key)
	}
	return 0, nil
}

func (m *MockKeyedCache) Forget(ctx context.Context, key string) error {
	if m.ForgetFunc != nil {
		return m.ForgetFunc(ctx, key)
	}
	return nil
}

func newTestGuard(store SecurityStore, cache KeyedCache, revoker TokenRevoker, cfg Config) *Guard {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if store == nil {
		store = &MockSecurityStore{}
	}
	if cache == nil {
		cache = &MockKeyedCache{}
	}
	if revoker == nil {
		revoker = &MockTokenRevoker{}
	}
	return NewGuard(store, NewAttemptTracker(cache), revoker, cfg, logger, pkglogger.NewAuditLogger(logger))
}
