package background

import (
	"context"
	"log/slog"
	"time"
)

// TokenCleaner removes expired blacklist rows.
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// LockSweeper bulk-releases account locks that have run out.
type LockSweeper interface {
	ReleaseExpiredLocks(ctx context.Context) (int64, error)
}

// CleanupManager periodically prunes expired revoked tokens and releases
// expired account locks.
type CleanupManager struct {
	tokens   TokenCleaner
	locks    LockSweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(tokens TokenCleaner, locks LockSweeper, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		tokens:   tokens,
		locks:    locks,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.tokens.CleanupExpiredTokens(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired tokens", slog.Any("error", err))
	} else if rowsDeleted > 0 {
		cm.logger.Info("expired token cleanup completed", slog.Int64("rows_deleted", rowsDeleted))
	}

	locksReleased, err := cm.locks.ReleaseExpiredLocks(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to release expired locks", slog.Any("error", err))
	} else if locksReleased > 0 {
		cm.logger.Info("expired account locks released", slog.Int64("accounts", locksReleased))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
