package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter removes rows whose lifetime ended before now
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpiredUnlocker lifts locks whose expiry has passed
type ExpiredUnlocker interface {
	UnlockExpired(ctx context.Context, now time.Time) (int64, error)
}

// Pruner drops dead in-memory counter entries
type Pruner interface {
	Prune() int
}

// CleanupManager periodically expires challenges, prunes the attempt trail
// past its retention window, lifts elapsed account locks, and compacts the
// counter store.
type CleanupManager struct {
	challenges ExpiredDeleter
	attempts   ExpiredDeleter
	accounts   ExpiredUnlocker
	counters   Pruner
	logger     *slog.Logger
	interval   time.Duration
	stopCh     chan struct{}
}

func NewCleanupManager(
	challenges ExpiredDeleter,
	attempts ExpiredDeleter,
	accounts ExpiredUnlocker,
	counters Pruner,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		challenges: challenges,
		attempts:   attempts,
		accounts:   accounts,
		counters:   counters,
		logger:     logger,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called
// or the context is cancelled.
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

	now := time.Now()

	if n, err := cm.challenges.DeleteExpired(cleanupCtx, now); err != nil {
		cm.logger.Error("failed to delete expired challenges", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("deleted expired challenges", slog.Int64("rows", n))
	}

	if n, err := cm.attempts.DeleteExpired(cleanupCtx, now); err != nil {
		cm.logger.Error("failed to prune login attempts", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("pruned login attempts past retention", slog.Int64("rows", n))
	}

	if n, err := cm.accounts.UnlockExpired(cleanupCtx, now); err != nil {
		cm.logger.Error("failed to lift expired locks", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("lifted expired account locks", slog.Int64("rows", n))
	}

	if cm.counters != nil {
		if n := cm.counters.Prune(); n > 0 {
			cm.logger.Info("pruned counter entries", slog.Int("entries", n))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
