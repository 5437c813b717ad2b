package auth

import (
	"context"
	"log/slog"
	"time"

	"sessionauth/internal/pkg/metrics"
)

type SessionReaper interface {
	Reap(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// CleanupConfig holds configuration for session sweeping
type CleanupConfig struct {
	Retention time.Duration // Keep invalidated sessions this long before deleting them
	Interval  time.Duration // How often the scheduled sweep runs
}

// CleanupService deletes dead sessions. Read paths already ignore them, so sweeping is only
// about reclaiming space.
type CleanupService struct {
	sessions SessionReaper
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewCleanupService(sessions SessionReaper, m *metrics.Metrics, log *slog.Logger, now func() time.Time) *CleanupService {
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &CleanupService{sessions: sessions, metrics: m, log: log, now: now}
}

// RunOnce performs a single sweep and reports how many rows were deleted.
func (c *CleanupService) RunOnce(ctx context.Context, retention time.Duration) (int64, error) {
	startTime := time.Now()

	deleted, err := c.sessions.Reap(ctx, c.now().UTC(), retention)
	if err != nil {
		c.log.Error("session cleanup failed", "error", err)
		return 0, err
	}

	c.metrics.SessionsReaped.Add(float64(deleted))
	c.log.Info("session cleanup completed", "deleted", deleted, "duration", time.Since(startTime))
	return deleted, nil
}

// ScheduleCleanup starts a background goroutine for periodic cleanup. The returned channel is
// closed once the goroutine has exited, which happens when ctx is done.
func (c *CleanupService) ScheduleCleanup(ctx context.Context, cfg CleanupConfig) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = c.RunOnce(ctx, cfg.Retention)
			case <-ctx.Done():
				c.log.Info("scheduled session cleanup stopped")
				return
			}
		}
	}()

	c.log.Info("scheduled session cleanup started", "interval", cfg.Interval, "retention", cfg.Retention)
	return done
}
