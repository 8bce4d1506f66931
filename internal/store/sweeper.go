package store

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = 5 * time.Minute

// ExpireCallback is called for each session removed by the sweeper, before
// its row is deleted. Used to tear down any live connection state.
type ExpireCallback func(sessionID string)

// StartSweeper runs a background goroutine that periodically removes
// sessions idle past the TTL. Browsing sessions have no explicit "end"
// signal on the server side; going idle past the TTL is the end.
func StartSweeper(ctx context.Context, repo Repository, ttl time.Duration, onExpire ExpireCallback) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpired(ctx, repo, ttl, onExpire)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpired(ctx context.Context, repo Repository, ttl time.Duration, onExpire ExpireCallback) {
	expired, err := repo.GetExpiredSessions(ctx, ttl)
	if err != nil {
		slog.Error("Sweeper failed to get expired sessions", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	ids := make([]string, 0, len(expired))
	for _, sess := range expired {
		if onExpire != nil {
			onExpire(sess.ID)
		}
		ids = append(ids, sess.ID)
	}

	deleted, err := repo.DeleteSessions(ctx, ids)
	if err != nil {
		slog.Error("Sweeper failed to delete sessions", "error", err, "count", len(ids))
		return
	}
	slog.Info("Sweeper removed idle sessions", "count", deleted)
}
