package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

// Open returns a SQLite-backed repository, degrading to an in-memory one
// when the database cannot be opened. Persistence failures are never fatal:
// the engine keeps operating best-effort without surviving restarts.
func Open(dbPath string) Repository {
	repo, err := NewSQLite(dbPath)
	if err != nil {
		slog.Error("Persistent store unavailable, degrading to in-memory sessions",
			"db_path", dbPath, "error", err)
		return NewMemory()
	}
	return repo
}

// LoadOrCreate resumes the session with the given id, or creates a new one
// when none exists. It never returns an error: on any persistence failure
// the returned session is a fresh in-memory one, usable for the remainder
// of the page view.
func LoadOrCreate(ctx context.Context, repo Repository, sessionID, shopperID, origin string, now time.Time) *domain.Session {
	sess, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		slog.Warn("Session load failed, proceeding best-effort", "session_id", sessionID, "error", err)
		sess = nil
	}
	if sess != nil {
		slog.Debug("Resumed session", "session_id", sess.ID, "events", sess.Events.Len())
		sess.Origin = origin
		sess.LastSeenAt = now
		return sess
	}

	sess = domain.NewSession(sessionID, shopperID, now)
	sess.Origin = origin
	if err := repo.UpsertSession(ctx, sess); err != nil {
		slog.Warn("Session persist failed, proceeding best-effort", "session_id", sessionID, "error", err)
	} else {
		slog.Debug("Started new session", "session_id", sess.ID)
	}
	return sess
}
