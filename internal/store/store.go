// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

// Repository defines the interface for persisting shopper sessions.
//
// Per browsing session it holds the keys the tracker must survive a page
// reload: session id, serialized event log, start time, analyses-performed
// counter, and the message-shown flag.
type Repository interface {
	// GetSession retrieves a session by id. Returns (nil, nil) when absent.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpsertSession creates or updates a session record.
	UpsertSession(ctx context.Context, session *domain.Session) error

	// UpdateEvents persists the full serialized event log for a session.
	UpdateEvents(ctx context.Context, sessionID string, events *domain.EventLog) error

	// UpdateAnalysesCount persists the per-session analysis counter.
	UpdateAnalysesCount(ctx context.Context, sessionID string, count int) error

	// SetMessageShown marks that a proactive message was shown this session.
	SetMessageShown(ctx context.Context, sessionID string) error

	// TouchLastSeen updates the last_seen_at timestamp for a session.
	TouchLastSeen(ctx context.Context, sessionID string, lastSeen time.Time) error

	// GetExpiredSessions retrieves sessions idle past the TTL.
	GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]*domain.Session, error)

	// DeleteSessions removes the given sessions, returning the count removed.
	DeleteSessions(ctx context.Context, sessionIDs []string) (int64, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
