package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

// MemoryStore is an in-memory Repository. It backs two cases: tests, and
// the degraded mode entered when the SQLite store cannot be opened. The
// tracker must keep working for the rest of the page view even when
// persistence is unavailable.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemory creates a new in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return cloneSession(sess), nil
}

// UpsertSession creates or updates a session record.
func (m *MemoryStore) UpsertSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneSession(session)
	stored.UpdatedAt = time.Now()
	m.sessions[session.ID] = stored
	return nil
}

// UpdateEvents persists the full event log for a session.
func (m *MemoryStore) UpdateEvents(_ context.Context, sessionID string, events *domain.EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.Events = cloneEvents(events)
		sess.UpdatedAt = time.Now()
	}
	return nil
}

// UpdateAnalysesCount persists the per-session analysis counter.
func (m *MemoryStore) UpdateAnalysesCount(_ context.Context, sessionID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.AnalysesThisSession = count
		sess.UpdatedAt = time.Now()
	}
	return nil
}

// SetMessageShown marks that a proactive message was shown this session.
func (m *MemoryStore) SetMessageShown(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.MessageShown = true
		sess.UpdatedAt = time.Now()
	}
	return nil
}

// TouchLastSeen updates the last_seen_at timestamp for a session.
func (m *MemoryStore) TouchLastSeen(_ context.Context, sessionID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		sess.LastSeenAt = lastSeen
		sess.UpdatedAt = time.Now()
	}
	return nil
}

// GetExpiredSessions retrieves sessions idle past the TTL.
func (m *MemoryStore) GetExpiredSessions(_ context.Context, ttl time.Duration) ([]*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	threshold := time.Now().Add(-ttl)
	var expired []*domain.Session
	for _, sess := range m.sessions {
		if sess.LastSeenAt.Before(threshold) {
			expired = append(expired, cloneSession(sess))
		}
	}
	return expired, nil
}

// DeleteSessions removes the given sessions.
func (m *MemoryStore) DeleteSessions(_ context.Context, sessionIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for _, id := range sessionIDs {
		if _, ok := m.sessions[id]; ok {
			delete(m.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

func cloneSession(s *domain.Session) *domain.Session {
	out := *s
	out.Events = cloneEvents(s.Events)
	return &out
}

func cloneEvents(events *domain.EventLog) *domain.EventLog {
	out := domain.NewEventLog(domain.DefaultEventLogCapacity)
	if events == nil {
		return out
	}
	// Round-trip through JSON keeps the copy independent of the caller's log.
	data, err := json.Marshal(events)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, out)
	return out
}
