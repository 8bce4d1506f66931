package stream

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the active connection per session. A tab reconnecting
// (page navigation tears the socket down and the next page dials again)
// replaces the prior connection, which is closed if still live.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*websocket.Conn)}
}

// Register adds the connection for a session, closing any prior one.
func (r *Registry) Register(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.active[sessionID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	r.active[sessionID] = conn
	slog.Info("Stream registered", "session_id", sessionID)
}

// Unregister removes the connection for a session if it is still the
// registered one.
func (r *Registry) Unregister(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.active[sessionID]; ok && current == conn {
		delete(r.active, sessionID)
		slog.Info("Stream unregistered", "session_id", sessionID)
	}
}

// Close tears down the connection for an expired session, if one is
// still live. Used by the TTL sweeper.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.active[sessionID]; ok {
		_ = conn.Close(websocket.StatusNormalClosure, "session expired")
		delete(r.active, sessionID)
		slog.Info("Stream closed by sweeper", "session_id", sessionID)
	}
}

// Active returns the number of live connections.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
