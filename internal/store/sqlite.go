package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopnudge/engage/internal/domain"
	"github.com/shopnudge/engage/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		shopper_id TEXT NOT NULL,
		origin TEXT,
		start_time INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		analyses_count INTEGER NOT NULL DEFAULT 0,
		message_shown INTEGER NOT NULL DEFAULT 0,
		events_json TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves a session by id.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT session_id, shopper_id, origin, start_time, last_seen_at,
		       analyses_count, message_shown, events_json, created_at, updated_at
		FROM sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var origin sql.NullString
	var eventsJSON string
	var startTime, lastSeen, createdAt, updatedAt int64

	err := row.Scan(
		&sess.ID, &sess.ShopperID, &origin, &startTime, &lastSeen,
		&sess.AnalysesThisSession, &sess.MessageShown, &eventsJSON,
		&createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Origin = origin.String
	sess.StartTime = time.Unix(startTime, 0)
	sess.LastSeenAt = time.Unix(lastSeen, 0)
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	sess.Events = domain.NewEventLog(domain.DefaultEventLogCapacity)
	if eventsJSON != "" {
		if err := json.Unmarshal([]byte(eventsJSON), sess.Events); err != nil {
			// A corrupt log is not worth losing the session over.
			slog.Warn("Discarding unreadable event log", "session_id", sess.ID, "error", err)
			sess.Events = domain.NewEventLog(domain.DefaultEventLogCapacity)
		}
	}

	return &sess, nil
}

// UpsertSession creates or updates a session record.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *domain.Session) error {
	eventsJSON, err := marshalEvents(session.Events)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO sessions (
		session_id, shopper_id, origin, start_time, last_seen_at,
		analyses_count, message_shown, events_json, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		shopper_id = excluded.shopper_id,
		origin = excluded.origin,
		last_seen_at = excluded.last_seen_at,
		analyses_count = excluded.analyses_count,
		message_shown = excluded.message_shown,
		events_json = excluded.events_json,
		updated_at = excluded.updated_at`

	var origin interface{}
	if session.Origin != "" {
		origin = session.Origin
	}

	return s.execRetry(ctx, query,
		session.ID, session.ShopperID, origin,
		session.StartTime.Unix(), session.LastSeenAt.Unix(),
		session.AnalysesThisSession, session.MessageShown, eventsJSON,
		session.CreatedAt.Unix(), time.Now().Unix(),
	)
}

// UpdateEvents persists the serialized event log.
func (s *SQLiteStore) UpdateEvents(ctx context.Context, sessionID string, events *domain.EventLog) error {
	eventsJSON, err := marshalEvents(events)
	if err != nil {
		return err
	}
	query := `UPDATE sessions SET events_json = ?, updated_at = ? WHERE session_id = ?`
	return s.execRetry(ctx, query, eventsJSON, time.Now().Unix(), sessionID)
}

// UpdateAnalysesCount persists the per-session analysis counter.
func (s *SQLiteStore) UpdateAnalysesCount(ctx context.Context, sessionID string, count int) error {
	query := `UPDATE sessions SET analyses_count = ?, updated_at = ? WHERE session_id = ?`
	return s.execRetry(ctx, query, count, time.Now().Unix(), sessionID)
}

// SetMessageShown marks that a proactive message was shown.
func (s *SQLiteStore) SetMessageShown(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET message_shown = 1, updated_at = ? WHERE session_id = ?`
	return s.execRetry(ctx, query, time.Now().Unix(), sessionID)
}

// TouchLastSeen updates the last_seen_at timestamp for a session.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, sessionID string, lastSeen time.Time) error {
	query := `UPDATE sessions SET last_seen_at = ?, updated_at = ? WHERE session_id = ?`
	return s.execRetry(ctx, query, lastSeen.Unix(), time.Now().Unix(), sessionID)
}

// GetExpiredSessions retrieves sessions idle past the TTL.
func (s *SQLiteStore) GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]*domain.Session, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT session_id, shopper_id, origin, start_time, last_seen_at,
		       analyses_count, message_shown, events_json, created_at, updated_at
		FROM sessions WHERE last_seen_at < ?`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired sessions rows", "error", closeErr)
		}
	}()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSessions removes the given sessions.
func (s *SQLiteStore) DeleteSessions(ctx context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(sessionIDs))
	placeholders = placeholders[:len(placeholders)-1]
	query := `DELETE FROM sessions WHERE session_id IN (` + placeholders + `)`

	args := make([]interface{}, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// execRetry runs a write statement, retrying SQLITE_BUSY conflicts with
// exponential backoff (100ms, 200ms, 400ms).
func (s *SQLiteStore) execRetry(ctx context.Context, query string, args ...interface{}) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, args...)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteBusy(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("SQLite write busy, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("exec session statement: %w", err)
}

func marshalEvents(events *domain.EventLog) (string, error) {
	if events == nil {
		return "[]", nil
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}
