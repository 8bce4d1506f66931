package domain

import (
	"time"
)

// Session is one browsing-session-scoped unit of tracked behavior. It is
// created on the first page load when no prior session is found, resumed on
// later page loads within the same browsing session, and swept once the
// browsing session goes idle past the TTL. The tracker owns it exclusively;
// the decision service only ever sees a read-only Snapshot.
type Session struct {
	ID                  string
	ShopperID           string
	Origin              string
	StartTime           time.Time
	LastSeenAt          time.Time
	AnalysesThisSession int
	MessageShown        bool
	Events              *EventLog
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewSession creates a fresh session with an empty, bounded event log.
func NewSession(id, shopperID string, now time.Time) *Session {
	return &Session{
		ID:         id,
		ShopperID:  shopperID,
		StartTime:  now,
		LastSeenAt: now,
		Events:     NewEventLog(DefaultEventLogCapacity),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RecordEvent stamps the event with the given time and appends it to the
// bounded log, dropping the oldest entry when full.
func (s *Session) RecordEvent(e Event, now time.Time) {
	e.Stamp(now)
	if s.Events == nil {
		s.Events = NewEventLog(DefaultEventLogCapacity)
	}
	s.Events.Append(e)
}

// RecentEvents returns the newest n events, oldest first.
func (s *Session) RecentEvents(n int) []Event {
	if s.Events == nil {
		return nil
	}
	return s.Events.Recent(n)
}

// IdleFor reports how long the session has been idle at the given time.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastSeenAt)
}
