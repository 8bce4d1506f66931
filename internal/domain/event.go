// Package domain contains core domain types for the Engage engine.
package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies a behavioral event recorded in the session log.
type EventType string

const (
	EventPageView             EventType = "page_view"
	EventPageTime             EventType = "page_time"
	EventPageExit             EventType = "page_exit"
	EventAddToCartForm        EventType = "add_to_cart_form"
	EventAddToCartClick       EventType = "add_to_cart_click"
	EventWishlistClick        EventType = "wishlist_click"
	EventFilterChange         EventType = "filter_change"
	EventSearchSubmit         EventType = "search_submit"
	EventCartDrawerOpen       EventType = "cart_drawer_open"
	EventCartDrawerClose      EventType = "cart_drawer_close"
	EventCartConfidenceNudge  EventType = "cart_confidence_nudge"
	EventPdpHesitation        EventType = "pdp_hesitation"
	EventPostAtcIdle          EventType = "post_atc_idle"
	EventCartDrawerInactivity EventType = "cart_drawer_inactivity"
	EventFilterSearchConfuse  EventType = "filter_search_confusion"
	EventExitIntentCart       EventType = "exit_intent_cart"
	EventVisibilityHidden     EventType = "visibility_hidden_with_cart"
	EventMessageShown         EventType = "message_shown"
)

// Event is one entry in the append-only behavioral log. Timestamp is
// stamped at record time in RFC 3339 form. The remaining fields are
// type-specific and omitted when empty.
type Event struct {
	Type          EventType `json:"type"`
	Timestamp     string    `json:"timestamp"`
	PageType      PageType  `json:"pageType,omitempty"`
	URL           string    `json:"url,omitempty"`
	Referrer      string    `json:"referrer,omitempty"`
	DurationMs    int64     `json:"durationMs,omitempty"`
	ItemCount     int       `json:"itemCount,omitempty"`
	Control       string    `json:"control,omitempty"`
	Query         string    `json:"q,omitempty"`
	CountInWindow int       `json:"countInWindow,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// Stamp sets the event timestamp to the given wall-clock time.
func (e *Event) Stamp(now time.Time) {
	e.Timestamp = now.UTC().Format(time.RFC3339)
}

// EventLog is a fixed-capacity ring of events. When full, appending drops
// the oldest entry first. This bounds the payload sent to the decision
// service regardless of session length.
type EventLog struct {
	buf  []Event
	head int // index of oldest entry
	n    int // number of live entries
}

// DefaultEventLogCapacity bounds the session event log.
const DefaultEventLogCapacity = 50

// NewEventLog creates an event log with the given capacity.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultEventLogCapacity
	}
	return &EventLog{buf: make([]Event, capacity)}
}

// Append adds an event, dropping the oldest entry when at capacity.
func (l *EventLog) Append(e Event) {
	if l.n < len(l.buf) {
		l.buf[(l.head+l.n)%len(l.buf)] = e
		l.n++
		return
	}
	l.buf[l.head] = e
	l.head = (l.head + 1) % len(l.buf)
}

// Events returns a copy of the log in occurrence order, oldest first.
func (l *EventLog) Events() []Event {
	out := make([]Event, l.n)
	for i := 0; i < l.n; i++ {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}

// Recent returns the newest n events, oldest first. If n exceeds the log
// length the whole log is returned.
func (l *EventLog) Recent(n int) []Event {
	all := l.Events()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Clone returns an independent copy of the log. Used to hand the log to
// asynchronous persistence without holding the owner's lock.
func (l *EventLog) Clone() *EventLog {
	c := NewEventLog(len(l.buf))
	for _, e := range l.Events() {
		c.Append(e)
	}
	return c
}

// Len returns the number of events currently held.
func (l *EventLog) Len() int { return l.n }

// Capacity returns the maximum number of events the log can hold.
func (l *EventLog) Capacity() int { return len(l.buf) }

// MarshalJSON encodes the log as a plain array, oldest first.
func (l *EventLog) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Events())
}

// UnmarshalJSON restores the log from a plain array, keeping the newest
// entries if the array exceeds capacity.
func (l *EventLog) UnmarshalJSON(data []byte) error {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return err
	}
	if l.buf == nil {
		l.buf = make([]Event, DefaultEventLogCapacity)
	}
	l.head, l.n = 0, 0
	for _, e := range events {
		l.Append(e)
	}
	return nil
}
