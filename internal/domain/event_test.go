package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestEventLogDropsOldestFirst(t *testing.T) {
	t.Parallel()

	log := NewEventLog(5)
	for i := 0; i < 12; i++ {
		log.Append(Event{Type: EventPageView, URL: fmt.Sprintf("/p/%d", i)})
	}

	if log.Len() != 5 {
		t.Fatalf("log length = %d, want 5", log.Len())
	}

	events := log.Events()
	for i, e := range events {
		want := fmt.Sprintf("/p/%d", 7+i)
		if e.URL != want {
			t.Errorf("events[%d].URL = %q, want %q", i, e.URL, want)
		}
	}
}

func TestEventLogNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	log := NewEventLog(DefaultEventLogCapacity)
	for i := 0; i < DefaultEventLogCapacity*3; i++ {
		log.Append(Event{Type: EventFilterChange})
		if log.Len() > log.Capacity() {
			t.Fatalf("length %d exceeds capacity %d after %d appends", log.Len(), log.Capacity(), i+1)
		}
	}
}

func TestEventLogRecent(t *testing.T) {
	t.Parallel()

	log := NewEventLog(10)
	for i := 0; i < 4; i++ {
		log.Append(Event{Type: EventPageView, URL: fmt.Sprintf("/p/%d", i)})
	}

	recent := log.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("recent length = %d, want 2", len(recent))
	}
	if recent[0].URL != "/p/2" || recent[1].URL != "/p/3" {
		t.Errorf("recent = %q, %q; want /p/2, /p/3", recent[0].URL, recent[1].URL)
	}

	if got := log.Recent(100); len(got) != 4 {
		t.Errorf("recent(100) length = %d, want 4", len(got))
	}
}

func TestEventLogJSONRoundTrip(t *testing.T) {
	t.Parallel()

	log := NewEventLog(3)
	log.Append(Event{Type: EventPageView, URL: "/a"})
	log.Append(Event{Type: EventAddToCartClick})
	log.Append(Event{Type: EventPageView, URL: "/b"})
	log.Append(Event{Type: EventPageExit, URL: "/b"})

	data, err := json.Marshal(log)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewEventLog(3)
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	events := restored.Events()
	if len(events) != 3 {
		t.Fatalf("restored length = %d, want 3", len(events))
	}
	if events[0].Type != EventAddToCartClick || events[2].Type != EventPageExit {
		t.Errorf("restored order wrong: %+v", events)
	}
}

func TestSessionRecordEventStampsTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSession("sess-1", "shopper-1", now)
	s.RecordEvent(Event{Type: EventPageView, URL: "/products/shoe"}, now)

	events := s.Events.Events()
	if len(events) != 1 {
		t.Fatalf("events length = %d, want 1", len(events))
	}
	if events[0].Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("timestamp = %q", events[0].Timestamp)
	}
}
