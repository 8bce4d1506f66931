package decision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

func snapshotFixture() domain.Snapshot {
	return domain.Snapshot{
		Reason:      domain.ReasonPdpHesitation,
		CurrentPage: "https://shop.example.com/products/shoe",
		PageType:    domain.PageProduct,
		Cart:        domain.EmptyCart(),
		Events: []domain.Event{
			{Type: domain.EventPageView, Timestamp: "2025-06-01T12:00:00Z", URL: "/products/shoe"},
		},
		LastActivityTs: 1748779200000,
	}
}

func TestRequestParsesDecision(t *testing.T) {
	t.Parallel()

	var gotBody domain.Snapshot
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"showMessage": true, "message": "SAVE10 for 10% off", "reasoning": "idle with cart"}`))
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())
	decision, ok := c.Request(context.Background(), snapshotFixture())

	if !ok {
		t.Fatal("ok = false, want true")
	}
	if !decision.ShowMessage {
		t.Error("ShowMessage = false, want true")
	}
	if decision.Message != "SAVE10 for 10% off" {
		t.Errorf("Message = %q", decision.Message)
	}
	if gotBody.Reason != domain.ReasonPdpHesitation {
		t.Errorf("posted reason = %q", gotBody.Reason)
	}
	if gotBody.PageType != domain.PageProduct {
		t.Errorf("posted pageType = %q", gotBody.PageType)
	}
	if len(gotBody.Events) != 1 {
		t.Errorf("posted events = %d, want 1", len(gotBody.Events))
	}
}

func TestRequestFailuresAreNoDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"teapot", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"showMessage": maybe}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClientWithHTTP(srv.URL, srv.Client())
			decision, ok := c.Request(context.Background(), snapshotFixture())
			if ok {
				t.Error("ok = true, want false")
			}
			if decision.ShowMessage || decision.Message != "" {
				t.Errorf("decision = %+v, want no decision", decision)
			}
		})
	}
}

func TestUnconfiguredClientNeverDispatches(t *testing.T) {
	t.Parallel()

	c := NewClient("")
	if c.Configured() {
		t.Fatal("Configured() = true for empty endpoint")
	}
	decision, ok := c.Request(context.Background(), snapshotFixture())
	if ok || decision.ShowMessage {
		t.Error("unconfigured client produced a decision")
	}
}

func TestBeaconIsAttempted(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got beaconPayload
	received := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		mu.Unlock()
		close(received)
	}))
	defer srv.Close()

	c := NewClientWithHTTP(srv.URL, srv.Client())
	c.Beacon("sess-1", []domain.Event{{Type: domain.EventPageExit, Timestamp: "2025-06-01T12:00:00Z"}})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("beacon was never attempted")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", got.SessionID)
	}
	if len(got.RecentEvents) != 1 || got.RecentEvents[0].Type != domain.EventPageExit {
		t.Errorf("RecentEvents = %+v", got.RecentEvents)
	}
	if got.At == "" {
		t.Error("At timestamp missing")
	}
}

func TestBeaconFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // unreachable on purpose

	c := NewClient(srv.URL)
	done := make(chan struct{})
	go func() {
		c.Beacon("sess-2", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Beacon blocked the caller")
	}
}
