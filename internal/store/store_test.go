package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

func openStores(t *testing.T) map[string]Repository {
	t.Helper()

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "engage.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Repository{
		"sqlite": sqlite,
		"memory": NewMemory(),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	for name, repo := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			sess := domain.NewSession("sess-1", "shopper-1", now)
			sess.Origin = "https://shop.example.com"
			sess.RecordEvent(domain.Event{Type: domain.EventPageView, URL: "/products/shoe"}, now)
			sess.AnalysesThisSession = 2

			if err := repo.UpsertSession(ctx, sess); err != nil {
				t.Fatalf("UpsertSession failed: %v", err)
			}

			got, err := repo.GetSession(ctx, "sess-1")
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if got == nil {
				t.Fatal("expected session, got nil")
			}
			if got.ShopperID != "shopper-1" {
				t.Errorf("ShopperID = %q", got.ShopperID)
			}
			if got.Origin != "https://shop.example.com" {
				t.Errorf("Origin = %q", got.Origin)
			}
			if got.AnalysesThisSession != 2 {
				t.Errorf("AnalysesThisSession = %d, want 2", got.AnalysesThisSession)
			}
			if got.Events.Len() != 1 {
				t.Fatalf("Events.Len() = %d, want 1", got.Events.Len())
			}
			if got.Events.Events()[0].URL != "/products/shoe" {
				t.Errorf("event URL = %q", got.Events.Events()[0].URL)
			}
		})
	}
}

func TestGetSessionMissingReturnsNil(t *testing.T) {
	ctx := context.Background()

	for name, repo := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := repo.GetSession(ctx, "nope")
			if err != nil {
				t.Fatalf("GetSession failed: %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil session, got %+v", got)
			}
		})
	}
}

func TestCountersAndFlags(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	for name, repo := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			sess := domain.NewSession("sess-2", "shopper-2", now)
			if err := repo.UpsertSession(ctx, sess); err != nil {
				t.Fatalf("UpsertSession failed: %v", err)
			}

			if err := repo.UpdateAnalysesCount(ctx, "sess-2", 5); err != nil {
				t.Fatalf("UpdateAnalysesCount failed: %v", err)
			}
			if err := repo.SetMessageShown(ctx, "sess-2"); err != nil {
				t.Fatalf("SetMessageShown failed: %v", err)
			}

			log := domain.NewEventLog(10)
			log.Append(domain.Event{Type: domain.EventFilterChange, Control: "sort"})
			if err := repo.UpdateEvents(ctx, "sess-2", log); err != nil {
				t.Fatalf("UpdateEvents failed: %v", err)
			}

			got, err := repo.GetSession(ctx, "sess-2")
			if err != nil || got == nil {
				t.Fatalf("GetSession: %v, %v", got, err)
			}
			if got.AnalysesThisSession != 5 {
				t.Errorf("AnalysesThisSession = %d, want 5", got.AnalysesThisSession)
			}
			if !got.MessageShown {
				t.Error("MessageShown = false, want true")
			}
			if got.Events.Len() != 1 || got.Events.Events()[0].Control != "sort" {
				t.Errorf("events not persisted: %+v", got.Events.Events())
			}
		})
	}
}

func TestExpiredSessionsSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	for name, repo := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			stale := domain.NewSession("stale", "shopper-3", now.Add(-2*time.Hour))
			stale.LastSeenAt = now.Add(-2 * time.Hour)
			fresh := domain.NewSession("fresh", "shopper-4", now)

			for _, sess := range []*domain.Session{stale, fresh} {
				if err := repo.UpsertSession(ctx, sess); err != nil {
					t.Fatalf("UpsertSession failed: %v", err)
				}
			}

			expired, err := repo.GetExpiredSessions(ctx, time.Hour)
			if err != nil {
				t.Fatalf("GetExpiredSessions failed: %v", err)
			}
			if len(expired) != 1 || expired[0].ID != "stale" {
				t.Fatalf("expired = %+v, want just stale", expired)
			}

			deleted, err := repo.DeleteSessions(ctx, []string{"stale"})
			if err != nil {
				t.Fatalf("DeleteSessions failed: %v", err)
			}
			if deleted != 1 {
				t.Errorf("deleted = %d, want 1", deleted)
			}
			if got, _ := repo.GetSession(ctx, "stale"); got != nil {
				t.Error("stale session still present after delete")
			}
			if got, _ := repo.GetSession(ctx, "fresh"); got == nil {
				t.Error("fresh session lost")
			}
		})
	}
}

func TestLoadOrCreateNeverFails(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewMemory()

	created := LoadOrCreate(ctx, repo, "sess-9", "shopper-9", "https://shop.example.com", now)
	if created == nil || created.ID != "sess-9" {
		t.Fatalf("created = %+v", created)
	}

	created.RecordEvent(domain.Event{Type: domain.EventPageView, URL: "/"}, now)
	if err := repo.UpdateEvents(ctx, "sess-9", created.Events); err != nil {
		t.Fatalf("UpdateEvents failed: %v", err)
	}

	resumed := LoadOrCreate(ctx, repo, "sess-9", "shopper-9", "https://shop.example.com", now.Add(time.Minute))
	if resumed.Events.Len() != 1 {
		t.Fatalf("resumed events = %d, want 1 (session was recreated, not resumed)", resumed.Events.Len())
	}
	if !resumed.LastSeenAt.Equal(now.Add(time.Minute)) {
		t.Errorf("LastSeenAt not refreshed on resume")
	}
}
