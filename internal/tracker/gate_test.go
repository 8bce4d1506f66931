package tracker

import (
	"testing"
	"time"
)

func TestGateDeniesWithoutEndpoint(t *testing.T) {
	t.Parallel()

	g := NewGate(CooldownPeriod, MaxAnalysesPerSession)
	allowed, deny := g.Allow(time.Now(), 0, false)
	if allowed {
		t.Fatal("allowed without an endpoint")
	}
	if deny != denyNoEndpoint {
		t.Errorf("deny = %q, want %q", deny, denyNoEndpoint)
	}
}

func TestGateSessionCap(t *testing.T) {
	t.Parallel()

	g := NewGate(CooldownPeriod, 3)
	now := time.Now()

	if allowed, _ := g.Allow(now, 2, true); !allowed {
		t.Error("denied below the cap")
	}
	allowed, deny := g.Allow(now, 3, true)
	if allowed {
		t.Fatal("allowed at the cap")
	}
	if deny != denySessionCap {
		t.Errorf("deny = %q, want %q", deny, denySessionCap)
	}
}

func TestGatePendingBlocksUntilCleared(t *testing.T) {
	t.Parallel()

	g := NewGate(time.Millisecond, MaxAnalysesPerSession)
	now := time.Now()

	g.MarkPending(now)
	allowed, deny := g.Allow(now.Add(time.Second), 0, true)
	if allowed {
		t.Fatal("allowed while pending")
	}
	if deny != denyPending {
		t.Errorf("deny = %q, want %q", deny, denyPending)
	}

	g.ClearPending()
	if allowed, _ := g.Allow(now.Add(time.Second), 0, true); !allowed {
		t.Error("denied after pending cleared and cooldown elapsed")
	}
}

func TestGateCooldownFloor(t *testing.T) {
	t.Parallel()

	g := NewGate(30*time.Second, MaxAnalysesPerSession)
	start := time.Now()

	g.MarkPending(start)
	g.ClearPending()

	allowed, deny := g.Allow(start.Add(29*time.Second), 0, true)
	if allowed {
		t.Fatal("allowed inside the cooldown")
	}
	if deny != denyCooldown {
		t.Errorf("deny = %q, want %q", deny, denyCooldown)
	}
	if allowed, _ := g.Allow(start.Add(30*time.Second), 0, true); !allowed {
		t.Error("denied after the cooldown elapsed")
	}
}

func TestGateCooldownCountsFromRequestStart(t *testing.T) {
	t.Parallel()

	// The stamp is taken when the request starts, not when it completes,
	// so a slow request does not stretch the cooldown.
	g := NewGate(30*time.Second, MaxAnalysesPerSession)
	start := time.Now()

	g.MarkPending(start)
	// Request takes 20s to resolve.
	g.ClearPending()

	if allowed, _ := g.Allow(start.Add(31*time.Second), 0, true); !allowed {
		t.Error("cooldown measured from completion instead of start")
	}
}
