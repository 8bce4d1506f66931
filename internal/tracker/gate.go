package tracker

import (
	"time"
)

// Gate deny reasons, logged when a trigger is dropped.
const (
	denyNoEndpoint = "no_endpoint"
	denySessionCap = "session_cap_reached"
	denyPending    = "request_pending"
	denyCooldown   = "cooldown"
)

// Gate is the admission-control policy bounding decision requests. It is
// hard and non-queuing: a denied trigger is dropped, never buffered or
// retried. The caller serializes access; the gate itself holds no lock.
type Gate struct {
	cooldown      time.Duration
	maxPerSession int

	pending       bool
	lastRequestAt time.Time
}

// NewGate creates a gate with the given cooldown floor and session cap.
func NewGate(cooldown time.Duration, maxPerSession int) *Gate {
	return &Gate{cooldown: cooldown, maxPerSession: maxPerSession}
}

// Allow reports whether a trigger may initiate a decision request now.
// Denials: endpoint unconfigured, session cap reached, a request already
// pending, or the cooldown floor since the last request start not yet
// elapsed.
func (g *Gate) Allow(now time.Time, analysesThisSession int, endpointConfigured bool) (bool, string) {
	if !endpointConfigured {
		return false, denyNoEndpoint
	}
	if analysesThisSession >= g.maxPerSession {
		return false, denySessionCap
	}
	if g.pending {
		return false, denyPending
	}
	if !g.lastRequestAt.IsZero() && now.Sub(g.lastRequestAt) < g.cooldown {
		return false, denyCooldown
	}
	return true, ""
}

// MarkPending claims the single in-flight slot and stamps the request
// start time. Must be called before the request is dispatched so the flag
// is visible across the suspension point.
func (g *Gate) MarkPending(now time.Time) {
	g.pending = true
	g.lastRequestAt = now
}

// ClearPending releases the in-flight slot. Called from the completion
// path of every dispatch, success and failure alike.
func (g *Gate) ClearPending() {
	g.pending = false
}

// Pending reports whether a request is in flight.
func (g *Gate) Pending() bool {
	return g.pending
}
