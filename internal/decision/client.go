// Package decision calls the external decision service.
package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

// requestTimeout bounds the decision call. The trigger gate holds its
// pending slot until the call resolves; without a hard timeout a hung
// request would block every further trigger for the rest of the session.
const requestTimeout = 30 * time.Second

const beaconTimeout = 5 * time.Second

// Client sends session snapshots to the decision service. All failure
// modes (non-success status, transport error, malformed body) collapse
// uniformly into "no decision": logged, swallowed, never retried.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a decision client for the given endpoint. An empty
// endpoint yields an unconfigured client; the gate checks Configured and
// never dispatches through one.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// NewClientWithHTTP creates a client with a custom HTTP client for tests.
func NewClientWithHTTP(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Client{endpoint: endpoint, client: httpClient}
}

// Configured reports whether a decision endpoint is set.
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// Request sends one snapshot and returns the service's decision. The
// second return is false whenever anything went wrong (unconfigured
// endpoint, transport failure, non-success status, unreadable body) and
// the decision is then the zero "no decision". Callers use the flag for
// bookkeeping only; failures carry no error to handle.
func (c *Client) Request(ctx context.Context, snapshot domain.Snapshot) (domain.Decision, bool) {
	if !c.Configured() {
		return domain.NoDecision(), false
	}

	body, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Could not encode snapshot", "reason", snapshot.Reason, "error", err)
		return domain.NoDecision(), false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Error("Could not build decision request", "error", err)
		return domain.NoDecision(), false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("Decision request failed", "reason", snapshot.Reason, "error", err)
		return domain.NoDecision(), false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Decision service returned non-success status",
			"reason", snapshot.Reason, "status", resp.StatusCode)
		return domain.NoDecision(), false
	}

	var decision domain.Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		slog.Warn("Decision response unreadable",
			"reason", snapshot.Reason, "error", fmt.Errorf("decode decision: %w", err))
		return domain.NoDecision(), false
	}

	slog.Debug("Decision received",
		"reason", snapshot.Reason,
		"show_message", decision.ShowMessage,
		"reasoning", decision.Reasoning)
	return decision, true
}

// beaconPayload is the best-effort final dispatch sent on page unload.
type beaconPayload struct {
	SessionID    string         `json:"sessionId"`
	RecentEvents []domain.Event `json:"recentEvents"`
	At           string         `json:"at"`
}

// Beacon fires the unload payload at the decision endpoint without waiting
// for the result. Delivery is not guaranteed and must never delay the
// caller; the goroutine owns its own timeout and swallows every error.
func (c *Client) Beacon(sessionID string, recentEvents []domain.Event) {
	if !c.Configured() {
		return
	}

	payload := beaconPayload{
		SessionID:    sessionID,
		RecentEvents: recentEvents,
		At:           time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Debug("Could not encode beacon", "session_id", sessionID, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			slog.Debug("Beacon delivery failed", "session_id", sessionID, "error", err)
			return
		}
		_ = resp.Body.Close()
	}()
}
