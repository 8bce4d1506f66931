// Package cart reads the storefront cart endpoint on demand.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopnudge/engage/internal/domain"
)

const fetchTimeout = 5 * time.Second

// Fetcher reads the current cart from the storefront's /cart.js endpoint.
// Snapshots are never cached: cart contents can change from storefront UI
// outside the tracker's control, so every caller gets a fresh read.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a cart fetcher with a bounded request timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: fetchTimeout}}
}

// NewFetcherWithClient creates a fetcher using the given client. Tests use
// this to point at an httptest server.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Fetcher{client: client}
}

// cartPayload is the storefront's wire format.
type cartPayload struct {
	ItemCount  int               `json:"item_count"`
	Items      []domain.CartLine `json:"items"`
	TotalPrice float64           `json:"total_price"`
}

// Fetch reads the cart for the session's storefront origin, passing the
// shopper's cookie so the storefront resolves the right cart. Any failure
// (transport, status, or parse) returns an empty cart and no error:
// cart-gated detectors must stay quiet rather than fire on bad data.
func (f *Fetcher) Fetch(ctx context.Context, origin, cookie string) domain.CartSnapshot {
	url := strings.TrimRight(origin, "/") + "/cart.js"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("Could not build cart request", "origin", origin, "error", err)
		return domain.EmptyCart()
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		slog.Warn("Could not fetch cart data", "origin", origin, "error", err)
		return domain.EmptyCart()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("Cart endpoint returned non-success status", "origin", origin, "status", resp.StatusCode)
		return domain.EmptyCart()
	}

	var payload cartPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("Could not parse cart response", "origin", origin, "error", fmt.Errorf("decode cart: %w", err))
		return domain.EmptyCart()
	}

	snapshot := domain.CartSnapshot{
		ItemCount:  payload.ItemCount,
		Items:      payload.Items,
		TotalPrice: payload.TotalPrice,
	}
	if snapshot.Items == nil {
		snapshot.Items = []domain.CartLine{}
	}
	return snapshot
}
