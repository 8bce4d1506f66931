// Package identity provides anonymous shopper identity primitives.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ShopperCookieName = "engage_shopper_id"
	SessionHeaderName = "X-Engage-Session-ID"
	SessionQueryParam = "session_id"
	shopperCookieAge  = 365 * 24 * time.Hour
)

type contextKey int

const (
	shopperIDKey contextKey = iota
	sessionIDKey
)

// Session ids are opaque strings minted by the shim, one per tab.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ShopperIDFromContext extracts the long-lived shopper id from the
// request context.
func ShopperIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(shopperIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the per-tab session id from the request
// context. Empty means the shim did not send one and a fresh session must
// be minted.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// NewSessionID mints a session id for a tab that arrived without one.
func NewSessionID() string {
	return uuid.NewString()
}

func isValidShopperID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return ""
	}
	return id
}

func getOrCreateShopperID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	id := ""
	if c, err := r.Cookie(ShopperCookieName); err == nil && isValidShopperID(c.Value) {
		id = c.Value
	} else {
		id = uuid.NewString()
	}

	// Re-set on every request to slide the expiry.
	http.SetCookie(w, &http.Cookie{
		Name:     ShopperCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(shopperCookieAge.Seconds()),
		Expires:  time.Now().Add(shopperCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		Secure:   !isDev,
	})
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get(SessionQueryParam)
	}
	return sanitizeSessionID(sid)
}

// Middleware injects the shopper cookie identity and the per-tab session
// id into the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shopperID := getOrCreateShopperID(w, r, isDev)
			sessionID := sessionIDFromRequest(r)

			ctx := context.WithValue(r.Context(), shopperIDKey, shopperID)
			ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
