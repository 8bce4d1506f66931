// Package stream carries shopper signals over WebSocket: one connection
// per tab, inbound behavioral signals dispatched to the session tracker,
// outbound presentation frames pushed back to the page shim.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/shopnudge/engage/internal/config"
	"github.com/shopnudge/engage/internal/identity"
	"github.com/shopnudge/engage/internal/middleware"
	"github.com/shopnudge/engage/internal/page"
	"github.com/shopnudge/engage/internal/present"
	"github.com/shopnudge/engage/internal/store"
	"github.com/shopnudge/engage/internal/tracker"
)

// Handler upgrades shim connections and runs the per-session signal loop.
type Handler struct {
	repo       store.Repository
	classifier *page.Classifier
	carts      tracker.CartReader
	decisions  tracker.DecisionService
	registry   *Registry
	cfg        *config.Config
}

// NewHandler creates the websocket signal handler.
func NewHandler(repo store.Repository, classifier *page.Classifier,
	carts tracker.CartReader, decisions tracker.DecisionService,
	registry *Registry, cfg *config.Config) *Handler {
	return &Handler{
		repo:       repo,
		classifier: classifier,
		carts:      carts,
		decisions:  decisions,
		registry:   registry,
		cfg:        cfg,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	shopperID := identity.ShopperIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		sessionID = identity.NewSessionID()
	}
	slog.Info("Stream connection request",
		"shopper_id", shopperID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin already checked above against the configured storefronts.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept stream", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close stream", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	origin := r.Header.Get("Origin")
	sess := store.LoadOrCreate(ctx, h.repo, sessionID, shopperID, origin, time.Now())

	sink := newConnSink(ctx, ws)
	presenter := present.New(sink, h.cfg.Modal.BackgroundColor, h.cfg.Modal.TextColor)
	// The storefront cart cookie rides along on the upgrade request in the
	// first-party proxy setup; forwarding it keeps /cart.js scoped to this
	// shopper.
	tr := tracker.New(sess, h.repo, h.classifier, h.carts, h.decisions, presenter, r.Header.Get("Cookie"))
	defer tr.Close()

	h.registry.Register(sessionID, ws)
	defer h.registry.Unregister(sessionID, ws)

	if err := sink.pushSessionInit(sessionID, h.cfg.Debug); err != nil {
		slog.Debug("Failed to send session_init", "error", err, "session_id", sessionID)
		return
	}

	h.readLoop(ctx, ws, tr, sink, sessionID)
	slog.Info("Stream session ended", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDevelopment() {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || middleware.OriginAllowed(origin, h.cfg.AllowedOrigins) {
		return true
	}
	slog.Warn("Stream origin rejected", "origin", origin)
	return false
}

// readLoop consumes shim signals until the connection drops. A tab that
// vanishes without a clean unload still gets its exit recorded and its
// beacon fired.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, tr *tracker.Tracker, sink *connSink, sessionID string) {
	unloaded := false
	defer func() {
		if !unloaded {
			tr.OnUnload()
		}
	}()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Stream closed by client", "session_id", sessionID)
			} else {
				slog.Debug("Stream read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Unreadable signal dropped", "error", err, "session_id", sessionID)
			continue
		}

		switch msg.Type {
		case sigPageView:
			tr.OnPageView(msg.URL, msg.Path, msg.Referrer, msg.BodyClasses)
		case sigActivity:
			tr.OnActivity()
		case sigAddToCart:
			tr.OnAddToCart(msg.ViaForm)
		case sigFilterChange:
			tr.OnFilterChange(msg.Control)
		case sigSearchSubmit:
			tr.OnSearchSubmit(msg.Query)
		case sigWishlist:
			tr.OnWishlist()
		case sigPointerExitTop:
			tr.OnPointerExitTop()
		case sigVisibilityHidden:
			tr.OnVisibilityHidden()
		case sigDrawerState:
			tr.OnDrawerEvaluated(msg.Visible)
		case sigDismiss:
			tr.OnDismiss()
		case sigUnload:
			unloaded = true
			tr.OnUnload()
			return
		case sigPing:
			if err := sink.pushPong(); err != nil {
				slog.Debug("Failed to send pong", "error", err, "session_id", sessionID)
			}
		default:
			slog.Debug("Unknown signal dropped", "type", msg.Type, "session_id", sessionID)
		}
	}
}
