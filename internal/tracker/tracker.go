// Package tracker implements the per-session behavioral engine: it
// consumes shopper signals, maintains the bounded event log, runs the
// timer- and window-based detectors, and pushes admitted triggers through
// the decision gate.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopnudge/engage/internal/domain"
	"github.com/shopnudge/engage/internal/page"
	"github.com/shopnudge/engage/internal/store"
)

// Detector thresholds. Changing one changes when shoppers get nudged, so
// they live here rather than in config.
const (
	// HesitationDelay is how long a shopper may linger on a product page
	// without adding to cart before the hesitation detector fires.
	HesitationDelay = 60 * time.Second

	// PostAtcDelay is the idle period after an add-to-cart that raises the
	// post-ATC detector. The timer fires slightly late and re-checks the
	// last-activity stamp, so activity during the window always wins.
	PostAtcDelay = 60 * time.Second
	postAtcSlack = 50 * time.Millisecond

	// CartInactivityDelay is how long the cart drawer may sit open without
	// interaction before the inactivity detector fires.
	CartInactivityDelay = 60 * time.Second

	// ConfusionLookback and ConfusionMinActions parameterize the
	// filter/search confusion window: this many refinement actions within
	// the trailing lookback raise the detector.
	ConfusionLookback   = 25 * time.Second
	ConfusionMinActions = 5

	// CooldownPeriod is the floor between decision request starts.
	CooldownPeriod = 30 * time.Second

	// MaxAnalysesPerSession caps successful decision requests per session.
	MaxAnalysesPerSession = 6
)

// Cart-size floors for the cart-gated detectors.
const (
	exitIntentMinItems = 1
	hiddenMinItems     = 2
	highValueMinItems  = 3
)

// touchInterval throttles last-seen persistence under activity bursts.
const touchInterval = 10 * time.Second

// persistTimeout bounds each asynchronous store write.
const persistTimeout = 5 * time.Second

// CartReader fetches the live cart for a storefront origin.
type CartReader interface {
	Fetch(ctx context.Context, origin, cookie string) domain.CartSnapshot
}

// DecisionService is the tracker's view of the decision client.
type DecisionService interface {
	Configured() bool
	Request(ctx context.Context, snapshot domain.Snapshot) (domain.Decision, bool)
	Beacon(sessionID string, recentEvents []domain.Event)
}

// Presenter displays proactive messages to the shopper. Show reports
// whether the message was actually surfaced; it returns false while a
// previous message is still visible.
type Presenter interface {
	Show(message string) bool
	Dismiss()
}

// Tracker is the engine for one live session. All signal entry points and
// timer firings serialize on its mutex; cart fetches and decision requests
// run outside it.
type Tracker struct {
	mu sync.Mutex

	sess       *domain.Session
	repo       store.Repository
	classifier *page.Classifier
	carts      CartReader
	decisions  DecisionService
	presenter  Presenter
	sched      Scheduler
	gate       *Gate

	cookie string

	currentURL    string
	pageType      domain.PageType
	pageViewStart time.Time
	lastActivity  time.Time
	lastTouch     time.Time

	drawer    DrawerMachine
	confusion *confusionWindow

	now func() time.Time
	wg  sync.WaitGroup
}

// New creates a tracker for the given session. The cookie is forwarded on
// cart fetches so the storefront returns this shopper's cart.
func New(sess *domain.Session, repo store.Repository, classifier *page.Classifier,
	carts CartReader, decisions DecisionService, presenter Presenter, cookie string) *Tracker {
	return &Tracker{
		sess:       sess,
		repo:       repo,
		classifier: classifier,
		carts:      carts,
		decisions:  decisions,
		presenter:  presenter,
		sched:      NewScheduler(),
		gate:       NewGate(CooldownPeriod, MaxAnalysesPerSession),
		cookie:     cookie,
		confusion:  newConfusionWindow(ConfusionLookback, ConfusionMinActions),
		now:        time.Now,
	}
}

// SessionID returns the id of the session this tracker drives.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess.ID
}

// Close stops the detector timers and waits for in-flight dispatches and
// store writes to finish.
func (t *Tracker) Close() {
	t.sched.Stop()
	t.wg.Wait()
}

// OnPageView handles a navigation. It closes out the previous page with a
// page_time entry, records the new page_view, re-arms the hesitation timer
// for product pages, and runs the high-value check on cart pages.
func (t *Tracker) OnPageView(url, path, referrer string, bodyClasses []string) {
	t.mu.Lock()
	now := t.now()

	if t.currentURL != "" {
		t.recordLocked(domain.Event{
			Type:       domain.EventPageTime,
			PageType:   t.pageType,
			URL:        t.currentURL,
			DurationMs: now.Sub(t.pageViewStart).Milliseconds(),
		}, now)
	}

	pageType := t.classifier.Classify(path, bodyClasses)
	t.currentURL = url
	t.pageType = pageType
	t.pageViewStart = now
	t.lastActivity = now

	t.recordLocked(domain.Event{
		Type:     domain.EventPageView,
		PageType: pageType,
		URL:      url,
		Referrer: referrer,
	}, now)
	t.touchLocked(now)

	if pageType == domain.PageProduct {
		t.sched.Schedule(KindHesitation, HesitationDelay, t.fireHesitation)
	} else {
		t.sched.Cancel(KindHesitation)
	}

	origin, cookie := t.sess.Origin, t.cookie
	t.mu.Unlock()

	if pageType == domain.PageCart {
		t.checkHighValue(origin, cookie, true)
	}
}

// OnActivity handles a generic interaction: scroll, click, key press. It
// refreshes the activity stamp and, while the drawer is open, restarts the
// inactivity timer.
func (t *Tracker) OnActivity() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.lastActivity = now
	t.touchLocked(now)

	if t.drawer.Open() {
		t.sched.Schedule(KindCartInactivity, CartInactivityDelay, t.fireCartInactivity)
	}
}

// OnAddToCart handles an add-to-cart submission or click. It resolves the
// hesitation timer and arms the post-ATC idle detector.
func (t *Tracker) OnAddToCart(viaForm bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	eventType := domain.EventAddToCartClick
	if viaForm {
		eventType = domain.EventAddToCartForm
	}
	t.recordLocked(domain.Event{Type: eventType, URL: t.currentURL}, now)
	t.lastActivity = now
	t.touchLocked(now)

	t.sched.Cancel(KindHesitation)
	t.sched.Schedule(KindPostAtc, PostAtcDelay+postAtcSlack, t.firePostAtc)
}

// OnFilterChange handles a collection filter refinement.
func (t *Tracker) OnFilterChange(control string) {
	t.refinement(domain.Event{Type: domain.EventFilterChange, Control: control})
}

// OnSearchSubmit handles a search submission.
func (t *Tracker) OnSearchSubmit(query string) {
	t.refinement(domain.Event{Type: domain.EventSearchSubmit, Query: query})
}

// refinement records one filter/search action and feeds the confusion
// window. Reaching the threshold records the confusion event with the
// window count and raises the trigger.
func (t *Tracker) refinement(e domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.recordLocked(e, now)
	t.lastActivity = now
	t.touchLocked(now)

	count, fired := t.confusion.Record(now)
	if !fired {
		return
	}
	t.recordLocked(domain.Event{
		Type:          domain.EventFilterSearchConfuse,
		CountInWindow: count,
	}, now)
	t.triggerLocked(domain.ReasonFilterConfusion, now)
}

// OnWishlist handles a wishlist/save-for-later click.
func (t *Tracker) OnWishlist() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.recordLocked(domain.Event{Type: domain.EventWishlistClick, URL: t.currentURL}, now)
	t.lastActivity = now
	t.touchLocked(now)
}

// OnPointerExitTop handles the pointer leaving the viewport through the
// top edge. With at least one item in the cart it raises the exit-intent
// trigger.
func (t *Tracker) OnPointerExitTop() {
	t.cartGated(exitIntentMinItems, domain.EventExitIntentCart, domain.ReasonExitIntentCart)
}

// OnVisibilityHidden handles the page becoming hidden. With at least two
// items in the cart it raises the abandonment trigger.
func (t *Tracker) OnVisibilityHidden() {
	t.cartGated(hiddenMinItems, domain.EventVisibilityHidden, domain.ReasonVisibilityHidden)
}

// cartGated fetches the live cart and, at or above the item floor, records
// the event and raises the trigger. An empty or unreachable cart endpoint
// reads as zero items and suppresses the detector.
func (t *Tracker) cartGated(minItems int, eventType domain.EventType, reason domain.Reason) {
	t.mu.Lock()
	origin, cookie := t.sess.Origin, t.cookie
	t.mu.Unlock()

	snapshot := t.carts.Fetch(context.Background(), origin, cookie)
	if snapshot.ItemCount < minItems {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.recordLocked(domain.Event{Type: eventType, ItemCount: snapshot.ItemCount}, now)
	t.triggerLocked(reason, now)
}

// OnDrawerEvaluated feeds one evaluated cart-drawer visibility reading into
// the state machine. Only actual transitions produce events; repeated
// readings of the same state are ignored, so open and close strictly
// alternate.
func (t *Tracker) OnDrawerEvaluated(visible bool) {
	t.mu.Lock()
	transition := t.drawer.Apply(visible)
	now := t.now()

	switch transition {
	case DrawerClosed:
		t.sched.Cancel(KindCartInactivity)
		t.recordLocked(domain.Event{Type: domain.EventCartDrawerClose}, now)
		t.mu.Unlock()
		return
	case DrawerNone:
		t.mu.Unlock()
		return
	}

	origin, cookie := t.sess.Origin, t.cookie
	t.mu.Unlock()

	snapshot := t.carts.Fetch(context.Background(), origin, cookie)

	t.mu.Lock()
	defer t.mu.Unlock()
	now = t.now()
	t.recordLocked(domain.Event{
		Type:      domain.EventCartDrawerOpen,
		ItemCount: snapshot.ItemCount,
	}, now)
	t.sched.Schedule(KindCartInactivity, CartInactivityDelay, t.fireCartInactivity)

	if snapshot.ItemCount >= highValueMinItems {
		t.triggerLocked(domain.ReasonHighValueCart, now)
	}
}

// OnDismiss handles the shopper dismissing the message. Gating is
// unaffected: a dismissed message still counts against the session cap.
func (t *Tracker) OnDismiss() {
	t.presenter.Dismiss()
}

// OnUnload handles the page being torn down. It records the final
// page_exit entry and hands the bounded log to the best-effort beacon.
func (t *Tracker) OnUnload() {
	t.mu.Lock()
	now := t.now()
	t.recordLocked(domain.Event{
		Type:       domain.EventPageExit,
		PageType:   t.pageType,
		URL:        t.currentURL,
		DurationMs: now.Sub(t.pageViewStart).Milliseconds(),
	}, now)
	sessionID := t.sess.ID
	events := t.sess.Events.Events()
	t.mu.Unlock()

	t.decisions.Beacon(sessionID, events)
}

// fireHesitation runs when the product-page hesitation timer survives its
// full delay. The scheduler guarantees navigation or add-to-cart in the
// meantime invalidated it.
func (t *Tracker) fireHesitation() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pageType != domain.PageProduct {
		return
	}
	now := t.now()
	t.recordLocked(domain.Event{Type: domain.EventPdpHesitation, URL: t.currentURL}, now)
	t.triggerLocked(domain.ReasonPdpHesitation, now)
}

// firePostAtc runs slightly after the post-ATC delay and re-checks the
// activity stamp, so interaction inside the window wins even if the timer
// was never re-armed.
func (t *Tracker) firePostAtc() {
	t.mu.Lock()
	now := t.now()
	if now.Sub(t.lastActivity) < PostAtcDelay {
		t.mu.Unlock()
		return
	}
	origin, cookie := t.sess.Origin, t.cookie
	t.mu.Unlock()

	snapshot := t.carts.Fetch(context.Background(), origin, cookie)
	if snapshot.ItemCount < 1 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now = t.now()
	t.recordLocked(domain.Event{Type: domain.EventPostAtcIdle, ItemCount: snapshot.ItemCount}, now)
	t.triggerLocked(domain.ReasonPostAtcIdle, now)
}

// fireCartInactivity runs when the open drawer sits untouched for the full
// delay. It re-checks that the drawer is still open and the cart is
// non-empty before raising.
func (t *Tracker) fireCartInactivity() {
	t.mu.Lock()
	if !t.drawer.Open() {
		t.mu.Unlock()
		return
	}
	origin, cookie := t.sess.Origin, t.cookie
	t.mu.Unlock()

	snapshot := t.carts.Fetch(context.Background(), origin, cookie)
	if snapshot.ItemCount == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.drawer.Open() {
		return
	}
	now := t.now()
	t.recordLocked(domain.Event{Type: domain.EventCartDrawerInactivity, ItemCount: snapshot.ItemCount}, now)
	t.triggerLocked(domain.ReasonCartInactivity, now)
}

// checkHighValue fetches the cart and raises the high-value confidence
// trigger at or above the item floor. On cart pages it also records the
// nudge event.
func (t *Tracker) checkHighValue(origin, cookie string, onCartPage bool) {
	snapshot := t.carts.Fetch(context.Background(), origin, cookie)
	if snapshot.ItemCount < highValueMinItems {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if onCartPage {
		t.recordLocked(domain.Event{
			Type:      domain.EventCartConfidenceNudge,
			ItemCount: snapshot.ItemCount,
		}, now)
	}
	t.triggerLocked(domain.ReasonHighValueCart, now)
}

// triggerLocked runs the admission gate for one detected trigger and, on
// admission, dispatches the decision request asynchronously. Denied
// triggers are dropped outright; the detector event is already in the log.
// Caller holds t.mu.
func (t *Tracker) triggerLocked(reason domain.Reason, now time.Time) {
	allowed, deny := t.gate.Allow(now, t.sess.AnalysesThisSession, t.decisions.Configured())
	if !allowed {
		slog.Debug("Trigger dropped",
			"session_id", t.sess.ID, "reason", reason, "denied", deny)
		return
	}
	t.gate.MarkPending(now)

	origin, cookie := t.sess.Origin, t.cookie
	t.wg.Add(1)
	go t.dispatch(reason, origin, cookie)
}

// dispatch fetches a fresh cart, snapshots the session, and asks the
// decision service. The pending slot is released on every completion path;
// only a successful round trip counts against the session cap.
func (t *Tracker) dispatch(reason domain.Reason, origin, cookie string) {
	defer t.wg.Done()

	cart := t.carts.Fetch(context.Background(), origin, cookie)

	t.mu.Lock()
	snapshot := domain.Snapshot{
		Reason:         reason,
		CurrentPage:    t.currentURL,
		PageType:       t.pageType,
		Cart:           cart,
		Events:         t.sess.Events.Events(),
		LastActivityTs: t.lastActivity.UnixMilli(),
	}
	t.mu.Unlock()

	decision, ok := t.decisions.Request(context.Background(), snapshot)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate.ClearPending()

	if ok {
		t.sess.AnalysesThisSession++
		t.persistAnalysesLocked()
	}
	if !ok || !decision.ShowMessage || decision.Message == "" {
		return
	}
	if !t.presenter.Show(decision.Message) {
		return
	}

	now := t.now()
	t.sess.MessageShown = true
	t.recordLocked(domain.Event{Type: domain.EventMessageShown, Message: decision.Message}, now)
	t.persistMessageShownLocked()
}

// recordLocked appends one event to the session log and schedules its
// persistence. Caller holds t.mu.
func (t *Tracker) recordLocked(e domain.Event, now time.Time) {
	t.sess.RecordEvent(e, now)
	t.sess.UpdatedAt = now

	sessionID := t.sess.ID
	events := t.sess.Events.Clone()
	t.persist(func(ctx context.Context) error {
		return t.repo.UpdateEvents(ctx, sessionID, events)
	}, "events")
}

// touchLocked persists the last-seen stamp, throttled so activity bursts
// do not turn into write storms. Caller holds t.mu.
func (t *Tracker) touchLocked(now time.Time) {
	t.sess.LastSeenAt = now
	if now.Sub(t.lastTouch) < touchInterval {
		return
	}
	t.lastTouch = now

	sessionID := t.sess.ID
	t.persist(func(ctx context.Context) error {
		return t.repo.TouchLastSeen(ctx, sessionID, now)
	}, "last_seen")
}

func (t *Tracker) persistAnalysesLocked() {
	sessionID, count := t.sess.ID, t.sess.AnalysesThisSession
	t.persist(func(ctx context.Context) error {
		return t.repo.UpdateAnalysesCount(ctx, sessionID, count)
	}, "analyses_count")
}

func (t *Tracker) persistMessageShownLocked() {
	sessionID := t.sess.ID
	t.persist(func(ctx context.Context) error {
		return t.repo.SetMessageShown(ctx, sessionID)
	}, "message_shown")
}

// persist runs one store write in the background with its own deadline.
// Persistence failures are logged and dropped; tracking never stalls on
// the store.
func (t *Tracker) persist(write func(context.Context) error, what string) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			slog.Warn("Session persistence failed", "field", what, "error", err)
		}
	}()
}
