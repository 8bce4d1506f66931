// Package present manages the proactive message surface for one session.
package present

import (
	"log/slog"
	"sync"
)

// Sink delivers presentation frames to the shopper's page.
type Sink interface {
	// PushShowMessage renders the message with the given modal colors.
	PushShowMessage(message, backgroundColor, textColor string) error
}

// Presenter shows at most one message at a time. A Show while a message
// is visible is a no-op; Dismiss clears visibility so a later decision can
// surface again. Dismissal has no effect on request gating.
type Presenter struct {
	mu      sync.Mutex
	sink    Sink
	bg      string
	text    string
	visible bool
}

// New creates a presenter pushing frames to the given sink with the
// configured modal colors.
func New(sink Sink, backgroundColor, textColor string) *Presenter {
	return &Presenter{sink: sink, bg: backgroundColor, text: textColor}
}

// Show surfaces the message and reports whether the shopper actually got
// it. It returns false while a previous message is still visible, and on
// delivery failure, so the caller only records message_shown for messages
// that made it to the page.
func (p *Presenter) Show(message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.visible {
		slog.Debug("Message suppressed, one already visible")
		return false
	}
	if err := p.sink.PushShowMessage(message, p.bg, p.text); err != nil {
		slog.Warn("Could not deliver message frame", "error", err)
		return false
	}
	p.visible = true
	return true
}

// Dismiss clears the visible message. Close button, escape key, and
// backdrop click all arrive here as the same signal.
func (p *Presenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible = false
}

// Visible reports whether a message is currently on screen.
func (p *Presenter) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}
