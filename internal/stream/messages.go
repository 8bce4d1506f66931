package stream

// Inbound signal types sent by the page shim.
const (
	sigPageView         = "page_view"
	sigActivity         = "activity"
	sigAddToCart        = "add_to_cart"
	sigFilterChange     = "filter_change"
	sigSearchSubmit     = "search_submit"
	sigWishlist         = "wishlist"
	sigPointerExitTop   = "pointer_exit_top"
	sigVisibilityHidden = "visibility_hidden"
	sigDrawerState      = "drawer_state"
	sigDismiss          = "dismiss"
	sigUnload           = "unload"
	sigPing             = "ping"
)

// signalMessage is one inbound shim signal. Fields beyond Type are
// signal-specific; unknown signals are ignored.
type signalMessage struct {
	Type        string   `json:"type"`
	URL         string   `json:"url,omitempty"`
	Path        string   `json:"path,omitempty"`
	Referrer    string   `json:"referrer,omitempty"`
	BodyClasses []string `json:"bodyClasses,omitempty"`
	ViaForm     bool     `json:"viaForm,omitempty"`
	Control     string   `json:"control,omitempty"`
	Query       string   `json:"q,omitempty"`
	Visible     bool     `json:"visible,omitempty"`
}

// sessionInitFrame tells the shim which session id to carry on reconnect.
type sessionInitFrame struct {
	Type      string `json:"type"` // "session_init"
	SessionID string `json:"sessionId"`
	Debug     bool   `json:"debug"`
}

// showMessageFrame renders a proactive message on the page.
type showMessageFrame struct {
	Type            string `json:"type"` // "show_message"
	Message         string `json:"message"`
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

type pongFrame struct {
	Type string `json:"type"` // "pong"
}
