package domain

// Reason tags a detected trigger with the condition that raised it.
type Reason string

const (
	ReasonPdpHesitation    Reason = "pdp_hesitation"
	ReasonPostAtcIdle      Reason = "post_atc_idle"
	ReasonCartInactivity   Reason = "cart_drawer_inactivity"
	ReasonFilterConfusion  Reason = "filter_search_confusion"
	ReasonHighValueCart    Reason = "high_value_cart_confidence"
	ReasonExitIntentCart   Reason = "exit_intent_cart"
	ReasonVisibilityHidden Reason = "visibility_hidden_with_cart"
)

// Snapshot is the read-only bundle of session state sent to the decision
// service for one admitted trigger.
type Snapshot struct {
	Reason         Reason       `json:"reason"`
	CurrentPage    string       `json:"currentPage"`
	PageType       PageType     `json:"pageType"`
	Cart           CartSnapshot `json:"cart"`
	Events         []Event      `json:"events"`
	LastActivityTs int64        `json:"lastActivityTs"`
}

// Decision is the decision service's answer for one snapshot.
type Decision struct {
	ShowMessage bool   `json:"showMessage"`
	Message     string `json:"message"`
	Reasoning   string `json:"reasoning"`
}

// NoDecision is the uniform answer substituted for any transport failure,
// non-success status, or malformed response body.
func NoDecision() Decision {
	return Decision{}
}
