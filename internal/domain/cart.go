package domain

// CartLine is one line item from the storefront cart endpoint. Only the
// fields the decision service cares about are decoded; the rest are carried
// through opaquely by the items array.
type CartLine struct {
	ID       int64   `json:"id,omitempty"`
	Title    string  `json:"title,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// CartSnapshot is an ephemeral read of the current cart. It is fetched
// fresh per use and never cached: cart contents can change from storefront
// UI outside the tracker's control.
type CartSnapshot struct {
	ItemCount  int        `json:"itemCount"`
	Items      []CartLine `json:"items"`
	TotalPrice float64    `json:"totalPrice"`
}

// EmptyCart is the safe default used when the cart endpoint is
// unreachable or returns garbage. Detectors gated on cart contents treat
// it as "no items" and stay quiet.
func EmptyCart() CartSnapshot {
	return CartSnapshot{Items: []CartLine{}}
}
