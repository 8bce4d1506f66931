package domain

// PageType classifies a storefront page.
type PageType string

const (
	PageProduct    PageType = "product"
	PageCollection PageType = "collection"
	PageSearch     PageType = "search"
	PageCart       PageType = "cart"
	PageCheckout   PageType = "checkout"
	PageOther      PageType = "other"
)
