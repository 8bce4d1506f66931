package page

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopnudge/engage/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := New()

	tests := []struct {
		name    string
		path    string
		classes []string
		want    domain.PageType
	}{
		{"product by path", "/products/running-shoe", nil, domain.PageProduct},
		{"product by body class", "/pages/lookbook-shoe", []string{"template-product"}, domain.PageProduct},
		{"collection by path", "/collections/sale", nil, domain.PageCollection},
		{"search by path", "/search?q=shoe", nil, domain.PageSearch},
		{"cart exact path", "/cart", nil, domain.PageCart},
		{"cart subpath is not cart page", "/cartography", nil, domain.PageOther},
		{"cart by body class", "/pages/bag", []string{"template-cart"}, domain.PageCart},
		{"checkout", "/checkout/contact", nil, domain.PageCheckout},
		{"checkout wins over product marker", "/checkout", []string{"template-product"}, domain.PageCheckout},
		{"path beats class fallback", "/products/x", []string{"template-search"}, domain.PageProduct},
		{"uppercase path", "/Products/Running-Shoe", nil, domain.PageProduct},
		{"plain page", "/pages/about-us", nil, domain.PageOther},
		{"home", "/", nil, domain.PageOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.path, tt.classes); got != tt.want {
				t.Errorf("Classify(%q, %v) = %q, want %q", tt.path, tt.classes, got, tt.want)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	t.Parallel()

	c := New()
	for i := 0; i < 100; i++ {
		if got := c.Classify("/collections/shoes", []string{"template-product"}); got != domain.PageCollection {
			t.Fatalf("iteration %d: got %q", i, got)
		}
	}
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.yaml")
	raw := `
pages:
  - type: product
    paths: ["/artikel/"]
  - type: cart
    exact_paths: ["/warenkorb"]
    body_classes: ["theme-cart"]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	c := NewFromRules(rules)

	if got := c.Classify("/artikel/schuh", nil); got != domain.PageProduct {
		t.Errorf("custom product path: got %q", got)
	}
	if got := c.Classify("/warenkorb", nil); got != domain.PageCart {
		t.Errorf("custom cart path: got %q", got)
	}
	if got := c.Classify("/anything", []string{"theme-cart"}); got != domain.PageCart {
		t.Errorf("custom cart class: got %q", got)
	}
}
