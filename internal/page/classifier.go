// Package page classifies storefront locations into page types.
package page

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopnudge/engage/internal/domain"
	"gopkg.in/yaml.v3"
)

// Rule maps location signals to one page type. Path fragments are checked
// before body-class markers; the first matching rule wins, so rules are
// ordered most-specific first.
type Rule struct {
	Type        domain.PageType `yaml:"type"`
	PathFrags   []string        `yaml:"paths"`
	PathExact   []string        `yaml:"exact_paths"`
	BodyClasses []string        `yaml:"body_classes"`
}

// Classifier is a pure, deterministic page classifier. Detectors call it
// repeatedly, so it holds no mutable state.
type Classifier struct {
	rules []Rule
}

// DefaultRules cover stock storefront themes: URL patterns first, theme
// template body classes as fallback.
func DefaultRules() []Rule {
	return []Rule{
		{Type: domain.PageCheckout, PathFrags: []string{"/checkout"}},
		{Type: domain.PageProduct, PathFrags: []string{"/products/"}, BodyClasses: []string{"template-product"}},
		{Type: domain.PageCollection, PathFrags: []string{"/collections/"}, BodyClasses: []string{"template-collection"}},
		{Type: domain.PageSearch, PathFrags: []string{"/search"}, BodyClasses: []string{"template-search"}},
		{Type: domain.PageCart, PathExact: []string{"/cart"}, BodyClasses: []string{"template-cart"}},
	}
}

// New creates a classifier with the default rules.
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewFromRules creates a classifier with custom rules. Empty rules fall
// back to the defaults.
func NewFromRules(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// rulesFile is the YAML layout of a marker rules file.
type rulesFile struct {
	Pages []Rule `yaml:"pages"`
}

// LoadRules reads classifier rules from a YAML file. Themes with
// non-standard paths or template classes override the defaults this way.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return f.Pages, nil
}

// Classify maps a URL path and the page's body classes to a page type.
// Path patterns are checked before the CSS-class fallback within each rule.
func (c *Classifier) Classify(urlPath string, bodyClasses []string) domain.PageType {
	p := strings.ToLower(urlPath)
	cls := strings.ToLower(strings.Join(bodyClasses, " "))

	for _, rule := range c.rules {
		for _, exact := range rule.PathExact {
			if p == exact {
				return rule.Type
			}
		}
		for _, frag := range rule.PathFrags {
			if strings.Contains(p, frag) {
				return rule.Type
			}
		}
	}
	for _, rule := range c.rules {
		for _, marker := range rule.BodyClasses {
			if strings.Contains(cls, marker) {
				return rule.Type
			}
		}
	}
	return domain.PageOther
}
