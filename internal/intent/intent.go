// Package intent turns shopper messages into structured intents, first through
// the configured language service and otherwise through a deterministic rule
// cascade.
package intent

import (
	"strings"

	"github.com/matthieukhl/loom/internal/models"
	"github.com/shopspring/decimal"
)

// Kind is what the shopper wants done.
type Kind string

const (
	KindBrowse          Kind = "browse"
	KindAddToCart       Kind = "add_to_cart"
	KindRemoveItem      Kind = "remove_item"
	KindClearCart       Kind = "clear_cart"
	KindCheckout        Kind = "checkout"
	KindProductQuestion Kind = "product_question"
	KindGreeting        Kind = "greeting"
	KindUnknown         Kind = "unknown"
)

// GenericCategory is the sentinel category for "anything in the store".
const GenericCategory = "items"

// Source tells where an intent came from.
type Source string

const (
	SourceNLU      Source = "nlu"
	SourceFallback Source = "fallback"
)

func (k Kind) valid() bool {
	switch k {
	case KindBrowse, KindAddToCart, KindRemoveItem, KindClearCart, KindCheckout,
		KindProductQuestion, KindGreeting, KindUnknown:
		return true
	}
	return false
}

// Intent is the normalized form of one message. It is never persisted.
type Intent struct {
	Kind        Kind             `json:"intent"`
	Category    string           `json:"category,omitempty"`
	Style       string           `json:"style,omitempty"`
	MinPrice    *decimal.Decimal `json:"minPrice,omitempty"`
	MaxPrice    *decimal.Decimal `json:"maxPrice,omitempty"`
	Size        string           `json:"size,omitempty"`
	Quantity    int              `json:"quantity,omitempty"`
	ResetMemory bool             `json:"resetMemory,omitempty"`
	Mission     string           `json:"mission,omitempty"`
	Reply       string           `json:"reply,omitempty"`
	Source      Source           `json:"-"`
}

// HasFilter reports whether any price or style constraint is present.
func (i Intent) HasFilter() bool {
	return i.MinPrice != nil || i.MaxPrice != nil || i.Style != ""
}

// IsGeneric reports whether the intent browses without a concrete category.
func (i Intent) IsGeneric() bool {
	return i.Category == "" || i.Category == GenericCategory
}

// ProductContext is the product the shopper currently has open in the UI.
type ProductContext struct {
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	Sizes            []string        `json:"sizes"`
	VariantID        int64           `json:"variant_id"`
	Quantity         int             `json:"quantity"`
	SelectedSize     string          `json:"selected_size,omitempty"`
	SelectedQuantity int             `json:"selected_quantity,omitempty"`
}

// RealSizes returns the declared sizes without the universal sentinel.
func (p *ProductContext) RealSizes() []string {
	if p == nil {
		return nil
	}
	var sizes []string
	for _, s := range p.Sizes {
		s = strings.TrimSpace(s)
		if s != "" && !strings.EqualFold(s, models.UniversalSize) {
			sizes = append(sizes, s)
		}
	}
	return sizes
}

// HasSize reports whether size is declared, ignoring case.
func (p *ProductContext) HasSize(size string) bool {
	for _, s := range p.RealSizes() {
		if strings.EqualFold(s, size) {
			return true
		}
	}
	return false
}

// normalize brings intents from either source into one canonical shape.
func (i *Intent) normalize() {
	i.Category = canonicalCategory(strings.ToLower(strings.TrimSpace(i.Category)))
	i.Style = strings.ToLower(strings.TrimSpace(i.Style))
	i.Size = strings.ToUpper(strings.TrimSpace(i.Size))
	if strings.EqualFold(i.Size, models.UniversalSize) {
		i.Size = models.UniversalSize
	}
	if i.Quantity <= 0 {
		i.Quantity = 1
	}
	if i.Kind == KindBrowse && i.Category == "" {
		i.Category = GenericCategory
	}
}

// categoryAliases maps singular shopper nouns to catalog categories.
var categoryAliases = map[string]string{
	"shirt":   "shirt",
	"tshirt":  "tshirt",
	"t-shirt": "tshirt",
	"tee":     "tshirt",
	"top":     "tshirt",
	"jeans":   "jeans",
	"jean":    "jeans",
	"pant":    "jeans",
	"trouser": "jeans",
	"denim":   "jeans",
	"blazer":  "blazer",
	"blazor":  "blazer",
	"coat":    "blazer",
	"suit":    "blazer",
	"dress":   "dress",
	"gown":    "dress",
	"items":   GenericCategory,
}

// canonicalCategory strips plurals and applies aliases. Unknown words are
// returned unchanged so the matcher can still try them against names.
func canonicalCategory(word string) string {
	if word == "" {
		return ""
	}
	if c, ok := categoryAliases[word]; ok {
		return c
	}
	if strings.HasSuffix(word, "es") {
		if c, ok := categoryAliases[word[:len(word)-2]]; ok {
			return c
		}
	}
	if strings.HasSuffix(word, "s") {
		if c, ok := categoryAliases[word[:len(word)-1]]; ok {
			return c
		}
	}
	return word
}

func formatSizes(sizes []string) string {
	return strings.Join(sizes, ", ")
}
