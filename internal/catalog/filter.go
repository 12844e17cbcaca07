// Package catalog finds purchasable variants for a shopper request and
// relaxes the request when nothing matches.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultLimit is the sample size returned per search.
const DefaultLimit = 12

// GenericCategory matches every category.
const GenericCategory = "items"

const baseQuery = `
	SELECT p.id, p.name, p.category, p.brand, p.keywords, p.specs, p.occasion, p.image_url,
	       v.id, v.sizes, v.price, v.discount, i.quantity
	FROM products p
	JOIN product_variants v ON v.product_id = p.id
	JOIN inventory i ON i.variant_id = v.id
	WHERE p.is_active = TRUE
	  AND i.quantity > 0`

// Filter is an immutable product search. Build it with NewFilter and derive
// relaxed copies with With.
type Filter struct {
	category string
	style    string
	minPrice *decimal.Decimal
	maxPrice *decimal.Decimal
	limit    int
}

type Option func(*Filter)

func NewFilter(opts ...Option) Filter {
	f := Filter{limit: DefaultLimit}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// With returns a copy of f with opts applied.
func (f Filter) With(opts ...Option) Filter {
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithCategory sets the category. Empty or "items" means any category.
func WithCategory(category string) Option {
	return func(f *Filter) {
		f.category = normalizeCategory(category)
	}
}

func WithStyle(style string) Option {
	return func(f *Filter) {
		f.style = strings.ToLower(strings.TrimSpace(style))
	}
}

// WithPriceBand sets inclusive bounds; nil leaves a side open.
func WithPriceBand(min, max *decimal.Decimal) Option {
	return func(f *Filter) {
		f.minPrice = min
		f.maxPrice = max
	}
}

func WithLimit(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.limit = n
		}
	}
}

func (f Filter) Category() string { return f.category }
func (f Filter) Style() string    { return f.style }

// Generic reports whether the filter spans all categories.
func (f Filter) Generic() bool {
	return f.category == ""
}

// Build renders the filter as a MySQL query and its arguments.
func (f Filter) Build() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString(baseQuery)
	for _, clause := range []func() (string, []any){f.categoryClause, f.styleClause, f.priceClause} {
		sql, clauseArgs := clause()
		if sql == "" {
			continue
		}
		sb.WriteString("\n\t  AND ")
		sb.WriteString(sql)
		args = append(args, clauseArgs...)
	}

	sb.WriteString("\n\tORDER BY RAND()\n\tLIMIT ?")
	args = append(args, f.limit)
	return sb.String(), args
}

func (f Filter) categoryClause() (string, []any) {
	switch f.category {
	case "":
		return "", nil
	case "shirt":
		return "(p.category LIKE ? OR p.name LIKE ?) AND p.category NOT LIKE '%t-shirt%' AND p.category NOT LIKE '%tshirt%'",
			[]any{"%shirt%", "%shirt%"}
	case "tshirt":
		return "(p.category LIKE '%t-shirt%' OR p.category LIKE '%tshirt%')", nil
	default:
		pattern := "%" + f.category + "%"
		return "(p.category LIKE ? OR p.name LIKE ?)", []any{pattern, pattern}
	}
}

func (f Filter) styleClause() (string, []any) {
	if f.style == "" {
		return "", nil
	}
	pattern := "%" + f.style + "%"
	switch f.style {
	case "beach", "summer":
		return "(p.occasion LIKE ? OR p.name LIKE ? OR p.keywords LIKE ?) AND p.category NOT LIKE '%blazer%'",
			[]any{pattern, pattern, pattern}
	case "formal", "wedding", "professional":
		return "(p.occasion LIKE ? OR p.keywords LIKE ? OR p.category LIKE '%shirt%' OR p.category LIKE '%blazer%') AND p.category NOT LIKE '%t-shirt%' AND p.category NOT LIKE '%jeans%'",
			[]any{pattern, pattern}
	default:
		return "(p.occasion LIKE ? OR p.name LIKE ? OR p.keywords LIKE ? OR p.category LIKE ?)",
			[]any{pattern, pattern, pattern, pattern}
	}
}

func (f Filter) priceClause() (string, []any) {
	var parts []string
	var args []any
	if f.maxPrice != nil {
		parts = append(parts, "v.price <= ?")
		args = append(args, f.maxPrice.String())
	}
	if f.minPrice != nil {
		parts = append(parts, "v.price >= ?")
		args = append(args, f.minPrice.String())
	}
	return strings.Join(parts, " AND "), args
}

// normalizeCategory lowercases, maps t-shirt spellings and strips a trailing
// plural "s" except from words where it is not a plural.
func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == GenericCategory {
		return ""
	}
	switch c {
	case "t-shirt", "t-shirts", "tshirts", "tee", "tees", "t shirt", "t shirts":
		return "tshirt"
	}
	if strings.HasSuffix(c, "s") && !strings.HasSuffix(c, "dress") &&
		!strings.HasSuffix(c, "jeans") && !strings.HasSuffix(c, "fabric") {
		c = strings.TrimSuffix(c, "s")
	}
	return c
}
