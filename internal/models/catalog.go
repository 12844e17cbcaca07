package models

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// UniversalSize marks a variant that is sold without size selection.
const UniversalSize = "Universal"

// Product is the catalog entry a variant belongs to.
type Product struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
	Brand    string `json:"brand" db:"brand"`
	Keywords string `json:"keywords" db:"keywords"`
	Specs    string `json:"specs" db:"specs"`
	Occasion string `json:"occasion" db:"occasion"`
	ImageURL string `json:"image_url" db:"image_url"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Variant is a purchasable size/colour configuration of a product.
type Variant struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Sizes     []string        `json:"sizes" db:"sizes"`
	Color     string          `json:"color" db:"color"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	SKU       string          `json:"sku" db:"sku"`
}

// InventoryRecord is the on-hand quantity of one variant.
type InventoryRecord struct {
	VariantID int64 `json:"variant_id" db:"variant_id"`
	Quantity  int   `json:"quantity" db:"quantity"`
}

// Candidate is one matched variant returned to the shopper, denormalised
// with its product and stock level.
type Candidate struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Brand     string          `json:"brand"`
	Keywords  string          `json:"keywords"`
	Specs     string          `json:"specs"`
	Occasion  string          `json:"occasion"`
	ImageURL  string          `json:"image_url"`
	VariantID int64           `json:"variant_id"`
	Sizes     []string        `json:"sizes"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Quantity  int             `json:"quantity"`
}

// CatalogProduct is a listing row: an active product with all its variants.
type CatalogProduct struct {
	Product
	Variants []Variant `json:"variants"`
}

// ParseSizes decodes the stored sizes column. Values may be a JSON array or a
// comma separated list; an empty value means the variant is universal.
func ParseSizes(raw string) []string {
	raw = strings.TrimSpace(raw)
	var sizes []string
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
			sizes = nil
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(s); s != "" {
					sizes = append(sizes, s)
				}
			}
		}
	}
	if len(sizes) == 0 {
		return []string{UniversalSize}
	}
	return sizes
}

// EncodeSizes is the inverse of ParseSizes for writes.
func EncodeSizes(sizes []string) string {
	if len(sizes) == 0 {
		return ""
	}
	b, _ := json.Marshal(sizes)
	return string(b)
}
