package models

import "github.com/shopspring/decimal"

// CartItem is one line of a session's cart.
type CartItem struct {
	ID        int64           `json:"id" db:"id"`
	SessionID string          `json:"session_id" db:"session_id"`
	VariantID int64           `json:"variant_id" db:"variant_id"`
	Size      string          `json:"size" db:"size"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Name      string          `json:"name" db:"name"`
	ImageURL  string          `json:"image_url" db:"image_url"`
}

// LineTotal is price times quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}
