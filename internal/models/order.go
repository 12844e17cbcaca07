package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a placed cart.
type Order struct {
	ID          string          `json:"id" db:"id"`
	SessionID   string          `json:"session_id" db:"session_id"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status      string          `json:"status" db:"status"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	Items       []OrderLine     `json:"items"`
}

// OrderItem is the immutable snapshot of a cart line taken at placement.
type OrderItem struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   string          `json:"order_id" db:"order_id"`
	VariantID int64           `json:"variant_id" db:"variant_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

// OrderLine is the display summary of an order item.
type OrderLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"qty"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusPacked     = "packed"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)
