// Package loyalty maps a purchase amount to a reward tier.
package loyalty

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	Bronze Tier = "Bronze"
	Silver Tier = "Silver"
	Gold   Tier = "Gold"
)

var (
	silverThreshold = decimal.NewFromInt(2000)
	goldThreshold   = decimal.NewFromInt(5000)
)

// Reward is the outcome for one amount.
type Reward struct {
	Tier     Tier            `json:"tier"`
	Discount decimal.Decimal `json:"discount"`
	Message  string          `json:"message"`
}

// Calculate returns the tier for amount. It has no side effects.
func Calculate(amount decimal.Decimal) Reward {
	switch {
	case amount.GreaterThanOrEqual(goldThreshold):
		return Reward{
			Tier:     Gold,
			Discount: decimal.NewFromInt(500),
			Message:  "Gold member: eligible for ₹500 off.",
		}
	case amount.GreaterThanOrEqual(silverThreshold):
		return Reward{
			Tier:     Silver,
			Discount: decimal.NewFromInt(200),
			Message:  "Silver member: eligible for ₹200 off.",
		}
	default:
		return Reward{
			Tier:     Bronze,
			Discount: decimal.Zero,
			Message:  "Bronze member: free delivery on this order.",
		}
	}
}

// ForLine applies Calculate to unit price times quantity.
func ForLine(unitPrice decimal.Decimal, quantity int) Reward {
	return Calculate(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

func (r Reward) String() string {
	return fmt.Sprintf("%s (%s off)", r.Tier, r.Discount.StringFixed(0))
}
