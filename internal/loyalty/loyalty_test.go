package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_Boundaries(t *testing.T) {
	tests := []struct {
		amount   int64
		tier     Tier
		discount int64
	}{
		{0, Bronze, 0},
		{1999, Bronze, 0},
		{2000, Silver, 200},
		{4999, Silver, 200},
		{5000, Gold, 500},
		{12000, Gold, 500},
	}

	for _, tt := range tests {
		got := Calculate(decimal.NewFromInt(tt.amount))
		assert.Equal(t, tt.tier, got.Tier, "amount %d", tt.amount)
		assert.True(t, decimal.NewFromInt(tt.discount).Equal(got.Discount), "amount %d", tt.amount)
	}
}

func TestCalculate_FractionalAmount(t *testing.T) {
	got := Calculate(decimal.RequireFromString("1999.99"))
	assert.Equal(t, Bronze, got.Tier)
}

func TestForLine(t *testing.T) {
	got := ForLine(decimal.NewFromInt(1000), 2)
	assert.Equal(t, Silver, got.Tier)
	assert.Equal(t, "Silver (200 off)", got.String())
}

func TestCalculate_MessagesDoNotClaimADiscount(t *testing.T) {
	assert.Equal(t, "Gold member: eligible for ₹500 off.", Calculate(decimal.NewFromInt(5000)).Message)
	assert.Equal(t, "Silver member: eligible for ₹200 off.", Calculate(decimal.NewFromInt(2000)).Message)
	assert.Equal(t, "Bronze member: free delivery on this order.", Calculate(decimal.NewFromInt(10)).Message)
}
