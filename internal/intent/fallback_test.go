package intent

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shirtContext() *ProductContext {
	return &ProductContext{
		Name:      "Linen Office Shirt",
		Price:     decimal.NewFromInt(1499),
		Sizes:     []string{"S", "M", "L"},
		VariantID: 7,
		Quantity:  4,
	}
}

func TestParse_CartCommands(t *testing.T) {
	p := NewParser()

	tests := []struct {
		message string
		want    Kind
	}{
		{"clear my cart", KindClearCart},
		{"please empty everything", KindClearCart},
		{"remove the blue shirt", KindRemoveItem},
		{"delete that", KindRemoveItem},
		{"checkout", KindCheckout},
		{"I want to pay now", KindCheckout},
		{"view cart", KindCheckout},
		{"place order", KindCheckout},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := p.Parse(tt.message, nil)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, SourceFallback, got.Source)
		})
	}
}

func TestParse_ClearWinsOverCheckout(t *testing.T) {
	got := NewParser().Parse("clear my cart and checkout", nil)
	assert.Equal(t, KindClearCart, got.Kind)
}

func TestParse_AddWithDeclaredSize(t *testing.T) {
	got := NewParser().Parse("add size M", shirtContext())

	assert.Equal(t, KindAddToCart, got.Kind)
	assert.Equal(t, "M", got.Size)
	assert.Equal(t, 1, got.Quantity)
}

func TestParse_AddWithUndeclaredSize(t *testing.T) {
	got := NewParser().Parse("add size XL", shirtContext())

	assert.Equal(t, KindProductQuestion, got.Kind)
	assert.Equal(t, "XL", got.Size)
	assert.Contains(t, got.Reply, "S, M, L")
}

func TestParse_AddWithoutSizeAsksForOne(t *testing.T) {
	got := NewParser().Parse("add this to my bag", shirtContext())

	assert.Equal(t, KindProductQuestion, got.Kind)
	assert.Contains(t, got.Reply, "Which size")
}

func TestParse_AddUsesSelectedSizeAndQuantity(t *testing.T) {
	ctx := shirtContext()
	ctx.SelectedSize = "l"
	ctx.SelectedQuantity = 2

	got := NewParser().Parse("yes add it", ctx)
	assert.Equal(t, KindAddToCart, got.Kind)
	assert.Equal(t, "L", got.Size)
	assert.Equal(t, 2, got.Quantity)

	got = NewParser().Parse("add 3", ctx)
	assert.Equal(t, 3, got.Quantity, "typed quantity beats the selector")
}

func TestParse_Quantity(t *testing.T) {
	tests := []struct {
		message string
		want    int
	}{
		{"add two size M", 2},
		{"3 pieces of size L", 3},
		{"buy 4 size S", 4},
		{"qty 5 size M", 5},
		{"size M", 1},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := NewParser().Parse(tt.message, shirtContext())
			require.Equal(t, KindAddToCart, got.Kind)
			assert.Equal(t, tt.want, got.Quantity)
		})
	}
}

func TestParse_NumericSizeIsNotQuantity(t *testing.T) {
	jeans := &ProductContext{
		Name:  "Slim Jeans",
		Price: decimal.NewFromInt(2199),
		Sizes: []string{"30", "32", "34"},
	}

	got := NewParser().Parse("add 2 size 32", jeans)
	assert.Equal(t, KindAddToCart, got.Kind)
	assert.Equal(t, "32", got.Size)
	assert.Equal(t, 2, got.Quantity)

	got = NewParser().Parse("32", jeans)
	assert.Equal(t, KindAddToCart, got.Kind)
	assert.Equal(t, "32", got.Size)
	assert.Equal(t, 1, got.Quantity)
}

func TestParse_BareSizeOnlyMessage(t *testing.T) {
	got := NewParser().Parse("M", shirtContext())
	assert.Equal(t, KindAddToCart, got.Kind)
	assert.Equal(t, "M", got.Size)
}

func TestParse_ContractionIsNotASize(t *testing.T) {
	got := NewParser().Parse("it's nice", shirtContext())
	assert.NotEqual(t, KindAddToCart, got.Kind)
}

func TestParse_SizesWordIsNotASize(t *testing.T) {
	for _, msg := range []string{"explain sizes", "show me sizes", "tell me the sizes"} {
		t.Run(msg, func(t *testing.T) {
			got := NewParser().Parse(msg, shirtContext())
			assert.Equal(t, KindProductQuestion, got.Kind)
			assert.Empty(t, got.Size)
			assert.Contains(t, got.Reply, "Available sizes: S, M, L")
		})
	}

	got := NewParser().Parse("size chart", shirtContext())
	assert.NotEqual(t, KindAddToCart, got.Kind)
	assert.NotContains(t, got.Reply, "CHART")
}

func TestParse_UniversalProduct(t *testing.T) {
	scarf := &ProductContext{Name: "Silk Scarf", Price: decimal.NewFromInt(799), Sizes: []string{"Universal"}}

	got := NewParser().Parse("add to cart", scarf)
	assert.Equal(t, KindAddToCart, got.Kind)
	assert.Equal(t, "Universal", got.Size)
}

func TestParse_AddWithoutProduct(t *testing.T) {
	got := NewParser().Parse("add to cart", nil)
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, ReplySelectFirst, got.Reply)
}

func TestParse_ProductQuestion(t *testing.T) {
	got := NewParser().Parse("how many are in stock?", shirtContext())

	assert.Equal(t, KindProductQuestion, got.Kind)
	assert.Contains(t, got.Reply, "Linen Office Shirt")
	assert.Contains(t, got.Reply, "1499")
	assert.Contains(t, got.Reply, "4 in stock")
}

func TestParse_ProductQuestionNeedsProduct(t *testing.T) {
	got := NewParser().Parse("explain the details", nil)
	assert.Equal(t, KindUnknown, got.Kind)
}

func TestParse_Browse(t *testing.T) {
	tests := []struct {
		message  string
		category string
		style    string
		min      string
		max      string
		reset    bool
	}{
		{message: "show me shirts", category: "shirt"},
		{message: "office shirts under 2000", category: "shirt", style: "office", max: "2000"},
		{message: "jeans below ₹1500", category: "jeans", max: "1500"},
		{message: "trousers over rs 800", category: "jeans", min: "800"},
		{message: "t-shirts for the gym", category: "tshirt", style: "gym"},
		{message: "wedding suits", category: "blazer", style: "wedding"},
		{message: "gowns", category: "dress"},
		{message: "anything 1200", category: GenericCategory, max: "1200"},
		{message: "summer outfit", category: GenericCategory, style: "summer", reset: true},
		{message: "what should I wear", category: GenericCategory, reset: true},
		{message: "beach look with shirts", category: "shirt", style: "beach"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := NewParser().Parse(tt.message, nil)
			require.Equal(t, KindBrowse, got.Kind)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.style, got.Style)
			assert.Equal(t, tt.reset, got.ResetMemory)
			assertPrice(t, tt.min, got.MinPrice)
			assertPrice(t, tt.max, got.MaxPrice)
		})
	}
}

func assertPrice(t *testing.T, want string, got *decimal.Decimal) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString(want).Equal(*got), "want %s got %s", want, got)
}

func TestParse_SmallNumberIsNotAPrice(t *testing.T) {
	got := NewParser().Parse("show 50", nil)
	assert.Equal(t, KindUnknown, got.Kind)
}

func TestParse_GreetingAndUnknown(t *testing.T) {
	got := NewParser().Parse("hello there", nil)
	assert.Equal(t, KindGreeting, got.Kind)
	assert.Equal(t, ReplyCapabilities, got.Reply)

	got = NewParser().Parse("shirts hi", nil)
	assert.Equal(t, KindBrowse, got.Kind, "browse is evaluated before greeting")

	got = NewParser().Parse("blargh", nil)
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, ReplyUnknown, got.Reply)
}

func TestDefaultRules_Order(t *testing.T) {
	var names []string
	for _, r := range NewParser().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"clear_cart", "remove_item", "checkout", "quantity", "size",
		"add_to_cart", "product_question", "browse", "greeting", "unknown",
	}, names)
}

func TestParserWithRules_Independent(t *testing.T) {
	p := NewParserWithRules([]Rule{{Name: "browse", Apply: browseRule}})

	got := p.Parse("clear the blazers", nil)
	assert.Equal(t, KindBrowse, got.Kind)
	assert.Equal(t, "blazer", got.Category)

	got = p.Parse("nothing here", nil)
	assert.Equal(t, KindUnknown, got.Kind)
}
