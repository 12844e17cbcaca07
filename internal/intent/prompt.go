package intent

import (
	"fmt"
	"strings"
)

// buildPrompt renders the extraction prompt. The shopper message is always the
// last double-quoted string in the prompt.
func buildPrompt(message string, product *ProductContext) string {
	var sb strings.Builder

	sb.WriteString(`You are the intent extractor for an online clothing store.
Return ONLY a JSON object with these fields:
{
  "intent": "browse | add_to_cart | remove_item | clear_cart | checkout | product_question | greeting | unknown",
  "category": "shirt | tshirt | jeans | blazer | dress | items",
  "style": "casual | formal | party | office | gym | sports | wedding | beach | summer | winter",
  "minPrice": number or null,
  "maxPrice": number or null,
  "size": "S | M | L | XL | XXL | XXXL | numeric size",
  "quantity": number,
  "resetMemory": true when the shopper asks for a whole outfit or look,
  "mission": "short description of what the shopper is trying to do",
  "reply": "one friendly sentence for the shopper"
}
Use category "items" when no specific garment is named.
`)

	if product != nil {
		sb.WriteString("\nThe shopper is currently viewing this product:\n")
		fmt.Fprintf(&sb, "- name: %s\n", product.Name)
		fmt.Fprintf(&sb, "- price: %s\n", product.Price.StringFixed(2))
		if sizes := product.RealSizes(); len(sizes) > 0 {
			fmt.Fprintf(&sb, "- sizes: %s\n", formatSizes(sizes))
		} else {
			sb.WriteString("- sizes: one universal size\n")
		}
		fmt.Fprintf(&sb, "- in stock: %d\n", product.Quantity)
		if product.SelectedSize != "" {
			fmt.Fprintf(&sb, "- selected size: %s\n", product.SelectedSize)
		}
		if product.SelectedQuantity > 0 {
			fmt.Fprintf(&sb, "- selected quantity: %d\n", product.SelectedQuantity)
		}
		sb.WriteString("Only use add_to_cart for this product. Never invent a size it does not have.\n")
	}

	fmt.Fprintf(&sb, "\nShopper message: \"%s\"", strings.ReplaceAll(message, `"`, "'"))
	return sb.String()
}
