package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/matthieukhl/loom/internal/models"
	"github.com/shopspring/decimal"
)

// Replies used by the fallback parser.
const (
	ReplyCapabilities = "Hi 👋 I'm Loom AI. Tell me what you're looking for, for example 'office shirts under 2000' or 'wedding blazer'."
	ReplyUnknown      = "I didn't quite catch that. I can help you find shirts, t-shirts, jeans, blazers and dresses, answer questions about them, or add them to your cart."
	ReplySelectFirst  = "Please select a product first, then tell me the size and quantity you'd like."
	ReplyRemoveHint   = "To remove an item, please use the remove button in your cart panel."
	ReplyClearCart    = "Clearing your cart now."
	ReplyCheckout     = "Taking you to checkout."
)

// Rule is one step of the fallback cascade. Apply returns an intent and true
// to stop the cascade; extraction steps only update the state and return false.
type Rule struct {
	Name  string
	Apply func(s *parseState) (Intent, bool)
}

// Parser is the deterministic fallback intent extractor.
type Parser struct {
	rules []Rule
}

// NewParser returns a parser with the default rule cascade.
func NewParser() *Parser {
	return &Parser{rules: DefaultRules()}
}

// NewParserWithRules builds a parser from a custom cascade.
func NewParserWithRules(rules []Rule) *Parser {
	return &Parser{rules: rules}
}

// Rules exposes the cascade in evaluation order.
func (p *Parser) Rules() []Rule {
	return p.rules
}

// Parse runs the cascade; the first rule that matches wins.
func (p *Parser) Parse(message string, product *ProductContext) Intent {
	s := newParseState(message, product)
	for _, rule := range p.rules {
		if in, ok := rule.Apply(s); ok {
			in.normalize()
			in.Source = SourceFallback
			return in
		}
	}
	return Intent{Kind: KindUnknown, Reply: ReplyUnknown, Quantity: 1, Source: SourceFallback}
}

// DefaultRules is the cascade in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "clear_cart", Apply: clearCartRule},
		{Name: "remove_item", Apply: removeItemRule},
		{Name: "checkout", Apply: checkoutRule},
		{Name: "quantity", Apply: quantityRule},
		{Name: "size", Apply: sizeRule},
		{Name: "add_to_cart", Apply: addToCartRule},
		{Name: "product_question", Apply: productQuestionRule},
		{Name: "browse", Apply: browseRule},
		{Name: "greeting", Apply: greetingRule},
		{Name: "unknown", Apply: unknownRule},
	}
}

type parseState struct {
	raw     string
	text    string
	tokens  []string
	product *ProductContext

	quantity         int
	quantityExplicit bool
	quantityToken    string
	size             string
	sizeExplicit     bool

	// addWithoutProduct is set when the add trigger fired but no product was
	// open; the terminal rules turn it into an explicit hint.
	addWithoutProduct bool
}

var numberWords = map[string]string{
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
}

var numberWordRe = regexp.MustCompile(`\b(one|two|three|four|five)\b`)

func newParseState(message string, product *ProductContext) *parseState {
	text := strings.ToLower(strings.TrimSpace(message))
	text = numberWordRe.ReplaceAllStringFunc(text, func(w string) string { return numberWords[w] })
	text = strings.ReplaceAll(text, "t shirt", "tshirt")

	var tokens []string
	for _, f := range strings.Fields(text) {
		if t := strings.Trim(f, ".,!?;:\"()"); t != "" {
			tokens = append(tokens, t)
		}
	}

	return &parseState{
		raw:      message,
		text:     text,
		tokens:   tokens,
		product:  product,
		quantity: 1,
	}
}

func (s *parseState) hasWord(words ...string) bool {
	for _, t := range s.tokens {
		for _, w := range words {
			if t == w {
				return true
			}
		}
	}
	return false
}

func (s *parseState) contains(phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(s.text, p) {
			return true
		}
	}
	return false
}

func clearCartRule(s *parseState) (Intent, bool) {
	if s.hasWord("clear", "empty") {
		return Intent{Kind: KindClearCart, Reply: ReplyClearCart}, true
	}
	return Intent{}, false
}

func removeItemRule(s *parseState) (Intent, bool) {
	if s.hasWord("remove", "delete") {
		return Intent{Kind: KindRemoveItem, Reply: ReplyRemoveHint}, true
	}
	return Intent{}, false
}

var checkoutRe = regexp.MustCompile(`\b(checkout|check out|pay|payment|view cart|go to cart|show cart|my cart|place order|place my order)\b`)

func checkoutRule(s *parseState) (Intent, bool) {
	if checkoutRe.MatchString(s.text) {
		return Intent{Kind: KindCheckout, Reply: ReplyCheckout}, true
	}
	return Intent{}, false
}

var (
	explicitSizeRe = regexp.MustCompile(`\bsize\b\s*[:=]?\s*([a-z0-9]{1,4})\b`)

	quantityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(\d+)\s*(?:qty|quantity|units?|pieces?|pcs|of)\b`),
		regexp.MustCompile(`\b(?:add|buy|get)\s+(\d+)\b`),
		regexp.MustCompile(`\b(?:qty|quantity)\s*[:=]?\s*(\d+)\b`),
	}
	bareNumberRe = regexp.MustCompile(`\b(\d{1,2})\b`)
)

// maxBareQuantity caps what a lone number may mean as a quantity; larger
// two digit numbers are left for size extraction.
const maxBareQuantity = 10

func quantityRule(s *parseState) (Intent, bool) {
	// "size 32" must never be read as a quantity.
	text := explicitSizeRe.ReplaceAllString(s.text, " ")

	for _, re := range quantityPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				s.setQuantity(n, m[1])
				return Intent{}, false
			}
		}
	}

	for _, m := range bareNumberRe.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= maxBareQuantity {
			s.setQuantity(n, m[1])
			break
		}
	}
	return Intent{}, false
}

func (s *parseState) setQuantity(n int, token string) {
	s.quantity = n
	s.quantityExplicit = true
	s.quantityToken = token
}

var bareSizeRe = regexp.MustCompile(`^(xxxl|xxl|xl|s|m|l|\d{2})$`)

func sizeRule(s *parseState) (Intent, bool) {
	if m := explicitSizeRe.FindStringSubmatch(s.text); m != nil {
		s.size = strings.ToUpper(m[1])
		s.sizeExplicit = true
		return Intent{}, false
	}

	for _, t := range s.tokens {
		if !bareSizeRe.MatchString(t) {
			continue
		}
		if s.quantityExplicit && t == s.quantityToken {
			continue
		}
		candidate := strings.ToUpper(t)
		_, numErr := strconv.Atoi(t)
		numeric := numErr == nil
		if (s.product != nil && s.product.HasSize(candidate)) || !numeric {
			s.size = candidate
			break
		}
	}
	return Intent{}, false
}

var (
	addKeywordRe   = regexp.MustCompile(`\b(add|buy|cart|select|ok|okay|yes|get)\b`)
	sizeOnlyRe     = regexp.MustCompile(`^(size\b\s*[:=]?\s*)?[a-z0-9]{1,4}$`)
	questionWordRe = regexp.MustCompile(`^(what|which|how|is|are|do|does|can|could|will|when|where|why)\b`)
)

// shortMessageLimit is the length under which a message carrying a size is
// read as a selection.
const shortMessageLimit = 25

func (s *parseState) isQuestion() bool {
	return strings.Contains(s.text, "?") || questionWordRe.MatchString(s.text)
}

func addToCartRule(s *parseState) (Intent, bool) {
	sizeOnly := s.size != "" && sizeOnlyRe.MatchString(s.text)
	keyword := addKeywordRe.MatchString(s.text)
	shortSelection := s.size != "" && len(s.text) < shortMessageLimit && !s.isQuestion()

	if !sizeOnly && !keyword && !shortSelection {
		return Intent{}, false
	}

	p := s.product
	if p == nil {
		s.addWithoutProduct = true
		return Intent{}, false
	}

	size := s.size
	if size == "" && p.SelectedSize != "" {
		size = strings.ToUpper(p.SelectedSize)
	}
	quantity := s.quantity
	if !s.quantityExplicit && p.SelectedQuantity > 0 {
		quantity = p.SelectedQuantity
	}

	declared := p.RealSizes()
	if len(declared) > 0 {
		if size == "" {
			return Intent{
				Kind:  KindProductQuestion,
				Reply: fmt.Sprintf("Which size would you like for %s? Available sizes: %s.", p.Name, formatSizes(declared)),
			}, true
		}
		if !p.HasSize(size) {
			return Intent{
				Kind:  KindProductQuestion,
				Size:  size,
				Reply: fmt.Sprintf("Size %s isn't available for %s. Please choose from: %s.", size, p.Name, formatSizes(declared)),
			}, true
		}
	} else {
		size = models.UniversalSize
	}

	return Intent{
		Kind:     KindAddToCart,
		Size:     size,
		Quantity: quantity,
		Reply:    fmt.Sprintf("Adding %d × %s (size %s) to your cart!", quantity, p.Name, size),
	}, true
}

func productQuestionRule(s *parseState) (Intent, bool) {
	if s.product == nil || !s.contains("explain", "detail", "stock", "how many", "what size", "sizes") {
		return Intent{}, false
	}
	return Intent{Kind: KindProductQuestion, Reply: describeProduct(s.product)}, true
}

func describeProduct(p *ProductContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is priced at ₹%s.", p.Name, p.Price.StringFixed(0))
	if p.Quantity > 0 {
		fmt.Fprintf(&sb, " We have %d in stock.", p.Quantity)
	} else {
		sb.WriteString(" It is currently out of stock.")
	}
	if declared := p.RealSizes(); len(declared) > 0 {
		fmt.Fprintf(&sb, " Available sizes: %s.", formatSizes(declared))
	} else {
		sb.WriteString(" It comes in one universal size.")
	}
	return sb.String()
}

var (
	currency   = `(?:rs\.?|inr|₹|\$)?\s*`
	maxPriceRe = regexp.MustCompile(`\b(?:under|below|less than|max|maximum|upto|up to|within)\s*` + currency + `(\d+)`)
	minPriceRe = regexp.MustCompile(`\b(?:above|over|more than|min|minimum|starting at|from)\s*` + currency + `(\d+)`)
	implicitRe = regexp.MustCompile(`\b(\d{3,5})\b`)
)

// styles in match priority order.
var styles = []string{"casual", "formal", "party", "office", "gym", "sports", "wedding", "beach", "summer", "winter"}

var genericWear = map[string]bool{
	"outfit":  true,
	"outfits": true,
	"wear":    true,
	"clothes": true,
	"look":    true,
	"looks":   true,
}

func browseRule(s *parseState) (Intent, bool) {
	in := Intent{Kind: KindBrowse}

	if m := maxPriceRe.FindStringSubmatch(s.text); m != nil {
		in.MaxPrice = parsePrice(m[1])
	}
	if m := minPriceRe.FindStringSubmatch(s.text); m != nil {
		in.MinPrice = parsePrice(m[1])
	}
	if in.MaxPrice == nil && in.MinPrice == nil {
		if m := implicitRe.FindStringSubmatch(s.text); m != nil {
			if n, _ := strconv.Atoi(m[1]); n >= 100 {
				in.MaxPrice = parsePrice(m[1])
			}
		}
	}

	for _, style := range styles {
		if s.hasWord(style) {
			in.Style = style
			break
		}
	}

	for _, t := range s.tokens {
		if c := canonicalCategory(t); c != t || categoryAliases[t] != "" {
			if c != GenericCategory {
				in.Category = c
				break
			}
		}
	}

	if in.Category == "" {
		for _, t := range s.tokens {
			if genericWear[t] {
				in.Category = GenericCategory
				in.ResetMemory = true
				break
			}
		}
	}

	if in.MaxPrice != nil || in.MinPrice != nil || in.Style != "" || in.Category != "" || in.ResetMemory {
		return in, true
	}
	return Intent{}, false
}

func parsePrice(digits string) *decimal.Decimal {
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return nil
	}
	return &d
}

func greetingRule(s *parseState) (Intent, bool) {
	if s.text == "" || s.hasWord("hi", "hello", "hey", "hii", "hhii") {
		if s.addWithoutProduct {
			return Intent{Kind: KindUnknown, Reply: ReplySelectFirst}, true
		}
		return Intent{Kind: KindGreeting, Reply: ReplyCapabilities}, true
	}
	return Intent{}, false
}

func unknownRule(s *parseState) (Intent, bool) {
	if s.addWithoutProduct {
		return Intent{Kind: KindUnknown, Reply: ReplySelectFirst}, true
	}
	return Intent{Kind: KindUnknown, Reply: ReplyUnknown}, true
}
