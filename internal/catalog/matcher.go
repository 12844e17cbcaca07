package catalog

import (
	"context"
	"fmt"

	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/models"
	"go.uber.org/zap"
)

// ExactNote marks a result that honours every requested filter.
const ExactNote = "These match everything you asked for."

// Relaxation names the constraint dropped to get a non-empty result.
type Relaxation string

const (
	RelaxNone     Relaxation = "none"
	RelaxCategory Relaxation = "category"
	RelaxStyle    Relaxation = "style"
	// RelaxCategoryAndStyle means the category was widened and then the
	// style dropped as well.
	RelaxCategoryAndStyle Relaxation = "category_and_style"
)

// Result is a search outcome with its provenance.
type Result struct {
	Products    []models.Candidate `json:"products"`
	Relaxation  Relaxation         `json:"relaxation"`
	Substituted bool               `json:"substituted"`
	Note        string             `json:"note"`
	Filter      Filter             `json:"-"`
}

// Exact reports whether the products match the request as asked.
func (r Result) Exact() bool {
	return r.Relaxation == RelaxNone && !r.Substituted
}

// CategoryWidened reports whether the products may come from outside the
// requested category.
func (r Result) CategoryWidened() bool {
	return r.Relaxation == RelaxCategory || r.Relaxation == RelaxCategoryAndStyle || r.Substituted
}

// Matcher turns intents into candidate lists.
type Matcher struct {
	finder Finder
	logger *zap.Logger
}

func NewMatcher(finder Finder, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{finder: finder, logger: logger}
}

// FilterFor maps an intent onto a search filter.
func FilterFor(in intent.Intent) Filter {
	return NewFilter(
		WithCategory(in.Category),
		WithStyle(in.Style),
		WithPriceBand(in.MinPrice, in.MaxPrice),
	)
}

// Match searches for in. On an empty result it first widens the category,
// keeping style and price, and then drops the style.
func (m *Matcher) Match(ctx context.Context, in intent.Intent) (Result, error) {
	f := FilterFor(in)
	requested := f

	products, err := m.finder.Find(ctx, f)
	if err != nil {
		return Result{}, err
	}
	relax := RelaxNone

	if len(products) == 0 && !f.Generic() {
		f = f.With(WithCategory(GenericCategory))
		if products, err = m.finder.Find(ctx, f); err != nil {
			return Result{}, err
		}
		relax = RelaxCategory
	}

	if len(products) == 0 && f.Style() != "" {
		f = f.With(WithStyle(""))
		if products, err = m.finder.Find(ctx, f); err != nil {
			return Result{}, err
		}
		if relax == RelaxCategory {
			relax = RelaxCategoryAndStyle
		} else {
			relax = RelaxStyle
		}
	}

	substituted := false
	if !allInStock(products) {
		m.logger.Info("search returned sold out variants, substituting",
			zap.String("category", f.Category()), zap.String("style", f.Style()))
		f = f.With(WithCategory(GenericCategory))
		if products, err = m.finder.Find(ctx, f); err != nil {
			return Result{}, err
		}
		products = inStockOnly(products)
		substituted = true
	}

	if len(products) == 0 {
		relax = RelaxNone
	}

	return Result{
		Products:    products,
		Relaxation:  relax,
		Substituted: substituted,
		Note:        note(requested, relax, substituted, len(products)),
		Filter:      f,
	}, nil
}

func allInStock(products []models.Candidate) bool {
	for _, p := range products {
		if p.Quantity <= 0 {
			return false
		}
	}
	return true
}

func inStockOnly(products []models.Candidate) []models.Candidate {
	out := products[:0]
	for _, p := range products {
		if p.Quantity > 0 {
			out = append(out, p)
		}
	}
	return out
}

func label(f Filter) string {
	if f.Generic() {
		return GenericCategory
	}
	return f.Category()
}

func note(requested Filter, relax Relaxation, substituted bool, n int) string {
	if n == 0 {
		return ""
	}
	var msg string
	switch relax {
	case RelaxCategory:
		msg = fmt.Sprintf("I couldn't find %s matching that exactly, so here are related picks.", label(requested))
	case RelaxStyle:
		msg = fmt.Sprintf("Nothing matched the %s style, so I widened the search.", requested.Style())
	case RelaxCategoryAndStyle:
		msg = fmt.Sprintf("I couldn't find %s in the %s style, so I dropped both and widened the search.", label(requested), requested.Style())
	default:
		msg = ExactNote
	}
	if substituted {
		msg += " Some of those just sold out, so I've swapped in similar items that are in stock."
	}
	return msg
}
