package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/models"
)

// Finder runs a product search.
type Finder interface {
	Find(ctx context.Context, f Filter) ([]models.Candidate, error)
}

// Store is the MySQL backed catalog.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Find returns in-stock variants of active products matching f.
func (s *Store) Find(ctx context.Context, f Filter) ([]models.Candidate, error) {
	query, args := f.Build()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var (
			c                                models.Candidate
			brand, keywords, specs, occasion sql.NullString
			imageURL, sizes                  sql.NullString
		)
		err := rows.Scan(&c.ID, &c.Name, &c.Category, &brand, &keywords, &specs, &occasion, &imageURL,
			&c.VariantID, &sizes, &c.Price, &c.Discount, &c.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		c.Brand = brand.String
		c.Keywords = keywords.String
		c.Specs = specs.String
		c.Occasion = occasion.String
		c.ImageURL = imageURL.String
		c.Sizes = models.ParseSizes(sizes.String)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// List returns every active product with its variants.
func (s *Store) List(ctx context.Context) ([]models.CatalogProduct, error) {
	query := `
		SELECT p.id, p.name, p.category, p.brand, p.keywords, p.specs, p.occasion, p.image_url,
		       v.id, v.sizes, v.color, v.price, v.discount, v.sku
		FROM products p
		JOIN product_variants v ON v.product_id = p.id
		WHERE p.is_active = TRUE
		ORDER BY p.id, v.id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.CatalogProduct{}
	for rows.Next() {
		var (
			p                                models.Product
			v                                models.Variant
			brand, keywords, specs, occasion sql.NullString
			imageURL, sizes, color           sql.NullString
		)
		err := rows.Scan(&p.ID, &p.Name, &p.Category, &brand, &keywords, &specs, &occasion, &imageURL,
			&v.ID, &sizes, &color, &v.Price, &v.Discount, &v.SKU)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		v.ProductID = p.ID
		v.Sizes = models.ParseSizes(sizes.String)
		v.Color = color.String

		if n := len(products); n == 0 || products[n-1].ID != p.ID {
			p.Brand = brand.String
			p.Keywords = keywords.String
			p.Specs = specs.String
			p.Occasion = occasion.String
			p.ImageURL = imageURL.String
			p.IsActive = true
			products = append(products, models.CatalogProduct{Product: p})
		}
		last := &products[len(products)-1]
		last.Variants = append(last.Variants, v)
	}
	return products, rows.Err()
}

// StockLevel is one variant's on-hand quantity with display fields.
type StockLevel struct {
	VariantID int64  `json:"variant_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// LowStock lists variants with fewer than below units on hand.
func (s *Store) LowStock(ctx context.Context, below int) ([]StockLevel, error) {
	query := `
		SELECT v.id, v.sku, p.name, i.quantity
		FROM inventory i
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE i.quantity < ?
		ORDER BY i.quantity ASC, v.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, below)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var l StockLevel
		if err := rows.Scan(&l.VariantID, &l.SKU, &l.Name, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

var _ Finder = (*Store)(nil)
