package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/matthieukhl/loom/internal/models"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk catalog fixture format.
type SeedFile struct {
	Products []SeedProduct `yaml:"products"`
}

type SeedProduct struct {
	Name     string        `yaml:"name"`
	Category string        `yaml:"category"`
	Brand    string        `yaml:"brand"`
	Keywords string        `yaml:"keywords"`
	Specs    string        `yaml:"specs"`
	Occasion string        `yaml:"occasion"`
	ImageURL string        `yaml:"image_url"`
	Variants []SeedVariant `yaml:"variants"`
}

type SeedVariant struct {
	SKU      string   `yaml:"sku"`
	Color    string   `yaml:"color"`
	Sizes    []string `yaml:"sizes"`
	Price    string   `yaml:"price"`
	Discount string   `yaml:"discount"`
	Stock    int      `yaml:"stock"`
}

// LoadSeedFile reads and validates a YAML fixture.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates fixture bytes.
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for _, p := range seed.Products {
		if p.Name == "" || p.Category == "" {
			return nil, fmt.Errorf("product needs a name and a category: %+v", p)
		}
		if len(p.Variants) == 0 {
			return nil, fmt.Errorf("product %q has no variants", p.Name)
		}
		for _, v := range p.Variants {
			if v.SKU == "" {
				return nil, fmt.Errorf("product %q has a variant without sku", p.Name)
			}
			if _, err := decimal.NewFromString(v.Price); err != nil {
				return nil, fmt.Errorf("variant %s has invalid price %q", v.SKU, v.Price)
			}
			if v.Stock < 0 {
				return nil, fmt.Errorf("variant %s has negative stock", v.SKU)
			}
		}
	}
	return &seed, nil
}

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Products int
	Variants int
}

// Seed inserts the fixture in one transaction. Duplicate SKUs abort the
// whole seed.
func (s *Store) Seed(ctx context.Context, seed *SeedFile) (SeedResult, error) {
	var result SeedResult
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, p := range seed.Products {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO products (name, category, brand, keywords, specs, occasion, image_url, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?, TRUE)
			`, p.Name, p.Category, p.Brand, p.Keywords, p.Specs, p.Occasion, p.ImageURL)
			if err != nil {
				return fmt.Errorf("failed to insert product %q: %w", p.Name, err)
			}
			productID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get product id: %w", err)
			}
			result.Products++

			for _, v := range p.Variants {
				if err := seedVariant(ctx, tx, productID, v); err != nil {
					return err
				}
				result.Variants++
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}

func seedVariant(ctx context.Context, tx *sql.Tx, productID int64, v SeedVariant) error {
	price := decimal.RequireFromString(v.Price)
	discount := decimal.Zero
	if v.Discount != "" {
		d, err := decimal.NewFromString(v.Discount)
		if err != nil {
			return fmt.Errorf("variant %s has invalid discount %q", v.SKU, v.Discount)
		}
		discount = d
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO product_variants (product_id, sizes, color, price, discount, sku)
		VALUES (?, ?, ?, ?, ?, ?)
	`, productID, models.EncodeSizes(v.Sizes), v.Color, price.String(), discount.String(), v.SKU)
	if err != nil {
		return fmt.Errorf("failed to insert variant %s: %w", v.SKU, err)
	}
	variantID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get variant id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory (variant_id, quantity) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)
	`, variantID, v.Stock)
	if err != nil {
		return fmt.Errorf("failed to set stock for %s: %w", v.SKU, err)
	}
	return nil
}
