// Package cart mutates session carts against on-hand inventory.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/loyalty"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/matthieukhl/loom/internal/sessions"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidRequest is returned for a missing session or variant reference.
var ErrInvalidRequest = errors.New("invalid cart request")

// StockLimitError refuses an addition that would exceed on-hand stock.
type StockLimitError struct {
	Available int
	InCart    int
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("Only %d left in stock. You already have %d in your cart.", e.Available, e.InCart)
}

// Code is the machine readable refusal tag.
func (e *StockLimitError) Code() string {
	return models.ActionStockLimit
}

// Service is the cart mutator.
type Service struct {
	db       *database.DB
	recorder audit.Recorder
	logger   *zap.Logger
}

func NewService(db *database.DB, recorder audit.Recorder, logger *zap.Logger) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, recorder: recorder, logger: logger}
}

type AddRequest struct {
	SessionID string `json:"sessionId"`
	VariantID int64  `json:"variantId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

type AddResult struct {
	VariantID int64          `json:"variant_id"`
	Size      string         `json:"size"`
	InCart    int            `json:"in_cart"`
	Reward    loyalty.Reward `json:"loyalty"`
}

func (r *AddRequest) validate() error {
	r.SessionID = strings.TrimSpace(r.SessionID)
	if r.SessionID == "" || r.VariantID <= 0 || r.Quantity < 0 {
		return ErrInvalidRequest
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}
	r.Size = strings.TrimSpace(r.Size)
	if r.Size == "" {
		r.Size = models.UniversalSize
	}
	return nil
}

// Add puts quantity units of a variant in the cart. The inventory row stays
// locked from the stock check until the cart row is written, so concurrent
// additions cannot both pass the check.
func (s *Service) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, req.SessionID, models.AgentInventory, models.ActionCheckStock, map[string]any{
		"message": fmt.Sprintf("Checking stock availability for Item #%d...", req.VariantID),
	})

	var (
		inCart int
		price  decimal.Decimal
	)
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := sessions.Ensure(ctx, tx, req.SessionID); err != nil {
			return err
		}

		var available int
		err := tx.QueryRowContext(ctx, `
			SELECT i.quantity, v.price
			FROM inventory i
			JOIN product_variants v ON v.id = i.variant_id
			WHERE i.variant_id = ?
			FOR UPDATE
		`, req.VariantID).Scan(&available, &price)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock inventory: %w", err)
		}

		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(quantity), 0)
			FROM cart_items
			WHERE session_id = ? AND variant_id = ?
		`, req.SessionID, req.VariantID).Scan(&inCart)
		if err != nil {
			return fmt.Errorf("failed to read cart quantity: %w", err)
		}

		if inCart+req.Quantity > available {
			return &StockLimitError{Available: available, InCart: inCart}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (session_id, variant_id, size, quantity)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)
		`, req.SessionID, req.VariantID, req.Size, req.Quantity)
		if err != nil {
			return fmt.Errorf("failed to write cart item: %w", err)
		}
		inCart += req.Quantity
		return nil
	})

	var limit *StockLimitError
	if errors.As(err, &limit) {
		s.recorder.Record(ctx, req.SessionID, models.AgentInventory, models.ActionStockLimit, map[string]any{
			"message":    limit.Error(),
			"variant_id": req.VariantID,
			"available":  limit.Available,
			"in_cart":    limit.InCart,
		})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	reward := loyalty.ForLine(price, req.Quantity)
	s.recorder.Record(ctx, req.SessionID, models.AgentInventory, models.ActionAddToCart, map[string]any{
		"message":    fmt.Sprintf("Added %d × Item #%d (size %s) to cart. %s", req.Quantity, req.VariantID, req.Size, reward.Message),
		"variant_id": req.VariantID,
		"quantity":   req.Quantity,
		"size":       req.Size,
		"tier":       reward.Tier,
	})

	return &AddResult{VariantID: req.VariantID, Size: req.Size, InCart: inCart, Reward: reward}, nil
}

// Remove deletes a variant from the cart in every size.
func (s *Service) Remove(ctx context.Context, sessionID string, variantID int64) error {
	if sessionID == "" || variantID <= 0 {
		return ErrInvalidRequest
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = ? AND variant_id = ?", sessionID, variantID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	s.recorder.Record(ctx, sessionID, models.AgentSales, models.ActionRemoveItem, map[string]any{
		"message":    fmt.Sprintf("Removed Item #%d from cart.", variantID),
		"variant_id": variantID,
	})
	return nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidRequest
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.recorder.Record(ctx, sessionID, models.AgentSales, models.ActionClearCart, map[string]any{
		"message": "Cart cleared.",
	})
	return nil
}

// Cart is a priced view of a session's cart.
type Cart struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

// Get returns the cart. Lines whose variant no longer exists are priced at
// zero and named after their variant id.
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	cart := &Cart{Items: []models.CartItem{}, Total: decimal.Zero}
	if sessionID == "" {
		return cart, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.id, ci.session_id, ci.variant_id, ci.size, ci.quantity,
		       COALESCE(v.price, 0), p.name, p.image_url
		FROM cart_items ci
		LEFT JOIN product_variants v ON v.id = ci.variant_id
		LEFT JOIN products p ON p.id = v.product_id
		WHERE ci.session_id = ?
		ORDER BY ci.id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item           models.CartItem
			name, imageURL sql.NullString
		)
		err := rows.Scan(&item.ID, &item.SessionID, &item.VariantID, &item.Size, &item.Quantity,
			&item.Price, &name, &imageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.Name = name.String
		if !name.Valid {
			item.Name = fmt.Sprintf("Item #%d", item.VariantID)
		}
		item.ImageURL = imageURL.String
		cart.Items = append(cart.Items, item)
		cart.Total = cart.Total.Add(item.LineTotal())
	}
	return cart, rows.Err()
}
