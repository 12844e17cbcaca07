// Package orders places carts as orders and moves them through their
// lifecycle while keeping inventory consistent.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matthieukhl/loom/internal/audit"
	"github.com/matthieukhl/loom/internal/cart"
	"github.com/matthieukhl/loom/internal/database"
	"github.com/matthieukhl/loom/internal/loyalty"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotFound          = errors.New("order not found")
	ErrAmbiguous         = errors.New("order id prefix matches more than one order")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidStatus     = errors.New("invalid order status")
)

// MarkerPrefix starts the reference other channels poll for.
const MarkerPrefix = "WA_ORDER_"

// Engine is the order state machine.
type Engine struct {
	db       *database.DB
	recorder audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewEngine(db *database.DB, recorder audit.Recorder, logger *zap.Logger) *Engine {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, recorder: recorder, logger: logger, now: time.Now}
}

// Placement is the outcome of placing an order.
type Placement struct {
	Order   models.Order   `json:"order"`
	Marker  string         `json:"marker"`
	Receipt string         `json:"receipt"`
	Message string         `json:"message"`
	Reward  loyalty.Reward `json:"loyalty"`
}

type line struct {
	variantID int64
	quantity  int
	price     decimal.Decimal
	name      string
}

// ShortID is the display form of an order id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Place turns the session's cart into a pending order. Inventory is
// decremented, item prices are snapshotted and the cart is cleared in one
// transaction; any failure leaves everything untouched.
func (e *Engine) Place(ctx context.Context, sessionID string) (*Placement, error) {
	if sessionID == "" {
		return nil, cart.ErrInvalidRequest
	}

	order := models.Order{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Status:    models.OrderStatusPending,
		Items:     []models.OrderLine{},
	}
	var receipt strings.Builder

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		lines, err := cartLines(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO orders (id, session_id, total_amount, status) VALUES (?, ?, 0, ?)",
			order.ID, sessionID, models.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		total := decimal.Zero
		for _, l := range lines {
			if err := decrement(ctx, tx, l); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO order_items (order_id, variant_id, quantity, price) VALUES (?, ?, ?, ?)",
				order.ID, l.variantID, l.quantity, l.price.StringFixed(2))
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}

			lineTotal := l.price.Mul(decimal.NewFromInt(int64(l.quantity)))
			total = total.Add(lineTotal)
			fmt.Fprintf(&receipt, "• %s (x%d) - ₹%s\n", l.name, l.quantity, lineTotal.StringFixed(0))
			order.Items = append(order.Items, models.OrderLine{Name: l.name, Quantity: l.quantity})
		}

		if _, err := tx.ExecContext(ctx, "UPDATE orders SET total_amount = ? WHERE id = ?", total.StringFixed(2), order.ID); err != nil {
			return fmt.Errorf("failed to set order total: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		order.TotalAmount = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.CreatedAt = e.now()
	p := &Placement{
		Order:   order,
		Marker:  fmt.Sprintf("[%s%d]", MarkerPrefix, order.CreatedAt.UnixMilli()),
		Receipt: receipt.String(),
		Reward:  loyalty.Calculate(order.TotalAmount),
	}
	p.Message = confirmation(p)

	short := ShortID(order.ID)
	e.recorder.Record(ctx, sessionID, models.AgentPayment, models.ActionProcessPayment, map[string]any{
		"message": fmt.Sprintf("Processing payment of ₹%s...", order.TotalAmount.StringFixed(0)),
		"orderId": order.ID,
	})
	e.recorder.Record(ctx, sessionID, models.AgentFulfillment, models.ActionOrderPacked, map[string]any{
		"message": fmt.Sprintf("Order #%s sent to warehouse.", short),
		"orderId": order.ID,
	})
	e.recorder.Record(ctx, sessionID, models.AgentPostPurchase, models.ActionOrderConfirmation, map[string]any{
		"message": p.Message,
		"orderId": order.ID,
	})

	e.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("session_id", sessionID),
		zap.String("total", order.TotalAmount.String()),
		zap.Int("lines", len(order.Items)))
	return p, nil
}

func confirmation(p *Placement) string {
	return fmt.Sprintf("%s ✅ *Order Placed Successfully!* 🎉\n\n🆔 *Order ID:* #%s\n\n🛒 *Items:*\n%s\n💰 *Total Paid:* ₹%s\n🏅 *%s tier:* %s\n\nWould you like to see similar items?",
		p.Marker, ShortID(p.Order.ID), p.Receipt, p.Order.TotalAmount.StringFixed(0), p.Reward.Tier, p.Reward.Message)
}

func cartLines(ctx context.Context, tx *sql.Tx, sessionID string) ([]line, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.variant_id, ci.quantity, COALESCE(v.price, 0), COALESCE(p.name, 'Item')
		FROM cart_items ci
		LEFT JOIN product_variants v ON v.id = ci.variant_id
		LEFT JOIN products p ON p.id = v.product_id
		WHERE ci.session_id = ?
		ORDER BY ci.id
		FOR UPDATE
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	defer rows.Close()

	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.variantID, &l.quantity, &l.price, &l.name); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// decrement takes stock only if enough remains.
func decrement(ctx context.Context, tx *sql.Tx, l line) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE inventory SET quantity = quantity - ? WHERE variant_id = ? AND quantity >= ?",
		l.quantity, l.variantID, l.quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to decrement inventory: %w", err)
	}
	if n > 0 {
		return nil
	}

	var available int
	err = tx.QueryRowContext(ctx, "SELECT quantity FROM inventory WHERE variant_id = ?", l.variantID).Scan(&available)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read inventory: %w", err)
	}
	return &cart.StockLimitError{Available: available, InCart: l.quantity}
}

// lockOrder reads an order's session and status and holds its row lock.
func lockOrder(ctx context.Context, tx *sql.Tx, orderID string) (sessionID, status string, err error) {
	err = tx.QueryRowContext(ctx, "SELECT session_id, status FROM orders WHERE id = ? FOR UPDATE", orderID).
		Scan(&sessionID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to lock order: %w", err)
	}
	return sessionID, status, nil
}

// Cancel restores every ordered unit to inventory and marks the order
// cancelled. Delivered, completed and cancelled orders are refused.
func (e *Engine) Cancel(ctx context.Context, orderID string) error {
	var sessionID string
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		sid, status, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		sessionID = sid
		if !Cancellable(status) {
			return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, status, models.OrderStatusCancelled)
		}
		return cancelLocked(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}

	e.recorder.Record(ctx, sessionID, models.AgentCustomer, models.ActionOrderCancelled, map[string]any{
		"message": fmt.Sprintf("❌ Order #%s was cancelled.", ShortID(orderID)),
		"orderId": orderID,
	})
	return nil
}

func cancelLocked(ctx context.Context, tx *sql.Tx, orderID string) error {
	rows, err := tx.QueryContext(ctx, "SELECT variant_id, quantity FROM order_items WHERE order_id = ?", orderID)
	if err != nil {
		return fmt.Errorf("failed to read order items: %w", err)
	}
	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.VariantID, &it.Quantity); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read order items: %w", err)
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx, "UPDATE inventory SET quantity = quantity + ? WHERE variant_id = ?", it.Quantity, it.VariantID)
		if err != nil {
			return fmt.Errorf("failed to restore inventory: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", models.OrderStatusCancelled, orderID); err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	return nil
}

// UpdateStatus moves an order forward. A move to cancelled restores stock
// like Cancel.
func (e *Engine) UpdateStatus(ctx context.Context, orderID, status string) error {
	to, err := ParseStatus(status)
	if err != nil {
		return err
	}

	var sessionID, from string
	err = e.db.WithTx(ctx, func(tx *sql.Tx) error {
		sessionID, from, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, from, to)
		}
		if to == models.OrderStatusCancelled {
			return cancelLocked(ctx, tx, orderID)
		}
		_, err := tx.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", to, orderID)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.recorder.Record(ctx, sessionID, models.AgentOperations, models.ActionStatusUpdated, map[string]any{
		"message": fmt.Sprintf("Order #%s is now %s.", ShortID(orderID), to),
		"orderId": orderID,
		"from":    from,
		"status":  to,
	})
	return nil
}

// List returns orders newest first with item summaries. An empty sessionID
// lists every order.
func (e *Engine) List(ctx context.Context, sessionID string) ([]models.Order, error) {
	query := `
		SELECT o.id, o.session_id, o.total_amount, o.status, o.created_at,
		       COALESCE(p.name, 'Item'), oi.quantity
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN product_variants v ON v.id = oi.variant_id
		LEFT JOIN products p ON p.id = v.product_id
	`
	var args []any
	if sessionID != "" {
		query += "WHERE o.session_id = ?\n"
		args = append(args, sessionID)
	}
	query += "ORDER BY o.created_at DESC, o.id, oi.id"

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var (
			o    models.Order
			name string
			qty  sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &o.SessionID, &o.TotalAmount, &o.Status, &o.CreatedAt, &name, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if n := len(orders); n == 0 || orders[n-1].ID != o.ID {
			o.Items = []models.OrderLine{}
			orders = append(orders, o)
		}
		if qty.Valid {
			last := &orders[len(orders)-1]
			last.Items = append(last.Items, models.OrderLine{Name: name, Quantity: int(qty.Int64)})
		}
	}
	return orders, rows.Err()
}

// FindByPrefix resolves a short order reference typed by staff.
func (e *Engine) FindByPrefix(ctx context.Context, prefix string) (*models.Order, error) {
	prefix = strings.ToLower(strings.Trim(strings.TrimSpace(prefix), "#"))
	if len(prefix) < 4 || strings.ContainsAny(prefix, "%_") {
		return nil, ErrNotFound
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT id, session_id, total_amount, status, created_at
		FROM orders
		WHERE id LIKE ?
		ORDER BY created_at DESC
		LIMIT 2
	`, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	defer rows.Close()

	var found []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.SessionID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		found = append(found, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &found[0], nil
	default:
		return nil, ErrAmbiguous
	}
}
