package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/matthieukhl/loom/internal/intent"
	"github.com/matthieukhl/loom/internal/models"
	"github.com/matthieukhl/loom/internal/types"
	"go.uber.org/zap"
)

// ActionRefreshOrders tells the staff console to reload its order feed.
const ActionRefreshOrders = "REFRESH_ORDERS"

const commandPrompt = `You are the Store Operations Manager AI.
Your job is to read staff commands and extract instructions to update order statuses.

RULES:
1. If the staff asks to update an order, extract the "order_id" (usually a short alphanumeric string) and the "new_status".
2. Set intent to "update_order".

Output ONLY strictly valid JSON:
{
  "intent": "update_order" | "report" | "unknown",
  "reply": "Conversational confirmation message.",
  "order_id": "extracted string or null",
  "new_status": "processing" | "packed" | "shipped" | "delivered" | "completed" | "cancelled" | null
}

Staff Input: "%s"`

// Command is a parsed staff instruction.
type Command struct {
	Intent    string `json:"intent"`
	Reply     string `json:"reply"`
	OrderID   string `json:"order_id"`
	NewStatus string `json:"new_status"`
}

// CommandResult is what the staff console shows.
type CommandResult struct {
	Reply  string `json:"reply"`
	Action string `json:"action,omitempty"`
}

// StatusUpdater is the part of Engine the operator drives.
type StatusUpdater interface {
	FindByPrefix(ctx context.Context, prefix string) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID, status string) error
}

// Operator executes natural language staff commands against orders.
type Operator struct {
	orders    StatusUpdater
	generator types.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

func NewOperator(orders StatusUpdater, generator types.Generator, timeout time.Duration, logger *zap.Logger) *Operator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Operator{orders: orders, generator: generator, timeout: timeout, logger: logger}
}

// Handle parses and executes one command. It always returns a reply.
func (o *Operator) Handle(ctx context.Context, message string) CommandResult {
	cmd, err := o.parse(ctx, message)
	if err != nil {
		o.logger.Warn("staff command extraction failed, using fallback", zap.Error(err))
		cmd = ParseCommand(message)
	}

	if cmd.Intent != "update_order" || cmd.OrderID == "" || cmd.NewStatus == "" {
		if cmd.Reply != "" {
			return CommandResult{Reply: cmd.Reply}
		}
		return CommandResult{Reply: "I'm your Operations Copilot. Tell me which order to update!"}
	}

	order, err := o.orders.FindByPrefix(ctx, cmd.OrderID)
	switch {
	case errors.Is(err, ErrNotFound):
		return CommandResult{Reply: fmt.Sprintf("I couldn't find an order matching %q. Can you double-check the ID in the feed?", cmd.OrderID)}
	case errors.Is(err, ErrAmbiguous):
		return CommandResult{Reply: fmt.Sprintf("More than one order starts with %q. Please type a few more characters.", cmd.OrderID)}
	case err != nil:
		o.logger.Error("failed to look up order", zap.String("prefix", cmd.OrderID), zap.Error(err))
		return CommandResult{Reply: "My connection to the database is currently interrupted."}
	}

	short := strings.ToUpper(ShortID(order.ID))
	err = o.orders.UpdateStatus(ctx, order.ID, cmd.NewStatus)
	switch {
	case errors.Is(err, ErrInvalidStatus):
		return CommandResult{Reply: fmt.Sprintf("%q is not an order status I know.", cmd.NewStatus)}
	case errors.Is(err, ErrIllegalTransition):
		return CommandResult{Reply: fmt.Sprintf("Order %s is %s and cannot move to %s.", short, order.Status, cmd.NewStatus)}
	case err != nil:
		o.logger.Error("failed to update order", zap.String("order_id", order.ID), zap.Error(err))
		return CommandResult{Reply: "My connection to the database is currently interrupted."}
	}

	return CommandResult{
		Reply:  fmt.Sprintf("Got it! I have updated order %s to **%s**.", short, strings.ToUpper(cmd.NewStatus)),
		Action: ActionRefreshOrders,
	}
}

func (o *Operator) parse(ctx context.Context, message string) (Command, error) {
	if o.generator == nil {
		return Command{}, errors.New("no generator configured")
	}
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	prompt := fmt.Sprintf(commandPrompt, strings.ReplaceAll(message, `"`, "'"))
	text, err := o.generator.Complete(callCtx, prompt, types.GenerationOptions{MaxTokens: 200, Temperature: 0}.Map())
	if err != nil {
		return Command{}, err
	}
	object, err := intent.ExtractJSON(text)
	if err != nil {
		return Command{}, err
	}
	var cmd Command
	if err := json.Unmarshal([]byte(object), &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to parse command: %w", err)
	}
	cmd.NewStatus = strings.ToLower(strings.TrimSpace(cmd.NewStatus))
	cmd.OrderID = strings.Trim(strings.TrimSpace(cmd.OrderID), "#")
	return cmd, nil
}

var (
	orderRefRe = regexp.MustCompile(`^#?[0-9a-f-]{4,36}$`)
	digitRe    = regexp.MustCompile(`[0-9]`)
)

var statusWords = map[string]string{
	"pending":    models.OrderStatusPending,
	"processing": models.OrderStatusProcessing,
	"packed":     models.OrderStatusPacked,
	"shipped":    models.OrderStatusShipped,
	"delivered":  models.OrderStatusDelivered,
	"completed":  models.OrderStatusCompleted,
	"complete":   models.OrderStatusCompleted,
	"cancelled":  models.OrderStatusCancelled,
	"canceled":   models.OrderStatusCancelled,
	"cancel":     models.OrderStatusCancelled,
}

// ParseCommand is the deterministic reading of commands like
// "mark 3fa8 as shipped".
func ParseCommand(message string) Command {
	var cmd Command
	for _, field := range strings.Fields(strings.ToLower(message)) {
		token := strings.Trim(field, ".,!?:;\"'")
		if status, ok := statusWords[token]; ok && cmd.NewStatus == "" {
			cmd.NewStatus = status
			continue
		}
		if cmd.OrderID == "" && orderRefRe.MatchString(token) && digitRe.MatchString(token) {
			cmd.OrderID = strings.TrimPrefix(token, "#")
		}
	}
	if cmd.OrderID != "" && cmd.NewStatus != "" {
		cmd.Intent = "update_order"
	} else {
		cmd.Intent = "unknown"
	}
	return cmd
}
