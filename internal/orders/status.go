package orders

import (
	"fmt"
	"strings"

	"github.com/matthieukhl/loom/internal/models"
)

// progress orders the forward states; cancelled sits outside it.
var progress = map[string]int{
	models.OrderStatusPending:    0,
	models.OrderStatusProcessing: 1,
	models.OrderStatusPacked:     2,
	models.OrderStatusShipped:    3,
	models.OrderStatusDelivered:  4,
	models.OrderStatusCompleted:  5,
}

// ParseStatus validates a caller supplied status.
func ParseStatus(s string) (string, error) {
	status := strings.ToLower(strings.TrimSpace(s))
	if _, ok := progress[status]; ok || status == models.OrderStatusCancelled {
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Cancellable reports whether an order in status may still be cancelled.
func Cancellable(status string) bool {
	rank, ok := progress[status]
	return ok && rank < progress[models.OrderStatusDelivered]
}

// CanTransition reports whether from may move to to. Statuses only move
// forward; cancellation is allowed until delivery.
func CanTransition(from, to string) bool {
	if to == models.OrderStatusCancelled {
		return Cancellable(from)
	}
	fromRank, ok := progress[from]
	if !ok {
		return false
	}
	toRank, ok := progress[to]
	return ok && toRank > fromRank
}
