// Package memory keeps the short-lived conversational context of each
// session, currently the last concrete category the shopper browsed.
package memory

import (
	"context"

	"github.com/matthieukhl/loom/internal/intent"
	"go.uber.org/zap"
)

// Store abstracts the per-session context storage.
type Store interface {
	// Get returns the last category for the session, or "" when none is held.
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, category string) error
	Clear(ctx context.Context, sessionID string) error
}

// Apply adjusts in using the session's memory and updates the memory from it.
// Store errors are logged and otherwise ignored.
func Apply(ctx context.Context, store Store, logger *zap.Logger, sessionID string, in *intent.Intent) {
	if store == nil || in == nil || sessionID == "" {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if in.ResetMemory {
		if err := store.Clear(ctx, sessionID); err != nil {
			logger.Warn("failed to clear conversation memory", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}

	if in.Kind != intent.KindBrowse {
		return
	}

	if in.IsGeneric() {
		if !in.HasFilter() {
			return
		}
		last, err := store.Get(ctx, sessionID)
		if err != nil {
			logger.Warn("failed to read conversation memory", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
		if last != "" {
			in.Category = last
		}
		return
	}

	if err := store.Set(ctx, sessionID, in.Category); err != nil {
		logger.Warn("failed to write conversation memory", zap.String("session_id", sessionID), zap.Error(err))
	}
}
