package memory

import (
	"fmt"

	"github.com/matthieukhl/loom/internal/config"
)

// NewStore creates the store selected by configuration.
func NewStore(cfg *config.MemoryConfig) (Store, error) {
	switch cfg.Backend {
	case "lru", "":
		return NewLRUStore(cfg.Size, cfg.TTL), nil
	case "redis":
		return NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Backend)
	}
}
