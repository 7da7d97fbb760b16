package pubsub

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/unbarrel/internal/config"
)

// NewPubSub creates the event bus named by the configuration.
//
// Backend options:
// - "local": in-process delivery (default)
// - "redis": Redis pub/sub, for listeners outside the process
func NewPubSub(ctx context.Context, cfg config.EventsConfig) (PubSub, error) {
	switch cfg.Backend {
	case "local", "":
		log.Debug().Msg("Using local event bus")
		return NewLocalPubSub(cfg.BufferSize), nil

	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis_url is required for redis event backend")
		}
		ps, err := NewRedisPubSub(ctx, cfg.RedisURL, cfg.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis for events: %w", err)
		}
		return ps, nil

	default:
		return nil, fmt.Errorf("unknown event backend: %s (valid options: local, redis)", cfg.Backend)
	}
}
