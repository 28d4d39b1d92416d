// Package ws is the public constructor for the synchronization server.
// It wires configuration, logging and the optional shared rate-limit
// store into the connection hub.
package ws

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/luciancaetano/syncroom"
	"github.com/luciancaetano/syncroom/internal/config"
	"github.com/luciancaetano/syncroom/internal/hub"
	"github.com/luciancaetano/syncroom/internal/ratelimit"
)

type Config = config.Config

// FromEnv loads configuration from SYNCROOM_* environment variables,
// falling back to defaults.
func FromEnv() Config {
	return config.FromEnv()
}

// New creates a synchronization server from configuration.
//
// Example:
//
//	cfg := ws.FromEnv()
//	srv := ws.New(cfg, slog.Default())
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg Config, logger *slog.Logger) syncroom.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return hub.New(cfg, logger)
}

// NewWithRedis creates a server whose fixed-window rate limits are
// shared across instances through the given Redis client. Limits fall
// back to per-instance in-memory counters if Redis becomes
// unreachable.
func NewWithRedis(cfg Config, logger *slog.Logger, rdb *redis.Client) syncroom.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return hub.New(cfg, logger, hub.WithRateLimitStore(ratelimit.NewRedisStore(rdb)))
}
