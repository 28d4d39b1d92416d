// Package ratelimit implements fixed-window admission control for
// connections, messages and HTTP requests.
//
// Each limit type carries its own window configuration. Counters are
// kept per (limit type, client id) in memory; an optional shared store
// (Redis) can replace the in-memory table transparently, with graceful
// fallback to memory when the store is unavailable.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Limit types known to the default configuration.
const (
	TypeWebsocketConnect = "websocket_connect"
	TypeWebsocketMessage = "websocket_message"
	TypeHTTP             = "http"
	TypeAuth             = "auth"
)

// Config defines a fixed-window rate limit.
type Config struct {
	// MaxRequests is the number of requests allowed per window.
	MaxRequests int
	// Window is the fixed counting window.
	Window time.Duration
	// BlockDuration is how long a client stays blocked after
	// exceeding MaxRequests.
	BlockDuration time.Duration
}

// DefaultConfigs returns the default per-type limits.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		TypeWebsocketConnect: {MaxRequests: 10, Window: time.Minute, BlockDuration: 5 * time.Minute},
		TypeWebsocketMessage: {MaxRequests: 100, Window: 10 * time.Second, BlockDuration: time.Minute},
		TypeHTTP:             {MaxRequests: 100, Window: time.Minute, BlockDuration: time.Minute},
		TypeAuth:             {MaxRequests: 5, Window: 5 * time.Minute, BlockDuration: 15 * time.Minute},
	}
}

// Store is a shared counter backend. Allow returns whether the request
// is admitted and, when it is not, a human-readable reason. A non-nil
// error means the store is unavailable and the caller should fall back
// to in-memory counting.
type Store interface {
	Allow(ctx context.Context, limitType, clientID string, cfg Config) (bool, string, error)
	Reset(ctx context.Context, limitType, clientID string) error
}

// entry tracks one (limit type, client id) window.
type entry struct {
	requests     int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter is a fixed-window rate limiter with per-type configuration.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	configs map[string]Config
	store   Store
	logger  *slog.Logger
	now     func() time.Time

	sweepInterval time.Duration
	maxIdle       time.Duration
	stopC         chan struct{}
	stopOnce      sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore attaches a shared counter backend. Store errors fall back
// to in-memory counting.
func WithStore(s Store) Option {
	return func(l *Limiter) { l.store = s }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter with the given per-type configs. Unknown limit
// types fall back to the "http" config. A background sweep purges
// entries that have been idle for over an hour; call Stop to end it.
func New(configs map[string]Config, logger *slog.Logger, opts ...Option) *Limiter {
	if configs == nil {
		configs = DefaultConfigs()
	}
	l := &Limiter{
		entries:       make(map[string]*entry),
		configs:       configs,
		logger:        logger,
		now:           time.Now,
		sweepInterval: 10 * time.Minute,
		maxIdle:       time.Hour,
		stopC:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.sweepLoop()

	return l
}

// Stop ends the background sweep goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopC) })
}

// Config returns the configuration for a limit type, falling back to
// the "http" config for unknown types.
func (l *Limiter) Config(limitType string) Config {
	if cfg, ok := l.configs[limitType]; ok {
		return cfg
	}
	return l.configs[TypeHTTP]
}

// SetConfig replaces the configuration for a limit type.
func (l *Limiter) SetConfig(limitType string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configs[limitType] = cfg
}

// Allow checks whether a request from clientID is admitted under the
// given limit type. When it is not, the returned reason tells the
// client how long to wait.
func (l *Limiter) Allow(ctx context.Context, clientID, limitType string) (bool, string) {
	cfg := l.Config(limitType)

	if l.store != nil {
		ok, reason, err := l.store.Allow(ctx, limitType, clientID, cfg)
		if err == nil {
			return ok, reason
		}
		l.logger.Warn("rate limit store unavailable, falling back to memory",
			"limit_type", limitType, "error", err)
	}

	return l.allowMemory(clientID, limitType, cfg)
}

func (l *Limiter) allowMemory(clientID, limitType string, cfg Config) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := limitType + ":" + clientID

	e, ok := l.entries[key]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[key] = e
	}

	if now.Before(e.blockedUntil) {
		remaining := int(e.blockedUntil.Sub(now).Seconds())
		return false, fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", remaining)
	}

	if now.Sub(e.windowStart) > cfg.Window {
		e.requests = 0
		e.windowStart = now
		e.blockedUntil = time.Time{}
	}

	e.requests++

	if e.requests > cfg.MaxRequests {
		e.blockedUntil = now.Add(cfg.BlockDuration)
		return false, fmt.Sprintf("Rate limit exceeded. Blocked for %d seconds", int(cfg.BlockDuration.Seconds()))
	}

	return true, ""
}

// Reset clears the counters for a client. Administrative, not part of
// the hot path.
func (l *Limiter) Reset(ctx context.Context, clientID, limitType string) {
	l.mu.Lock()
	delete(l.entries, limitType+":"+clientID)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Reset(ctx, limitType, clientID); err != nil {
			l.logger.Warn("rate limit store reset failed",
				"limit_type", limitType, "client_id", clientID, "error", err)
		}
	}
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopC:
			return
		}
	}
}

// sweep removes entries whose window has been idle past maxIdle.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.Sub(e.windowStart) > l.maxIdle && now.After(e.blockedUntil) {
			delete(l.entries, key)
			removed++
		}
	}

	if removed > 0 {
		l.logger.Debug("swept idle rate limit entries", "removed", removed)
	}
}
