// Package config loads server configuration from the environment with
// sensible defaults for local development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8081".
	Addr string

	// JWTSecret enables admission-time token verification when set.
	// Empty disables authentication at this layer.
	JWTSecret string

	// RedisAddr enables the shared rate-limit store when set. Empty
	// keeps rate limiting in-memory.
	RedisAddr string

	// RoomIdleTTL and RoomSweepInterval control reaping of empty
	// document rooms.
	RoomIdleTTL       time.Duration
	RoomSweepInterval time.Duration

	// SessionIdleTTL and SessionSweepInterval control reaping of
	// presence-only sessions. Sessions tolerate much longer idle
	// periods since a session may sit empty between reconnects.
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	// MessagesPerSecond and MessageBurst configure the per-connection
	// token bucket in front of the fixed-window limits.
	MessagesPerSecond float64
	MessageBurst      int

	// LogLevel is one of debug, info, warn, error.
	LogLevel slog.Level
}

// FromEnv builds a Config from SYNCROOM_* environment variables,
// falling back to defaults for anything unset.
func FromEnv() Config {
	return Config{
		Addr:                 getenv("SYNCROOM_ADDR", ":8081"),
		JWTSecret:            getenv("SYNCROOM_JWT_SECRET", ""),
		RedisAddr:            getenv("SYNCROOM_REDIS_ADDR", ""),
		RoomIdleTTL:          getduration("SYNCROOM_ROOM_IDLE_TTL", time.Hour),
		RoomSweepInterval:    getduration("SYNCROOM_ROOM_SWEEP_INTERVAL", 10*time.Minute),
		SessionIdleTTL:       getduration("SYNCROOM_SESSION_IDLE_TTL", 24*time.Hour),
		SessionSweepInterval: getduration("SYNCROOM_SESSION_SWEEP_INTERVAL", 10*time.Minute),
		MessagesPerSecond:    getfloat("SYNCROOM_MESSAGES_PER_SECOND", 100),
		MessageBurst:         getint("SYNCROOM_MESSAGE_BURST", 200),
		LogLevel:             getlevel("SYNCROOM_LOG_LEVEL", slog.LevelInfo),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getlevel(key string, fallback slog.Level) slog.Level {
	var level slog.Level
	if v := os.Getenv(key); v != "" {
		if err := level.UnmarshalText([]byte(v)); err == nil {
			return level
		}
	}
	return fallback
}
