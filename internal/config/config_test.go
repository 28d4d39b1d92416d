package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8081", cfg.Addr)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.RoomIdleTTL)
	assert.Equal(t, 10*time.Minute, cfg.RoomSweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.SessionIdleTTL)
	assert.Equal(t, float64(100), cfg.MessagesPerSecond)
	assert.Equal(t, 200, cfg.MessageBurst)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYNCROOM_ADDR", ":9000")
	t.Setenv("SYNCROOM_JWT_SECRET", "s3cret")
	t.Setenv("SYNCROOM_ROOM_IDLE_TTL", "30m")
	t.Setenv("SYNCROOM_MESSAGE_BURST", "50")
	t.Setenv("SYNCROOM_LOG_LEVEL", "debug")

	cfg := FromEnv()

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.RoomIdleTTL)
	assert.Equal(t, 50, cfg.MessageBurst)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SYNCROOM_ROOM_IDLE_TTL", "not-a-duration")
	t.Setenv("SYNCROOM_MESSAGE_BURST", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, time.Hour, cfg.RoomIdleTTL)
	assert.Equal(t, 200, cfg.MessageBurst)
}
