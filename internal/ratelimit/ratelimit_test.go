package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, cfg Config, opts ...Option) (*Limiter, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	configs := DefaultConfigs()
	configs["test"] = cfg

	opts = append(opts, WithClock(clock.now))
	l := New(configs, discardLogger(), opts...)
	t.Cleanup(l.Stop)
	return l, clock
}

func TestAllowWithinWindow(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, Config{MaxRequests: 3, Window: time.Minute, BlockDuration: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, reason := l.Allow(ctx, "client-a", "test")
		require.True(t, ok, "request %d should be allowed, got reason %q", i+1, reason)
	}

	ok, reason := l.Allow(ctx, "client-a", "test")
	assert.False(t, ok, "request over the limit should be rejected")
	assert.Contains(t, reason, "Blocked for 60 seconds")
}

func TestBlockExpires(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, Config{MaxRequests: 1, Window: 10 * time.Second, BlockDuration: 30 * time.Second})
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "c", "test")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "c", "test")
	require.False(t, ok)

	// Still blocked halfway through the block duration, with the
	// remaining time reported.
	clock.advance(15 * time.Second)
	ok, reason := l.Allow(ctx, "c", "test")
	assert.False(t, ok)
	assert.Contains(t, reason, "Try again in 15 seconds")

	// A fresh window starts once the block elapses.
	clock.advance(16 * time.Second)
	ok, _ = l.Allow(ctx, "c", "test")
	assert.True(t, ok)
}

func TestWindowReset(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, Config{MaxRequests: 2, Window: 10 * time.Second, BlockDuration: time.Minute})
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "c", "test")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "c", "test")
	require.True(t, ok)

	// Window expires; the counter starts over.
	clock.advance(11 * time.Second)
	for i := 0; i < 2; i++ {
		ok, reason := l.Allow(ctx, "c", "test")
		assert.True(t, ok, "request %d after window reset, reason %q", i+1, reason)
	}
}

func TestClientsAreIndependent(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute})
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "a", "test")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "a", "test")
	require.False(t, ok)

	// A different client id is unaffected.
	ok, _ = l.Allow(ctx, "b", "test")
	assert.True(t, ok)
}

func TestLimitTypesAreIndependent(t *testing.T) {
	t.Parallel()

	configs := DefaultConfigs()
	configs["first"] = Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute}
	configs["second"] = Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute}

	l := New(configs, discardLogger())
	t.Cleanup(l.Stop)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "c", "first")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "c", "first")
	require.False(t, ok)

	ok, _ = l.Allow(ctx, "c", "second")
	assert.True(t, ok, "blocking one limit type must not affect another")
}

func TestUnknownTypeFallsBackToHTTP(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute})

	cfg := l.Config("no-such-type")
	assert.Equal(t, l.Config(TypeHTTP), cfg)
}

func TestReset(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute})
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "c", "test")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "c", "test")
	require.False(t, ok)

	l.Reset(ctx, "c", "test")

	ok, _ = l.Allow(ctx, "c", "test")
	assert.True(t, ok, "reset should clear the block")
}

func TestSweepPurgesIdleEntries(t *testing.T) {
	t.Parallel()

	l, clock := newTestLimiter(t, Config{MaxRequests: 10, Window: time.Minute, BlockDuration: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "idle", "test")
	l.Allow(ctx, "fresh", "test")

	clock.advance(2 * time.Hour)
	l.Allow(ctx, "fresh", "test") // starts a new window for "fresh"
	l.sweep()

	l.mu.Lock()
	_, idlePresent := l.entries["test:idle"]
	_, freshPresent := l.entries["test:fresh"]
	l.mu.Unlock()

	assert.False(t, idlePresent, "idle entry should be swept")
	assert.True(t, freshPresent, "active entry should survive the sweep")
}

// failingStore always reports unavailability.
type failingStore struct {
	calls int
}

func (s *failingStore) Allow(ctx context.Context, limitType, clientID string, cfg Config) (bool, string, error) {
	s.calls++
	return false, "", errors.New("store down")
}

func (s *failingStore) Reset(ctx context.Context, limitType, clientID string) error {
	return errors.New("store down")
}

func TestStoreErrorFallsBackToMemory(t *testing.T) {
	t.Parallel()

	store := &failingStore{}
	l, _ := newTestLimiter(t,
		Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute},
		WithStore(store))
	ctx := context.Background()

	// The store fails; memory semantics must still hold.
	ok, _ := l.Allow(ctx, "c", "test")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "c", "test")
	require.False(t, ok)

	assert.Equal(t, 2, store.calls, "store should be tried before each fallback")
}

// grantingStore admits everything, proving the store path short-circuits
// the in-memory counters.
type grantingStore struct{}

func (grantingStore) Allow(ctx context.Context, limitType, clientID string, cfg Config) (bool, string, error) {
	return true, "", nil
}

func (grantingStore) Reset(ctx context.Context, limitType, clientID string) error { return nil }

func TestStoreReplacesMemory(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t,
		Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute},
		WithStore(grantingStore{}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow(ctx, "c", "test")
		require.True(t, ok, "store decision should win over memory limits")
	}
}

func TestConcurrentAllow(t *testing.T) {
	t.Parallel()

	l, _ := newTestLimiter(t, Config{MaxRequests: 50, Window: time.Minute, BlockDuration: time.Minute})
	ctx := context.Background()

	allowed := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func() {
			ok, _ := l.Allow(ctx, "same-client", "test")
			allowed <- ok
		}()
	}

	granted := 0
	for i := 0; i < 100; i++ {
		if <-allowed {
			granted++
		}
	}

	assert.Equal(t, 50, granted, "exactly MaxRequests concurrent checks should pass")
}
