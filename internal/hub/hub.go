// Package hub is the connection-handling layer: it admits WebSocket
// connections (rate limit, optional token verification), runs the
// per-connection read loops for both protocol variants and serves the
// administrative read API.
package hub

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/luciancaetano/syncroom"
	"github.com/luciancaetano/syncroom/internal/auth"
	"github.com/luciancaetano/syncroom/internal/config"
	"github.com/luciancaetano/syncroom/internal/ratelimit"
	"github.com/luciancaetano/syncroom/internal/room"
)

// Hub owns the room and session registries, the rate limiter and the
// HTTP surface. It implements syncroom.Server.
type Hub struct {
	cfg      config.Config
	rooms    *room.Manager
	sessions *room.Manager
	limiter  *ratelimit.Limiter
	verifier *auth.Verifier
	logger   *slog.Logger
	upgrader websocket.Upgrader

	server *http.Server

	mu      sync.Mutex
	running bool
	conns   map[string]*wsConn
}

// Option configures a Hub.
type Option func(*Hub)

// WithRateLimitStore attaches a shared rate-limit store (Redis).
func WithRateLimitStore(s ratelimit.Store) Option {
	return func(h *Hub) {
		h.limiter.Stop()
		h.limiter = ratelimit.New(ratelimit.DefaultConfigs(), h.logger, ratelimit.WithStore(s))
	}
}

// New builds a Hub from configuration. Call Start to begin serving and
// Stop to shut everything down, reapers included.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		cfg:      cfg,
		logger:   logger,
		limiter:  ratelimit.New(ratelimit.DefaultConfigs(), logger),
		verifier: auth.NewVerifier(cfg.JWTSecret),
		conns:    make(map[string]*wsConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy belongs to the deployment's proxy layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	h.rooms = room.NewManager(room.ManagerConfig{
		DocChannel:    true,
		IdleTTL:       cfg.RoomIdleTTL,
		SweepInterval: cfg.RoomSweepInterval,
		Logger:        logger.With("component", "rooms"),
	})
	h.sessions = room.NewManager(room.ManagerConfig{
		DocChannel:    false,
		IdleTTL:       cfg.SessionIdleTTL,
		SweepInterval: cfg.SessionSweepInterval,
		Logger:        logger.With("component", "sessions"),
	})

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Router assembles the HTTP surface: the two WebSocket endpoints plus
// the administrative read API. WebSocket routes bypass the HTTP
// middleware chain because the logging wrapper does not implement
// http.Hijacker.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/yjs/{session_id}/ws", h.handleDocSocket)
	r.HandleFunc("/sessions/{session_id}/ws", h.handleSessionSocket)

	api := r.NewRoute().Subrouter()
	api.Use(
		recoveryMiddleware(h.logger),
		loggingMiddleware(h.logger),
		rateLimitMiddleware(h.limiter, h.logger),
	)
	api.HandleFunc("/yjs/rooms", h.handleListRooms).Methods(http.MethodGet)
	api.HandleFunc("/yjs/rooms/{room_id:.+}", h.handleGetRoom).Methods(http.MethodGet)
	api.HandleFunc("/yjs/rooms/{room_id:.+}", h.handleCloseRoom).Methods(http.MethodDelete)
	api.HandleFunc("/sessions", h.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions", h.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session_id}", h.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{session_id}/leave", h.handleLeaveSession).Methods(http.MethodPost)

	return r
}

// Start starts the HTTP listener. It returns once the server is
// accepting connections or has failed to bind.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return syncroom.ErrServerAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	h.server = &http.Server{
		Addr:    h.cfg.Addr,
		Handler: h.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		h.logger.Info("server listening", "addr", h.cfg.Addr)
		return nil
	}
}

// Stop closes every live connection, stops both reapers and the rate
// limit sweep, and shuts the HTTP listener down.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	conns := make([]*wsConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}

	h.rooms.Stop()
	h.sessions.Stop()
	h.limiter.Stop()

	if h.server != nil {
		return h.server.Shutdown(ctx)
	}
	return nil
}

func (h *Hub) track(c *wsConn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) untrack(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// safeHandle runs one message handler with panic recovery so a bad
// message never tears down the connection loop or the room.
func (h *Hub) safeHandle(clientID string, fn func()) {
	defer func() {
		if err := recover(); err != nil {
			h.logger.Error("panic handling message", "client_id", clientID, "panic", err)
		}
	}()
	fn()
}

// clientIP extracts the client address for rate-limit keying, honoring
// proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
