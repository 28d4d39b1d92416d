package syncroom

import "context"

// Server is the collaboration server: it owns the room and session
// registries, the rate limiter and the HTTP/WebSocket surface.
//
// Construct one through the ws package:
//
//	server := ws.New(cfg, slog.Default())
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Server interface {
	// Start starts the server and begins accepting connections.
	// It returns an error if the server is already running or the
	// listen address cannot be bound.
	Start(ctx context.Context) error

	// Stop gracefully stops the server: every live connection is
	// closed, both reapers are stopped and the HTTP listener is
	// shut down.
	Stop(ctx context.Context) error
}
