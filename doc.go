// Package syncroom provides the real-time collaboration backend for a
// browser-based IDE: shared editing rooms, presence (cursors, selections,
// awareness) and a binary document synchronization channel over WebSocket.
//
// # Architecture
//
// A Room is the unit of collaboration. Each connected editor joins a room
// keyed by a session id (and, for the document channel, a file path); the
// room owns the client registry, the last-known document state and all
// presence data. Rooms are created lazily by a Manager and reclaimed by a
// periodic reaper once they have been empty past an idle threshold.
//
// Two protocol variants share the same Room abstraction:
//
//   - A binary y-websocket style channel for document synchronization:
//     frames are [type, ...payload] with types sync(0), awareness(1),
//     auth(2) and queryAwareness(3). Payloads are opaque to the server
//     and relayed byte-for-byte between peers.
//   - A JSON presence channel for lighter-weight collaboration: cursor
//     and selection updates, document edit notifications with per-file
//     version counters, chat relay and ping/pong keepalive.
//
// # Admission and rate limiting
//
// Connection attempts pass a fixed-window rate limiter before they are
// admitted, and each connection additionally carries its own token-bucket
// guard for message bursts. An optional bearer token is verified at
// admission time; an invalid token refuses the connection with close
// code 1008 and a reason, never a partial join.
//
// # Quick start
//
//	cfg := ws.FromEnv()
//	server := ws.New(cfg, slog.Default())
//
//	ctx := context.Background()
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Stop(ctx)
//
// # Failure model
//
// A send failure to one peer removes that peer from the room without
// aborting delivery to the rest. Malformed or unknown frames are logged
// and dropped with the connection left open. Panics while handling a
// single message are recovered per-message and never tear down the room.
package syncroom
