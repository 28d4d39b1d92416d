package room

import (
	"time"

	"github.com/luciancaetano/syncroom/internal/presence"
)

// Sink is the send side of a client connection. Send and SendJSON
// enqueue onto the connection's outbound queue and return an error only
// when the connection is no longer usable; a failed sink gets its
// client removed from the room. Close is safe to call more than once.
type Sink interface {
	Send(data []byte) error
	SendJSON(v any) error
	Close(code int, reason string) error
}

// Client pairs a User identity with a live connection inside a room.
// It is owned exclusively by the room and destroyed on disconnect.
type Client struct {
	ID           string
	User         presence.User
	FilePath     string
	ConnectedAt  time.Time
	LastActivity time.Time

	sink Sink
}

// NewClient builds a client handle around a connection sink.
func NewClient(id string, user presence.User, filePath string, sink Sink) *Client {
	now := time.Now()
	return &Client{
		ID:           id,
		User:         user,
		FilePath:     filePath,
		ConnectedAt:  now,
		LastActivity: now,
		sink:         sink,
	}
}
