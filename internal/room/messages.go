package room

import (
	"github.com/luciancaetano/syncroom/internal/presence"
)

// JSON wire messages for the presence protocol variant. Field names are
// part of the protocol; clients match on the "type" discriminator.

// UserJoinedMessage announces a new participant to the rest of the room.
type UserJoinedMessage struct {
	Type      string        `json:"type"`
	User      presence.User `json:"user"`
	Timestamp string        `json:"timestamp"`
}

// UserLeftMessage announces a departed participant.
type UserLeftMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// CursorMessage relays a cursor move.
type CursorMessage struct {
	Type   string          `json:"type"`
	Cursor presence.Cursor `json:"cursor"`
}

// SelectionMessage relays a text selection.
type SelectionMessage struct {
	Type      string             `json:"type"`
	Selection presence.Selection `json:"selection"`
}

// EditMessage relays a document edit with its assigned version.
type EditMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	FilePath  string `json:"file_path"`
	Operation string `json:"operation"`
	Data      any    `json:"data"`
	Version   int64  `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ChatMessage relays a free-form chat line.
type ChatMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserColor string `json:"user_color"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// StateMessage pushes the full room snapshot to a newly joined client.
type StateMessage struct {
	Type       string `json:"type"`
	Data       State  `json:"data"`
	YourUserID string `json:"your_user_id"`
}

// State is a read-only snapshot of a room for the joiner push and the
// introspection endpoints.
type State struct {
	SessionID        string               `json:"session_id"`
	Users            []presence.User      `json:"users"`
	Cursors          []presence.Cursor    `json:"cursors"`
	Selections       []presence.Selection `json:"selections"`
	DocumentVersions map[string]int64     `json:"document_versions"`
	UserCount        int                  `json:"user_count"`
}
