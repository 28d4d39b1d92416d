// Package presence holds the value types for connected users and their
// ephemeral editor state: cursors and selections. Presence is broadcast
// to peers but never persisted as document content.
package presence

// User identifies a connected participant. Created when the connection
// joins and immutable for the connection's lifetime.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Avatar string `json:"avatar,omitempty"`
}

// Cursor is a user's latest cursor position. At most one live cursor
// per user in a room; updates overwrite, they are never merged.
type Cursor struct {
	UserID    string `json:"user_id"`
	FilePath  string `json:"file_path"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Timestamp string `json:"timestamp"`
}

// Selection is a user's latest text selection, with the same
// latest-wins semantics as Cursor.
type Selection struct {
	UserID      string `json:"user_id"`
	FilePath    string `json:"file_path"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`
}

// DefaultColors is the palette assigned to users who connect without a
// color of their own.
var DefaultColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
}

// ColorForIndex picks a palette color by connection order.
func ColorForIndex(i int) string {
	if i < 0 {
		i = -i
	}
	return DefaultColors[i%len(DefaultColors)]
}
