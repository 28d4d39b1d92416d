// Package room implements the collaboration room: the client registry,
// presence state, the document state blob and all broadcast fan-out.
//
// One Room type serves both protocol variants. A room created with a
// document channel additionally dispatches binary sync/awareness frames;
// a presence-only room speaks the JSON message set. All state mutation
// happens under the room mutex; network sends happen off-lock against a
// copied recipient list, so one slow peer never blocks the rest.
package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/luciancaetano/syncroom/internal/presence"
	"github.com/luciancaetano/syncroom/internal/protocol"
)

// Room is the unit of collaboration scoped to a room key.
type Room struct {
	key        string
	filePath   string
	docChannel bool

	mu           sync.Mutex
	clients      map[string]*Client
	cursors      map[string]presence.Cursor
	selections   map[string]presence.Selection
	awareness    map[string][]byte
	docState     []byte
	versions     map[string]int64
	createdAt    time.Time
	lastActivity time.Time

	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty room. filePath is the document scope for rooms
// with a document channel and may be empty for presence-only rooms.
func New(key, filePath string, docChannel bool, logger *slog.Logger) *Room {
	now := time.Now()
	return &Room{
		key:          key,
		filePath:     filePath,
		docChannel:   docChannel,
		clients:      make(map[string]*Client),
		cursors:      make(map[string]presence.Cursor),
		selections:   make(map[string]presence.Selection),
		awareness:    make(map[string][]byte),
		versions:     make(map[string]int64),
		createdAt:    now,
		lastActivity: now,
		logger:       logger.With("room_id", key),
		now:          time.Now,
	}
}

// Key returns the room key.
func (r *Room) Key() string { return r.key }

// FilePath returns the document scope of the room.
func (r *Room) FilePath() string { return r.filePath }

// CreatedAt returns the room creation time.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// LastActivity returns the time of the last join, leave or message.
func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// ClientCount returns the number of connected clients.
func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

// Join registers a client. If the room already holds document state the
// joiner receives an initial sync push before it becomes visible to any
// broadcast, so it never starts from a blank document. Remaining members
// are notified of the new user; the joiner is excluded.
func (r *Room) Join(c *Client) {
	r.mu.Lock()
	// Sink sends are queue writes, not network writes, so pushing the
	// initial state while the registry lock is held is cheap and
	// guarantees the push is ordered before any broadcast frame.
	if r.docChannel && r.docState != nil {
		if frame, err := protocol.EncodeSync(protocol.SyncRequest, r.docState); err == nil {
			if err := c.sink.Send(frame); err != nil {
				r.logger.Warn("initial sync push failed", "client_id", c.ID, "error", err)
			}
		}
	}
	r.clients[c.ID] = c
	r.lastActivity = r.now()
	r.mu.Unlock()

	r.logger.Info("client joined", "client_id", c.ID, "user", c.User.Name)

	if !r.docChannel {
		r.broadcastJSON(UserJoinedMessage{
			Type:      "user_joined",
			User:      c.User,
			Timestamp: r.timestamp(),
		}, c.ID)
	}
}

// Leave deregisters a client, clears its presence and notifies the
// remaining members. Calling it for an unknown or already-removed
// client id is a no-op.
func (r *Room) Leave(clientID string) {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, clientID)
	delete(r.cursors, clientID)
	delete(r.selections, clientID)
	delete(r.awareness, clientID)
	r.lastActivity = r.now()
	r.mu.Unlock()

	r.logger.Info("client left", "client_id", clientID, "user", c.User.Name)

	if r.docChannel {
		// Empty awareness payload tells peers to retract the
		// departed client's presence.
		if frame, err := protocol.Encode(protocol.MessageAwareness, nil); err == nil {
			r.broadcast(frame, "")
		}
		return
	}

	r.broadcastJSON(UserLeftMessage{
		Type:      "user_left",
		UserID:    clientID,
		Timestamp: r.timestamp(),
	}, "")
}

// UpdateCursor stores a user's latest cursor position and relays it to
// every other client.
func (r *Room) UpdateCursor(userID, filePath string, line, column int) {
	cursor := presence.Cursor{
		UserID:    userID,
		FilePath:  filePath,
		Line:      line,
		Column:    column,
		Timestamp: r.timestamp(),
	}

	r.mu.Lock()
	r.cursors[userID] = cursor
	r.lastActivity = r.now()
	r.mu.Unlock()

	r.broadcastJSON(CursorMessage{Type: "cursor_update", Cursor: cursor}, userID)
}

// UpdateSelection stores a user's latest selection and relays it to
// every other client.
func (r *Room) UpdateSelection(sel presence.Selection) {
	r.mu.Lock()
	r.selections[sel.UserID] = sel
	r.lastActivity = r.now()
	r.mu.Unlock()

	r.broadcastJSON(SelectionMessage{Type: "selection_update", Selection: sel}, sel.UserID)
}

// BroadcastEdit assigns the next version for the edited file and relays
// the operation to every other client. Versions are per-file and
// strictly increasing for the lifetime of the room instance.
func (r *Room) BroadcastEdit(userID, filePath, operation string, data any) int64 {
	r.mu.Lock()
	r.versions[filePath]++
	version := r.versions[filePath]
	r.lastActivity = r.now()
	r.mu.Unlock()

	r.broadcastJSON(EditMessage{
		Type:      "document_edit",
		UserID:    userID,
		FilePath:  filePath,
		Operation: operation,
		Data:      data,
		Version:   version,
		Timestamp: r.timestamp(),
	}, userID)

	return version
}

// BroadcastChat relays a chat line from one user to the whole room,
// sender included.
func (r *Room) BroadcastChat(user presence.User, message, timestamp string) {
	r.mu.Lock()
	r.lastActivity = r.now()
	r.mu.Unlock()

	r.broadcastJSON(ChatMessage{
		Type:      "chat_message",
		UserID:    user.ID,
		UserName:  user.Name,
		UserColor: user.Color,
		Message:   message,
		Timestamp: timestamp,
	}, "")
}

// HandleFrame dispatches one binary frame from a client. Malformed and
// unknown frames are logged and dropped; the connection stays open.
func (r *Room) HandleFrame(clientID string, data []byte) {
	r.mu.Lock()
	if c, ok := r.clients[clientID]; ok {
		c.LastActivity = r.now()
	}
	r.lastActivity = r.now()
	r.mu.Unlock()

	msgType, payload, err := protocol.Decode(data)
	if err != nil {
		r.logger.Warn("dropping frame", "client_id", clientID, "error", err)
		return
	}

	switch msgType {
	case protocol.MessageSync:
		r.handleSync(clientID, payload)
	case protocol.MessageAwareness:
		r.handleAwareness(clientID, payload)
	case protocol.MessageQueryAwareness:
		r.handleQueryAwareness(clientID)
	case protocol.MessageAuth:
		// Reserved for in-band re-authentication challenges.
		// Authentication happens at connection admission time.
	}
}

func (r *Room) handleSync(clientID string, payload []byte) {
	subType, rest, err := protocol.DecodeSync(payload)
	if err != nil {
		r.logger.Warn("dropping sync frame", "client_id", clientID, "error", err)
		return
	}

	switch subType {
	case protocol.SyncRequest:
		// The sender asks for the current state; reply to it alone
		// with whatever the room holds, empty included.
		r.mu.Lock()
		state := r.docState
		c, ok := r.clients[clientID]
		r.mu.Unlock()
		if !ok {
			return
		}
		frame, err := protocol.EncodeSync(protocol.SyncState, state)
		if err != nil {
			return
		}
		if err := c.sink.Send(frame); err != nil {
			r.logger.Warn("sync reply failed", "client_id", clientID, "error", err)
			r.Leave(clientID)
		}

	case protocol.SyncState, protocol.SyncUpdate:
		r.applySyncState(clientID, rest)

	default:
		r.logger.Warn("dropping sync frame", "client_id", clientID, "sub_type", subType)
	}
}

// applySyncState stores the received payload as the room's document
// state and rebroadcasts it verbatim as an update.
//
// This is last-writer-wins: the payload replaces the stored blob, it is
// not merged. Two clients editing concurrently can lose one side's
// edit. Preserved from the source system; a real merge engine under the
// same protocol surface would be a semantic change.
func (r *Room) applySyncState(clientID string, state []byte) {
	stored := make([]byte, len(state))
	copy(stored, state)

	r.mu.Lock()
	r.docState = stored
	r.versions[r.filePath]++
	r.mu.Unlock()

	frame, err := protocol.EncodeSync(protocol.SyncUpdate, state)
	if err != nil {
		r.logger.Warn("dropping oversized sync update", "client_id", clientID, "error", err)
		return
	}
	r.broadcast(frame, clientID)
}

func (r *Room) handleAwareness(clientID string, payload []byte) {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	r.mu.Lock()
	r.awareness[clientID] = stored
	r.mu.Unlock()

	frame, err := protocol.Encode(protocol.MessageAwareness, payload)
	if err != nil {
		return
	}
	r.broadcast(frame, clientID)
}

// handleQueryAwareness replays every stored awareness state to the
// requesting client so a late joiner sees existing presence.
func (r *Room) handleQueryAwareness(clientID string) {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	states := make([][]byte, 0, len(r.awareness))
	for id, state := range r.awareness {
		if id == clientID {
			continue
		}
		states = append(states, state)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	for _, state := range states {
		frame, err := protocol.Encode(protocol.MessageAwareness, state)
		if err != nil {
			continue
		}
		if err := c.sink.Send(frame); err != nil {
			r.logger.Warn("awareness replay failed", "client_id", clientID, "error", err)
			r.Leave(clientID)
			return
		}
	}
}

// broadcast fans a frame out to every client except exclude. Sends run
// against a snapshot of the registry taken under the lock; a failed
// send removes that client and never aborts delivery to the rest.
func (r *Room) broadcast(frame []byte, exclude string) {
	r.mu.Lock()
	recipients := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == exclude {
			continue
		}
		recipients = append(recipients, c)
	}
	r.mu.Unlock()

	var failed []string
	for _, c := range recipients {
		if err := c.sink.Send(frame); err != nil {
			r.logger.Warn("broadcast send failed", "client_id", c.ID, "error", err)
			failed = append(failed, c.ID)
		}
	}

	for _, id := range failed {
		r.Leave(id)
	}
}

// broadcastJSON is broadcast for the JSON protocol variant.
func (r *Room) broadcastJSON(v any, exclude string) {
	r.mu.Lock()
	recipients := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == exclude {
			continue
		}
		recipients = append(recipients, c)
	}
	r.mu.Unlock()

	var failed []string
	for _, c := range recipients {
		if err := c.sink.SendJSON(v); err != nil {
			r.logger.Warn("broadcast send failed", "client_id", c.ID, "error", err)
			failed = append(failed, c.ID)
		}
	}

	for _, id := range failed {
		r.Leave(id)
	}
}

// SendTo delivers a message to one client. Unknown ids are a no-op; a
// failed send removes the client.
func (r *Room) SendTo(clientID string, v any) {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	r.mu.Unlock()
	if !ok {
		return
	}

	if err := c.sink.SendJSON(v); err != nil {
		r.logger.Warn("send failed", "client_id", clientID, "error", err)
		r.Leave(clientID)
	}
}

// Snapshot returns a read-only copy of the room state.
func (r *Room) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := State{
		SessionID:        r.key,
		Users:            make([]presence.User, 0, len(r.clients)),
		Cursors:          make([]presence.Cursor, 0, len(r.cursors)),
		Selections:       make([]presence.Selection, 0, len(r.selections)),
		DocumentVersions: make(map[string]int64, len(r.versions)),
		UserCount:        len(r.clients),
	}
	for _, c := range r.clients {
		state.Users = append(state.Users, c.User)
	}
	for _, cur := range r.cursors {
		state.Cursors = append(state.Cursors, cur)
	}
	for _, sel := range r.selections {
		state.Selections = append(state.Selections, sel)
	}
	for path, v := range r.versions {
		state.DocumentVersions[path] = v
	}
	return state
}

// Clients returns information about the connected clients.
func (r *Room) Clients() []ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ClientInfo, 0, len(r.clients))
	for _, c := range r.clients {
		infos = append(infos, ClientInfo{
			ClientID:     c.ID,
			UserName:     c.User.Name,
			UserColor:    c.User.Color,
			ConnectedAt:  c.ConnectedAt,
			LastActivity: c.LastActivity,
		})
	}
	return infos
}

// DocumentState returns a copy of the stored document state blob, nil
// when the room holds none.
func (r *Room) DocumentState() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.docState == nil {
		return nil
	}
	out := make([]byte, len(r.docState))
	copy(out, r.docState)
	return out
}

// Version returns the current version counter for a file path.
func (r *Room) Version(filePath string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[filePath]
}

// closeAll force-closes every connection and empties the registry. Used
// by the manager when a room is closed administratively.
func (r *Room) closeAll(code int, reason string) {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.cursors = make(map[string]presence.Cursor)
	r.selections = make(map[string]presence.Selection)
	r.awareness = make(map[string][]byte)
	r.mu.Unlock()

	for _, c := range clients {
		if err := c.sink.Close(code, reason); err != nil {
			r.logger.Debug("close failed", "client_id", c.ID, "error", err)
		}
	}
}

// ClientInfo describes one connected client for introspection.
type ClientInfo struct {
	ClientID     string    `json:"client_id"`
	UserName     string    `json:"user_name"`
	UserColor    string    `json:"user_color"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
}
