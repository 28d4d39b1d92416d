package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/luciancaetano/syncroom"
	"github.com/luciancaetano/syncroom/internal/presence"
	"github.com/luciancaetano/syncroom/internal/ratelimit"
	"github.com/luciancaetano/syncroom/internal/room"
)

// inboundMessage is the envelope for every client message on the JSON
// presence channel, discriminated by Type.
type inboundMessage struct {
	Type string `json:"type"`

	// cursor_update / selection_update / document_edit
	FilePath    string `json:"file_path"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	StartLine   int    `json:"start_line"`
	StartColumn int    `json:"start_column"`
	EndLine     int    `json:"end_line"`
	EndColumn   int    `json:"end_column"`

	// document_edit
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`

	// chat_message
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type pongMessage struct {
	Type string `json:"type"`
}

// handleSessionSocket serves the JSON presence channel.
//
//	GET /sessions/{session_id}/ws?user_name=<name>&user_color=<hex>&token=<jwt>
//
// Sessions are presence-only rooms: cursors, selections, edit
// notifications and chat, without the binary document channel.
func (h *Hub) handleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	q := r.URL.Query()
	userName := q.Get("user_name")
	userColor := q.Get("user_color")
	token := q.Get("token")

	if userName == "" {
		http.Error(w, "user_name query parameter is required", http.StatusBadRequest)
		return
	}

	userID := uuid.New().String()
	ip := clientIP(r)

	refuseReason := ""
	if ok, reason := h.limiter.Allow(r.Context(), ip, ratelimit.TypeWebsocketConnect); !ok {
		refuseReason = reason
	} else if token != "" && h.verifier != nil {
		claims, err := h.verifier.Verify(token)
		if err != nil {
			h.logger.Warn("invalid token", "remote_addr", ip, "error", err)
			refuseReason = syncroom.CloseReasonInvalidToken
		} else {
			userName = claims.Username
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote_addr", ip, "error", err)
		return
	}

	c := newConn(userID, conn, r.RemoteAddr, h.cfg.MessagesPerSecond, h.cfg.MessageBurst)

	if refuseReason != "" {
		c.Close(websocket.ClosePolicyViolation, refuseReason)
		return
	}

	session := h.sessions.GetOrCreate(sessionID, "")

	if userColor == "" {
		userColor = presence.ColorForIndex(session.ClientCount())
	}

	user := presence.User{ID: userID, Name: userName, Color: userColor}
	client := room.NewClient(userID, user, "", c)

	session.Join(client)
	h.track(c)

	// The joiner gets the full session snapshot, including its own
	// assigned user id, before any relayed traffic.
	session.SendTo(userID, room.StateMessage{
		Type:       "session_state",
		Data:       session.Snapshot(),
		YourUserID: userID,
	})

	h.logger.Info("session socket connected",
		"client_id", userID, "user", userName, "session_id", sessionID)

	h.readSessionLoop(session, client, c)
}

func (h *Hub) readSessionLoop(session *room.Room, client *room.Client, c *wsConn) {
	defer func() {
		session.Leave(client.ID)
		h.untrack(c.id)
		c.Close(websocket.CloseNormalClosure, "")
		h.logger.Info("session socket disconnected", "client_id", client.ID, "session_id", session.Key())
	}()

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("unexpected close", "client_id", client.ID, "error", err)
			}
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if !c.allowMessage() {
			h.logger.Warn("message burst limit exceeded", "client_id", client.ID)
			c.Close(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		if ok, _ := h.limiter.Allow(c.ctx, client.ID, ratelimit.TypeWebsocketMessage); !ok {
			h.logger.Warn("message rate limit exceeded", "client_id", client.ID)
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("dropping malformed message", "client_id", client.ID, "error", err)
			continue
		}

		h.safeHandle(client.ID, func() {
			h.dispatchSessionMessage(session, client, c, msg)
		})
	}
}

func (h *Hub) dispatchSessionMessage(session *room.Room, client *room.Client, c *wsConn, msg inboundMessage) {
	switch msg.Type {
	case "cursor_update":
		session.UpdateCursor(client.ID, msg.FilePath, msg.Line, msg.Column)

	case "selection_update":
		session.UpdateSelection(presence.Selection{
			UserID:      client.ID,
			FilePath:    msg.FilePath,
			StartLine:   msg.StartLine,
			StartColumn: msg.StartColumn,
			EndLine:     msg.EndLine,
			EndColumn:   msg.EndColumn,
		})

	case "document_edit":
		session.BroadcastEdit(client.ID, msg.FilePath, msg.Operation, msg.Data)

	case "chat_message":
		session.BroadcastChat(client.User, msg.Message, msg.Timestamp)

	case "ping":
		if err := c.SendJSON(pongMessage{Type: "pong"}); err != nil {
			h.logger.Warn("pong failed", "client_id", client.ID, "error", err)
		}

	default:
		h.logger.Warn("dropping unknown message type", "client_id", client.ID, "type", msg.Type)
	}
}
