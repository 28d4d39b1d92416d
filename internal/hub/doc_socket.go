package hub

import (
	"fmt"
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

const defaultUserColor = "#4ECDC4"

// handleDocSocket serves the binary document synchronization channel.
//
//	GET /yjs/{session_id}/ws?file=<path>&user=<name>&color=<hex>&token=<jwt>
//
// The room key is session_id plus file path, so every edited file gets
// its own room. Admission checks run before the join; a refused
// connection is closed with code 1008 and a reason immediately after
// the handshake, since the close code cannot reach the client earlier.
func (h *Hub) handleDocSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	q := r.URL.Query()
	filePath := q.Get("file")
	userName := q.Get("user")
	color := q.Get("color")
	token := q.Get("token")

	if filePath == "" || userName == "" {
		http.Error(w, "file and user query parameters are required", http.StatusBadRequest)
		return
	}
	if color == "" {
		color = defaultUserColor
	}

	clientID := uuid.New().String()
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
			// The verified identity wins over the query parameter.
			userName = claims.Username
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote_addr", ip, "error", err)
		return
	}

	c := newConn(clientID, conn, r.RemoteAddr, h.cfg.MessagesPerSecond, h.cfg.MessageBurst)

	if refuseReason != "" {
		c.Close(websocket.ClosePolicyViolation, refuseReason)
		return
	}

	user := presence.User{ID: clientID, Name: userName, Color: color}
	client := room.NewClient(clientID, user, filePath, c)

	roomKey := sessionID + ":" + filePath
	rm := h.rooms.GetOrCreate(roomKey, filePath)
	rm.Join(client)
	h.track(c)

	h.logger.Info("doc socket connected",
		"client_id", clientID, "user", userName, "room_id", roomKey)

	h.readDocLoop(rm, client, c)
}

// readDocLoop reads binary frames until disconnect. Leaving the room
// happens exactly once, here, no matter how the loop ends.
func (h *Hub) readDocLoop(rm *room.Room, client *room.Client, c *wsConn) {
	defer func() {
		rm.Leave(client.ID)
		h.untrack(c.id)
		c.Close(websocket.CloseNormalClosure, "")
		h.logger.Info("doc socket disconnected", "client_id", client.ID, "room_id", rm.Key())
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

		// Burst guard first: a client flooding past the token bucket
		// is disconnected outright.
		if !c.allowMessage() {
			h.logger.Warn("message burst limit exceeded", "client_id", client.ID)
			c.Close(websocket.ClosePolicyViolation, "Rate limit exceeded")
			return
		}

		// Fixed-window policy limit: over-limit messages are dropped
		// with an error note, the connection stays open.
		if ok, reason := h.limiter.Allow(c.ctx, client.ID, ratelimit.TypeWebsocketMessage); !ok {
			h.logger.Warn("message rate limit exceeded", "client_id", client.ID)
			c.SendText([]byte(fmt.Sprintf("Error: %s", reason)))
			continue
		}

		h.safeHandle(client.ID, func() {
			rm.HandleFrame(client.ID, data)
		})
	}
}
