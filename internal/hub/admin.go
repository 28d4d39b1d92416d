package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/luciancaetano/syncroom"
	"github.com/luciancaetano/syncroom/internal/room"
)

// Administrative read endpoints. These consume room state but never
// create rooms: lookups against unknown ids are 404s, not creations.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": detail})
}

// handleListRooms lists all active document rooms.
func (h *Hub) handleListRooms(w http.ResponseWriter, r *http.Request) {
	infos := h.rooms.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"rooms":       infos,
		"total_rooms": len(infos),
	})
}

// roomDetail is the full description of one document room.
type roomDetail struct {
	RoomID       string            `json:"room_id"`
	FilePath     string            `json:"file_path"`
	ClientCount  int               `json:"client_count"`
	Clients      []room.ClientInfo `json:"clients"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActivity time.Time         `json:"last_activity"`
}

func (h *Hub) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	rm, ok := h.rooms.Get(roomID)
	if !ok {
		writeNotFound(w, "Room not found")
		return
	}

	writeJSON(w, http.StatusOK, roomDetail{
		RoomID:       rm.Key(),
		FilePath:     rm.FilePath(),
		ClientCount:  rm.ClientCount(),
		Clients:      rm.Clients(),
		CreatedAt:    rm.CreatedAt(),
		LastActivity: rm.LastActivity(),
	})
}

// handleCloseRoom force-closes a room: every client is disconnected
// with a reason and the room is reclaimed immediately instead of
// waiting for the idle sweep.
func (h *Hub) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]

	if err := h.rooms.ForceClose(roomID, syncroom.CloseReasonRoomClosed); err != nil {
		writeNotFound(w, "Room not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Room %s closed successfully", roomID),
	})
}

type createSessionRequest struct {
	SessionName string `json:"session_name"`
}

// handleCreateSession mints a session id. The session itself is created
// lazily on first join.
func (h *Hub) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil {
		// Body is optional; decode errors just leave the name empty.
		json.NewDecoder(r.Body).Decode(&req)
	}

	sessionID := uuid.New().String()
	name := req.SessionName
	if name == "" {
		name = "Session " + sessionID[:8]
	}

	h.logger.Info("session created", "session_id", sessionID, "name", name)

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":   sessionID,
		"session_name": name,
	})
}

// sessionInfo is the listing shape for presence sessions.
type sessionInfo struct {
	SessionID    string    `json:"session_id"`
	UserCount    int       `json:"user_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func (h *Hub) handleListSessions(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sessions.Snapshot()
	infos := make([]sessionInfo, 0, len(snapshot))
	for _, s := range snapshot {
		infos = append(infos, sessionInfo{
			SessionID:    s.RoomID,
			UserCount:    s.ClientCount,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Hub) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	session, ok := h.sessions.Get(sessionID)
	if !ok {
		writeNotFound(w, "Session not found")
		return
	}

	writeJSON(w, http.StatusOK, session.Snapshot())
}

// handleLeaveSession removes a user manually. Normally disconnect
// handles this; the endpoint exists for clients that want to leave
// without dropping other sessions on a shared connection.
func (h *Hub) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]
	userID := r.URL.Query().Get("user_id")

	session, ok := h.sessions.Get(sessionID)
	if !ok {
		writeNotFound(w, "Session not found")
		return
	}

	session.Leave(userID)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Left session",
	})
}
