package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luciancaetano/syncroom"
)

// ManagerConfig configures a room registry.
type ManagerConfig struct {
	// DocChannel marks rooms created by this manager as carrying the
	// binary document channel.
	DocChannel bool
	// IdleTTL is how long a room must be empty and inactive before
	// the reaper removes it.
	IdleTTL time.Duration
	// SweepInterval is how often the reaper scans the registry.
	SweepInterval time.Duration
	// Logger is required.
	Logger *slog.Logger
}

// Manager is the process-wide registry of rooms. Registry mutation is
// guarded by its own lock, distinct from any per-room lock; the lock is
// never held across a network send.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	docChannel    bool
	idleTTL       time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	stopC    chan struct{}
	stopOnce sync.Once
}

// NewManager creates a registry and starts its reaper. Call Stop to end
// the reaper goroutine.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		rooms:         make(map[string]*Room),
		docChannel:    cfg.DocChannel,
		idleTTL:       cfg.IdleTTL,
		sweepInterval: cfg.SweepInterval,
		logger:        cfg.Logger,
		now:           time.Now,
		stopC:         make(chan struct{}),
	}

	go m.sweepLoop()

	return m
}

// Stop ends the reaper goroutine.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopC) })
}

// GetOrCreate returns the room for key, creating it if necessary. This
// is the single creation path; concurrent calls with the same key get
// the same instance.
func (m *Manager) GetOrCreate(key, filePath string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[key]; ok {
		return r
	}

	r := New(key, filePath, m.docChannel, m.logger)
	m.rooms[key] = r
	m.logger.Info("room created", "room_id", key, "file_path", filePath)
	return r
}

// Get looks up a room without creating it.
func (m *Manager) Get(key string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[key]
	return r, ok
}

// Remove deletes a room only if it is empty at removal time. The client
// count is re-checked under the registry lock so a room that gained a
// client since the caller's idle check is never deleted.
func (m *Manager) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[key]
	if !ok {
		return false
	}
	if r.ClientCount() > 0 {
		return false
	}

	delete(m.rooms, key)
	m.logger.Info("room removed", "room_id", key)
	return true
}

// ForceClose disconnects every client in a room with a close reason and
// removes the room immediately, without waiting for the idle sweep.
func (m *Manager) ForceClose(key, reason string) error {
	m.mu.Lock()
	r, ok := m.rooms[key]
	if ok {
		delete(m.rooms, key)
	}
	m.mu.Unlock()

	if !ok {
		return syncroom.ErrRoomNotFound
	}

	r.closeAll(websocket.CloseNormalClosure, reason)
	m.logger.Info("room force-closed", "room_id", key, "reason", reason)
	return nil
}

// Len returns the number of registered rooms.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Info describes one room for the listing endpoints.
type Info struct {
	RoomID       string    `json:"room_id"`
	FilePath     string    `json:"file_path,omitempty"`
	ClientCount  int       `json:"client_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Snapshot returns information about every registered room.
func (m *Manager) Snapshot() []Info {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	infos := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, Info{
			RoomID:       r.Key(),
			FilePath:     r.FilePath(),
			ClientCount:  r.ClientCount(),
			CreatedAt:    r.CreatedAt(),
			LastActivity: r.LastActivity(),
		})
	}
	return infos
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopC:
			return
		}
	}
}

// sweep removes rooms that have had zero clients for longer than the
// idle TTL. Candidates are collected first; emptiness is re-checked by
// Remove so a room that gains a client in between survives.
func (m *Manager) sweep() {
	now := m.now()

	m.mu.Lock()
	candidates := make([]*Room, 0)
	for _, r := range m.rooms {
		candidates = append(candidates, r)
	}
	m.mu.Unlock()

	for _, r := range candidates {
		if r.ClientCount() > 0 {
			continue
		}
		if now.Sub(r.LastActivity()) <= m.idleTTL {
			continue
		}
		if m.Remove(r.Key()) {
			m.logger.Info("reaped idle room", "room_id", r.Key())
		}
	}
}
