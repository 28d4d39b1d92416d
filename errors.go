package syncroom

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrRoomNotFound is returned by read-only lookups against an
	// unknown room or session id. Lookups never create a room as a
	// side effect.
	ErrRoomNotFound = errors.New("room not found")

	// ErrConnectionClosed is returned when sending on a connection
	// that has already been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrServerAlreadyRunning is returned by Start when the server
	// is already running.
	ErrServerAlreadyRunning = errors.New("server already running")

	// ErrInvalidToken is returned when a supplied bearer token fails
	// verification at admission time.
	ErrInvalidToken = errors.New("invalid authentication token")
)

// Close reasons sent to clients on refused admission or forced close.
const (
	CloseReasonInvalidToken = "Invalid authentication token"
	CloseReasonRoomClosed   = "Room closed by admin"
)
