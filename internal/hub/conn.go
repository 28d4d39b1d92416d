package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/luciancaetano/syncroom"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
	readTimeout  = 60 * time.Second
	sendBuffer   = 256
)

// outbound is one queued frame with its websocket message type.
type outbound struct {
	msgType int
	data    []byte
}

// wsConn adapts a websocket connection to the room.Sink interface. All
// writes go through a bounded queue drained by a single write pump, so
// Send never blocks on the network: a full queue means a slow client
// and fails the send, which gets the client removed from its room.
type wsConn struct {
	id         string
	conn       *websocket.Conn
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc
	sendCh     chan outbound
	limiter    *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

// newConn wraps an upgraded connection. messagesPerSecond/burst
// configure the per-connection token bucket; zero disables it.
func newConn(id string, conn *websocket.Conn, remoteAddr string, messagesPerSecond float64, burst int) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())

	var limiter *rate.Limiter
	if messagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(messagesPerSecond), burst)
	}

	c := &wsConn{
		id:         id,
		conn:       conn,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
		sendCh:     make(chan outbound, sendBuffer),
		limiter:    limiter,
	}

	go c.writePump()

	return c
}

// Send queues a binary frame for delivery.
func (c *wsConn) Send(data []byte) error {
	return c.enqueue(outbound{msgType: websocket.BinaryMessage, data: data})
}

// SendJSON queues a JSON text message for delivery.
func (c *wsConn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.enqueue(outbound{msgType: websocket.TextMessage, data: data})
}

// SendText queues a plain text message for delivery.
func (c *wsConn) SendText(data []byte) error {
	return c.enqueue(outbound{msgType: websocket.TextMessage, data: data})
}

func (c *wsConn) enqueue(out outbound) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return syncroom.ErrConnectionClosed
	}

	select {
	case c.sendCh <- out:
		return nil
	case <-c.ctx.Done():
		return syncroom.ErrConnectionClosed
	default:
		// Queue full: the client is not draining its socket.
		return fmt.Errorf("%w: send queue full", syncroom.ErrConnectionClosed)
	}
}

// Close closes the connection with a close code and optional reason.
// Safe to call more than once.
func (c *wsConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, message, deadline)

	close(c.sendCh)
	return c.conn.Close()
}

// allowMessage reports whether the per-connection token bucket admits
// another inbound message.
func (c *wsConn) allowMessage() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// writePump drains the send queue onto the wire and keeps the
// connection alive with periodic pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case out, ok := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(out.msgType, out.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
