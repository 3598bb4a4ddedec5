package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one websocket of a signed-in user.
type Connection struct {
	// ID distinguishes several tabs of the same user
	ID     string
	UserID string
	Conn   *websocket.Conn

	// Send is a buffered channel for outbound frames
	Send chan []byte

	// mu serializes writes; gorilla allows one concurrent writer
	mu sync.Mutex

	lastHeartbeat time.Time
	heartbeatMu   sync.RWMutex

	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closedMu sync.RWMutex
}

func NewConnection(ctx context.Context, userID string, conn *websocket.Conn) *Connection {
	connCtx, cancel := context.WithCancel(ctx)
	now := time.Now()
	return &Connection{
		ID:            uuid.NewString(),
		UserID:        userID,
		Conn:          conn,
		Send:          make(chan []byte, 64),
		lastHeartbeat: now,
		createdAt:     now,
		ctx:           connCtx,
		cancel:        cancel,
	}
}

func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsClosed() {
		return websocket.ErrCloseSent
	}
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(messageType, data)
}

// Enqueue hands a frame to the write pump without blocking.
// Returns false when the connection is closed or its buffer is full.
func (c *Connection) Enqueue(frame []byte) (ok bool) {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// Close is idempotent.
func (c *Connection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	close(c.Send)
	return c.Conn.Close()
}

func (c *Connection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *Connection) UpdateHeartbeat() {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()
	c.lastHeartbeat = time.Now()
}

func (c *Connection) GetLastHeartbeat() time.Time {
	c.heartbeatMu.RLock()
	defer c.heartbeatMu.RUnlock()
	return c.lastHeartbeat
}

// IsAlive reports whether a heartbeat arrived within timeout.
func (c *Connection) IsAlive(timeout time.Duration) bool {
	return time.Since(c.GetLastHeartbeat()) < timeout
}

func (c *Connection) Context() context.Context {
	return c.ctx
}
