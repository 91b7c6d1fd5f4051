package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type ConnStatus string

const (
	ConnStatusConnecting   ConnStatus = "connecting"
	ConnStatusConnected    ConnStatus = "connected"
	ConnStatusDisconnected ConnStatus = "disconnected"
)

// Connection is one live relay socket. Its identity is fixed for its
// lifetime. Events is the outbound queue drained by the socket writer.
type Connection struct {
	ID       string
	Identity Identity
	JoinedAt time.Time
	Events   chan Message

	mu       sync.RWMutex
	status   ConnStatus
	lastSeen time.Time
	closed   bool
}

func NewConnection(identity Identity, buffer int) *Connection {
	if buffer <= 0 {
		buffer = 16
	}
	now := time.Now().UTC()
	return &Connection{
		ID:       uuid.New().String(),
		Identity: identity,
		JoinedAt: now,
		Events:   make(chan Message, buffer),
		status:   ConnStatusConnecting,
		lastSeen: now,
	}
}

func (c *Connection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now().UTC()
}

func (c *Connection) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

func (c *Connection) SetStatus(status ConnStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *Connection) Status() ConnStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Enqueue queues msg without blocking. It reports false when the queue
// is full or the connection is already closed.
func (c *Connection) Enqueue(msg Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Events <- msg:
		return true
	default:
		return false
	}
}

// Close marks the connection disconnected and closes Events. Safe to
// call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.status = ConnStatusDisconnected
	close(c.Events)
}
