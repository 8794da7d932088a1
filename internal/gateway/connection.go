package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"classd/pkg/types"
)

// Connection wraps one websocket connection. All writes funnel through a
// single writer goroutine so concurrent broadcasts never interleave
// frames. Identity fields are set once at accept time, before the read
// pump starts.
type Connection struct {
	conn    *websocket.Conn
	writeCh chan []byte
	timeout time.Duration

	classroomID string
	userID      string
	role        types.Role

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewConnection starts the writer goroutine and returns the wrapper.
func NewConnection(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan []byte, sendBuffer),
		timeout: writeTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.writeLoop()
	return c
}

// writeLoop is the only goroutine that touches the socket's write side.
// writeCh is never closed; senders unblock through ctx on shutdown.
// When the socket dies the loop closes the connection on its way out, so
// later sends fail fast instead of queueing into a dead channel.
func (c *Connection) writeLoop() {
	defer func() { _ = c.Close() }()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteEnvelope queues an envelope for the writer goroutine. A closed
// connection or a full buffer past the write timeout returns an error;
// callers treat sends as best-effort.
func (c *Connection) WriteEnvelope(env *types.Envelope) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(env)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.timeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts down the writer goroutine and the underlying socket.
// Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// bind attaches the authenticated identity. Called once, at accept time.
func (c *Connection) bind(classroomID, userID string, role types.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classroomID = classroomID
	c.userID = userID
	c.role = role
}

// ClassroomID returns the classroom this connection was accepted for.
func (c *Connection) ClassroomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classroomID
}

// UserID returns the authenticated user id.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Role returns the authenticated role.
func (c *Connection) Role() types.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}
