package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kassa/internal/core/appctx"
	"kassa/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 1024

	// sendQueueSize bounds the per-client backlog before the hub drops it.
	sendQueueSize = 64
)

// Client is one WebSocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	userID    string
	companyID string
	observer  bool

	closeOnce sync.Once
	done      chan struct{}
	send      chan []byte
}

// NewClient wraps an upgraded connection for the given caller. Super admins
// subscribe as cross-company observers.
func NewClient(hub *Hub, conn *websocket.Conn, user *appctx.UserContext) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		userID:    user.UserID,
		companyID: user.CompanyID,
		observer:  user.IsSuperAdmin,
		done:      make(chan struct{}),
		send:      make(chan []byte, sendQueueSize),
	}
}

// trySend queues a frame without blocking. Returns false when the queue is
// full or the client is closed. The send channel itself is never closed, so
// queuing a frame after eviction can never panic; writePump just stops
// draining.
func (c *Client) trySend(frame []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close signals shutdown. The connection teardown belongs to writePump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Run registers the client and pumps messages until the connection dies.
// Blocks until the client disconnects.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)

	done := make(chan struct{})
	go c.writePump(done)
	c.readPump(ctx)

	c.hub.Unregister(c)
	<-done
	_ = c.conn.Close()
}

type clientMessage struct {
	Event string `json:"event"`
}

// readPump consumes client frames. The only inbound message clients send is
// the application-level ping.
func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug(ctx, "websocket read failed", "user_id", c.userID, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Event == "ping" {
			c.trySend([]byte(`{"event":"pong"}`))
		}
	}
}

// writePump drains the send queue and keeps the connection alive with
// protocol pings.
func (c *Client) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			// Unblocks readPump even when the peer never answers the
			// close frame.
			_ = c.conn.Close()
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
