package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lecturechat/internal/wire"
)

// ConnectionConfig tunes one live socket
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultConnectionConfig returns the settings used by the chat client
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   5 * time.Second,
		PongWait:       60 * time.Second,
		PingInterval:   25 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     100,
	}
}

// FrameHandler receives inbound frames in arrival order
type FrameHandler func(wire.Frame)

// Connection implements interfaces.Connection over a gorilla client socket.
// All writes go through a single writer goroutine.
type Connection struct {
	conn    *websocket.Conn
	token   string
	cfg     ConnectionConfig
	writeCh chan []byte
	onFrame FrameHandler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewConnection wraps an established socket and starts its read and
// write goroutines.
func NewConnection(conn *websocket.Conn, token string, cfg ConnectionConfig, onFrame FrameHandler) *Connection {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 100
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		token:   token,
		cfg:     cfg,
		writeCh: make(chan []byte, cfg.SendBuffer),
		onFrame: onFrame,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.writeLoop()
	go c.readLoop()

	return c
}

func (c *Connection) writeLoop() {
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Chat write failed: %v", err)
				c.Close()
				return
			}

		case <-ping:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) readLoop() {
	defer close(c.done)
	defer c.Close()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	if c.cfg.PongWait > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		})
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Chat connection closed unexpectedly: %v", err)
			}
			return
		}
		if c.cfg.PongWait > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			log.Printf("Ignoring malformed frame: %s", truncate(data, 120))
			continue
		}
		if c.onFrame != nil {
			c.onFrame(frame)
		}
	}
}

// WriteJSON queues v for the writer goroutine
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	timer := time.NewTimer(c.cfg.WriteTimeout)
	defer timer.Stop()

	select {
	case c.writeCh <- data:
		return nil
	case <-timer.C:
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close sends a close frame and shuts the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		err = c.conn.Close()
	})
	return err
}

// Token returns the access token the socket was opened with
func (c *Connection) Token() string {
	return c.token
}

// Done is closed once the read loop has exited
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
