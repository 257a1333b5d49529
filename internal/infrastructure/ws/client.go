package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/watchsync/internal/domain"
	"github.com/hilthontt/watchsync/internal/infrastructure/logging"
	"github.com/hilthontt/watchsync/internal/infrastructure/ratelimiter"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	defaultMaxMessageSize = 64 * 1024

	defaultSendBuffer = 256
)

type ClientOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// Send pings to peer with this period. Must be less than pongWait.
func (o ClientOptions) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Client is one WebSocket connection. Only the Core loop sends on or
// closes Message.
type Client struct {
	ID      string
	conn    *websocket.Conn
	Message chan *WSMessage

	opts    ClientOptions
	limiter ratelimiter.Limiter
	logger  logging.Logger

	// Owned by the Core loop.
	session *domain.Connection
	slow    bool
	closed  bool
}

func NewClient(conn *websocket.Conn, id string, opts ClientOptions, limiter ratelimiter.Limiter, logger logging.Logger) *Client {
	opts = opts.withDefaults()
	return &Client{
		ID:      id,
		conn:    conn,
		Message: make(chan *WSMessage, opts.SendBuffer),
		opts:    opts,
		limiter: limiter,
		logger:  logger,
	}
}

// ReadPump decodes frames and hands them to the core, one at a time.
// It is the only reader of the connection.
func (c *Client) ReadPump(core *Core) {
	defer func() {
		core.disconnect(c)
		if c.limiter != nil {
			c.limiter.Release(c.ID)
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn(logging.WebSocket, logging.Read, "unexpected close", map[logging.ExtraKey]any{
					logging.ConnID:       c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.logger.Debug(logging.WebSocket, logging.Read, "dropping malformed frame", map[logging.ExtraKey]any{
				logging.ConnID: c.ID,
			})
			continue
		}

		frame := &inboundFrame{client: c, envelope: env}
		if c.limiter != nil && !c.limiter.Allow(c.ID) {
			frame.err = domain.ErrRateLimited
		}

		if !core.submit(frame) {
			return
		}
	}
}

// WritePump drains Message to the connection and keeps it alive with pings.
// It is the only writer of the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Message:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				// The core closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn(logging.WebSocket, logging.Write, "write failed", map[logging.ExtraKey]any{
					logging.ConnID:       c.ID,
					logging.Event:        msg.Event,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
