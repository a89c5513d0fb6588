// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-presence/internal/protocol"
	"github.com/Tyrowin/gochat-presence/internal/session"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is the websocket side of one session. It implements
// session.Outbound so the hub can push encoded frames to it.
type Client struct {
	id          session.ID
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	addr        string
	log         *slog.Logger
	rateLimiter *rateLimiter
	// typingLimiter throttles typing signals so they never spend the tokens
	// join and chat frames need.
	typingLimiter *rateLimiter
	rateLimit     RateLimitConfig

	maxMessageSize int64

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewClient creates a Client for conn. The send buffer and read limits come
// from cfg.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg Config) *Client {
	cfg = sanitizeConfig(cfg)
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		log:            hub.log.With("remote", addr),
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		typingLimiter:  newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// ID returns the session id assigned by the hub, empty until attached.
func (c *Client) ID() session.ID {
	return c.id
}

// RemoteAddr returns the peer address of the connection.
func (c *Client) RemoteAddr() string {
	return c.addr
}

// Enqueue queues payload for the write pump without blocking.
func (c *Client) Enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return session.ErrConnClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return session.ErrBufferFull
	}
}

// Close schedules the connection for teardown. The read pump notices the
// closed socket and detaches the session from the hub.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.conn == nil {
			c.closeSend()
			return
		}
		c.closeConnection()
	})
}

// closeSend closes the outgoing queue so the write pump sends a close frame.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError records why the read loop ended.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "session", c.id, "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Client disconnected", "session", c.id, "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Client connection closed", "session", c.id, "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "session", c.id, "error", err)
	default:
		c.log.Warn("WebSocket read error", "session", c.id, "error", err)
	}
}

// limiterFor picks the bucket an inbound event is charged to. Frames that
// fail to decode are charged to the main bucket.
func (c *Client) limiterFor(event protocol.EventName) *rateLimiter {
	switch event {
	case protocol.EventTypingStart, protocol.EventTypingStop:
		return c.typingLimiter
	default:
		return c.rateLimiter
	}
}

// checkRateLimit reports whether the next inbound event may be handled.
func (c *Client) checkRateLimit(event protocol.EventName) bool {
	limiter := c.limiterFor(event)
	if limiter != nil && !limiter.allow() {
		c.log.Warn("Rate limit exceeded; discarding frame",
			"session", c.id,
			"event", event,
			"burst", c.rateLimit.Burst,
			"interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processFrame rate-limits one inbound frame and hands it to the hub.
// Rejected frames are dropped without telling the client.
func (c *Client) processFrame(raw []byte) {
	in, err := protocol.Decode(raw)
	if !c.checkRateLimit(in.Event) {
		return
	}
	if err == nil {
		err = c.hub.Dispatch(c.id, in)
	}
	if err != nil {
		c.log.Debug("Dropping client frame", "session", c.id, "error", err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame, ok := <-c.send:
		return c.handleFrame(frame, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection closes the socket, ignoring errors from an already closed one.
func (c *Client) closeConnection() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error closing connection", "session", c.id, "error", err)
	}
}

// handleFrame writes one outgoing frame and returns false if the connection should be closed.
// Frames are never coalesced: each websocket message carries exactly one event.
func (c *Client) handleFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "session", c.id, "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing frame", "session", c.id, "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing close message", "session", c.id, "error", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "session", c.id, "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "session", c.id, "error", err)
		return false
	}
	return true
}
