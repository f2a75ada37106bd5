package stream

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// rawMessage wraps raw frame bytes with the local receive timestamp.
type rawMessage struct {
	data       []byte
	receivedAt time.Time
}

// client owns a single WebSocket connection. The CLOB market channel
// has no auth and uses literal "PING"/"PONG" text frames as its
// application-level keepalive; "PONG" frames are absorbed here and
// never surface as messages.
type client struct {
	cfg    Config
	url    string
	logger *slog.Logger

	conn *websocket.Conn

	messages chan rawMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex

	mu         sync.RWMutex
	connected  bool
	closed     bool
	lastPongAt time.Time
}

var pongFrame = []byte("PONG")

func newClient(cfg Config, url string, logger *slog.Logger) *client {
	if logger == nil {
		logger = slog.Default()
	}
	return &client{
		cfg:      cfg,
		url:      url,
		logger:   logger,
		messages: make(chan rawMessage, cfg.EventBuffer),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// connect dials and starts the read and keepalive loops.
func (c *client) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPongAt = time.Now()
	c.mu.Unlock()

	go c.readLoop()
	go c.keepaliveLoop()

	c.logger.Debug("websocket connected", "url", c.url)
	return nil
}

// close tears the connection down. Safe to call more than once.
func (c *client) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	close(c.done)

	if c.conn != nil {
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return c.conn.Close()
	}
	return nil
}

// send writes one text frame.
func (c *client) send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop reads frames and delivers them on the messages channel.
// Delivery blocks rather than drops: once a frame is read off the
// socket it must reach the consumer.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after close() is called
			select {
			case <-c.done:
			default:
				select {
				case c.errors <- err:
				default:
				}
			}
			return
		}

		// Any inbound traffic proves liveness, not just PONG.
		c.mu.Lock()
		c.lastPongAt = receivedAt
		c.mu.Unlock()

		if bytes.Equal(data, pongFrame) {
			continue
		}

		select {
		case c.messages <- rawMessage{data: data, receivedAt: receivedAt}:
		case <-c.done:
			return
		}
	}
}

// keepaliveLoop sends PING text frames and watches for silence.
func (c *client) keepaliveLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send([]byte("PING")); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.RLock()
			lastPong := c.lastPongAt
			c.mu.RUnlock()

			if time.Since(lastPong) > c.cfg.StaleTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", c.cfg.StaleTimeout,
				)
				select {
				case c.errors <- ErrStaleConn:
				default:
				}
				return
			}
		}
	}
}
