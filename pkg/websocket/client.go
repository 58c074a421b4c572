// Package websocket provides a reusable WebSocket client with automatic
// reconnection and an optional subscribe handshake.
package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"grid_trader/internal/core"

	"github.com/gorilla/websocket"
)

// MessageHandler handles incoming WebSocket messages.
type MessageHandler func(message []byte)

// Config tunes the client.
type Config struct {
	URL           string
	ReconnectWait time.Duration
	PingInterval  time.Duration
	// OnConnect runs after each (re)connect, typically to subscribe.
	OnConnect func(conn *websocket.Conn) error
}

// Client is a resilient WebSocket client.
type Client struct {
	cfg     Config
	handler MessageHandler

	conn *websocket.Conn
	mu   sync.Mutex

	logger core.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a new WebSocket client.
func NewClient(cfg Config, handler MessageHandler, logger core.ILogger) *Client {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		handler: handler,
		logger:  logger.WithField("component", "websocket"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start connects and begins listening for messages.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.runLoop()
}

// Stop closes the connection and stops the loop.
func (c *Client) Stop() {
	c.cancel()
	c.closeConn()
	c.wg.Wait()
}

func (c *Client) runLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if err := c.connect(); err != nil {
				c.logger.Error("WebSocket connection failed", "error", err, "url", c.cfg.URL)
				c.sleep()
				continue
			}

			c.readLoop()

			// Connection was lost; back off before redialing.
			c.sleep()
		}
	}
}

func (c *Client) sleep() {
	select {
	case <-c.ctx.Done():
	case <-time.After(c.cfg.ReconnectWait):
	}
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	if c.cfg.OnConnect != nil {
		if err := c.cfg.OnConnect(conn); err != nil {
			conn.Close()
			return err
		}
	}
	c.conn = conn
	return nil
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Send writes a text message on the current connection.
func (c *Client) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.New("websocket not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) readLoop() {
	defer c.closeConn()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn := c.currentConn()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if c.handler != nil {
				c.handler(message)
			}
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			conn := c.currentConn()
			if conn == nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
