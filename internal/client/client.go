// Package client is a websocket subscriber for the relay. The console and
// `taurus send` use it.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NotCreative21/taurus/internal/ws"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var ErrNotConnected = errors.New("not connected")

// Client holds at most one live connection to the relay.
type Client struct {
	url string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
	cancel  context.CancelFunc
}

func New(rawURL string) *Client {
	return &Client{url: rawURL}
}

// WithTopics returns rawURL with a topics query selecting kinds.
func WithTopics(rawURL string, kinds ...ws.Kind) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(kinds) == 0 {
		return u.String(), nil
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	q := u.Query()
	q.Set("topics", strings.Join(names, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the relay, replacing any previous connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	pingCtx, cancel := context.WithCancel(ctx)
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	go c.pingLoop(pingCtx, conn)
	return nil
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Send writes one frame.
func (c *Client) Send(f ws.Frame) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, f.Encode())
}

// Read blocks for the next frame. Undecodable messages are skipped. Any
// read error drops the connection.
func (c *Client) Read() (ws.Frame, error) {
	conn := c.current()
	if conn == nil {
		return ws.Frame{}, ErrNotConnected
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn)
			return ws.Frame{}, err
		}
		f, err := ws.Decode(data)
		if err != nil {
			continue
		}
		return f, nil
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	conn := c.current()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.drop(conn)
	return nil
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
	c.mu.Unlock()
	conn.Close()
}

// pingLoop exits when ctx is canceled or the connection is replaced.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.current() != conn {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
