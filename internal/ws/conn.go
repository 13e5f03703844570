package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize = 64
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	maxFrameSize  = 64 * 1024
)

// conn is a websocket subscriber. Frames are queued on send and written by
// writePump so a slow peer never blocks a broadcast.
type conn struct {
	id     string
	ws     *websocket.Conn
	topics map[Kind]bool // nil = every outbound kind

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newConn(id string, wsConn *websocket.Conn, topics map[Kind]bool) *conn {
	return &conn{
		id:     id,
		ws:     wsConn,
		topics: topics,
		send:   make(chan []byte, sendQueueSize),
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Wants(kind Kind) bool {
	if c.topics == nil {
		return kind.Outbound()
	}
	return c.topics[kind]
}

func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSubscriberClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings. A write error marks the conn closed so the next broadcast drops it.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("ws write failed", "subscriber", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// readPump decodes inbound frames until the peer goes away.
func (c *conn) readPump(handle func(Frame)) {
	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
		f, err := Decode(data)
		if err != nil || f.Kind.Outbound() {
			c.Send(Frame{Kind: KindError, Payload: "unsupported frame"}.Encode())
			continue
		}
		handle(f)
	}
}
