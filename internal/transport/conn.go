// Package transport owns the single duplex WebSocket connection to the
// Weave service. It serializes writes (a gorilla/websocket requirement) and
// leaves frame semantics to the caller.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultDialTimeout = 10 * time.Second
	DefaultWriteWait   = 10 * time.Second

	// maxFrameSize bounds inbound frames; command args and workflow results
	// are JSON, not media.
	maxFrameSize = 16 * 1024 * 1024
)

var ErrClosed = errors.New("transport: connection closed")

// Conn wraps a *websocket.Conn with mutex-guarded writes and JSON helpers.
type Conn struct {
	c       *websocket.Conn
	writeMu sync.Mutex
	mu      sync.Mutex
	closed  bool
}

// Dial connects to rawURL with the given query parameters merged into the
// URL (apiKey, worldId). The context bounds the handshake.
func Dial(ctx context.Context, rawURL string, query url.Values) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parse url: %w", err)
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: DefaultDialTimeout}
	c, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	c.SetReadLimit(maxFrameSize)
	return &Conn{c: c}, nil
}

// Send marshals v as JSON and writes it as a single text frame.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes pre-encoded data as a text frame.
func (c *Conn) SendRaw(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.c.SetWriteDeadline(time.Now().Add(DefaultWriteWait)); err != nil {
		return fmt.Errorf("transport: write deadline: %w", err)
	}
	if err := c.c.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// ReadMessage blocks until the next frame arrives or the connection fails.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.c.ReadMessage()
	return data, err
}

// StartPing keeps the connection alive with periodic pings until ctx ends.
func (c *Conn) StartPing(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.mu.Lock()
				closed := c.closed
				c.mu.Unlock()
				if closed {
					return
				}
				c.writeMu.Lock()
				_ = c.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				c.writeMu.Unlock()
			}
		}
	}()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		_ = c.c.Close()
	}
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
