// Package pushtransport models the operator chat platform's outbound
// push channel as a thin websocket client, kept separate from
// internal/notify so the message-formatting layer never depends
// directly on the wire transport. Grounded on nhooyr.io/websocket's
// client usage pattern; there is no teacher precedent for a chat push
// channel, so this is built directly from the library's documented API.
package pushtransport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Client is a reconnecting websocket push client. One Client serves one
// operator endpoint; sends are serialized to keep the connection's
// write side single-writer, per nhooyr.io/websocket's concurrency rule.
type Client struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds a Client. The connection is established lazily on first
// Send so a missing/unreachable push endpoint never blocks startup.
func New(url string, log zerolog.Logger) *Client {
	return &Client{url: url, log: log.With().Str("component", "push_transport").Logger()}
}

// Send pushes a text payload. Failures reconnect once before giving up;
// callers treat every error here as best-effort (per spec.md §4.9, all
// sends are best-effort — failure is logged, never raised).
func (c *Client) Send(ctx context.Context, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			return err
		}
	}

	err := c.conn.Write(ctx, websocket.MessageText, []byte(payload))
	if err == nil {
		return nil
	}

	c.log.Warn().Err(err).Msg("push write failed, reconnecting once")
	c.conn = nil
	if err := c.dial(ctx); err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, []byte(payload))
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("pushtransport: dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "shutting down")
	c.conn = nil
	return err
}
