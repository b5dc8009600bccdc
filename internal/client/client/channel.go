package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

type wsChannel struct {
	conn     *websocket.Conn
	handlers ChannelHandlers

	writeMu   sync.Mutex
	closeOnce sync.Once
	local     atomic.Bool
}

func newWSChannel(conn *websocket.Conn, h ChannelHandlers) *wsChannel {
	ch := &wsChannel{conn: conn, handlers: h}
	go ch.readPump()
	return ch
}

func (c *wsChannel) Send(ctx context.Context, msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close sends a normal close frame and drops the connection. It is safe to
// call more than once and from inside a handler.
func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.local.Store(true)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *wsChannel) readPump() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.local.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.handlers.OnError != nil {
				c.handlers.OnError(err)
			}
			if c.handlers.OnClose != nil {
				c.handlers.OnClose(err)
			}
			_ = c.conn.Close()
			return
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(msg)
		}
	}
}
