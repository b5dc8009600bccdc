package stub

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/twidder/internal/client/client"
)

var errChannelClosed = errors.New("channel closed")

// channel delivers events on its own goroutine in order, the way a network
// read pump would. emit never blocks, so events can be queued while
// backend.mu is held.
type channel struct {
	backend  *Backend
	handlers client.ChannelHandlers

	// token is guarded by backend.mu.
	token string

	mu     sync.Mutex
	wake   *sync.Cond
	closed bool
	queue  []func()
}

func newChannel(b *Backend, h client.ChannelHandlers) *channel {
	ch := &channel{backend: b, handlers: h}
	ch.wake = sync.NewCond(&ch.mu)
	go ch.pump()
	return ch
}

// pump runs queued events until the channel is closed and drained.
func (c *channel) pump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		for len(c.queue) == 0 && !c.closed {
			c.wake.Wait()
		}
		if len(c.queue) == 0 {
			return
		}
		ev := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]

		c.mu.Unlock()
		ev()
		c.mu.Lock()
	}
}

func (c *channel) Send(_ context.Context, msg []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errChannelClosed
	}

	reply := "fail"
	if c.backend.handshake(c, string(msg)) {
		reply = "ok"
	}

	c.emit(func() {
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage([]byte(reply))
		}
	}, false)
	return nil
}

// Close is the client side closing the channel: no OnClose.
func (c *channel) Close() error {
	c.backend.forget(c)
	c.emit(nil, true)
	return nil
}

// peerClose is called with backend.mu held.
func (c *channel) peerClose(reason error) {
	c.emit(func() {
		if c.handlers.OnClose != nil {
			c.handlers.OnClose(reason)
		}
	}, true)
}

func (c *channel) emit(ev func(), last bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if ev != nil {
		c.queue = append(c.queue, ev)
	}
	if last {
		c.closed = true
	}
	c.wake.Signal()
}
