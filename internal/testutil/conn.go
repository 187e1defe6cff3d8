package testutil

import (
	"errors"
	"sync"

	"social-chat/internal/websocket"
)

// FakeConn records every event sent to it.
type FakeConn struct {
	id     string
	userID uint

	mu     sync.Mutex
	msgs   []*websocket.Message
	closed bool
}

func NewFakeConn(id string, userID uint) *FakeConn {
	return &FakeConn{id: id, userID: userID}
}

func (c *FakeConn) ID() string   { return c.id }
func (c *FakeConn) UserID() uint { return c.userID }

func (c *FakeConn) Send(msg *websocket.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *FakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeConn) Messages() []*websocket.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*websocket.Message(nil), c.msgs...)
}

// OfType returns the events of one type in arrival order.
func (c *FakeConn) OfType(t websocket.MessageType) []*websocket.Message {
	var out []*websocket.Message
	for _, m := range c.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (c *FakeConn) Reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}
