package server

import (
	"testing"

	"github.com/flack-chat/flack-server/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T, sendBuf int) *Client {
	t.Helper()

	return &Client{
		log:  testutil.TestLogger(t),
		send: make(chan *ServerFrame, sendBuf),
		stop: make(chan struct{}),
	}
}

func TestGroupRegistry_JoinLeave(t *testing.T) {
	reg := NewGroupRegistry(testutil.TestLogger(t))
	c := newTestClient(t, 1)

	reg.Join(DefaultGroup, c)
	assert.Equal(t, 1, reg.Size(DefaultGroup))

	t.Run("join is idempotent", func(t *testing.T) {
		reg.Join(DefaultGroup, c)
		assert.Equal(t, 1, reg.Size(DefaultGroup))
	})

	t.Run("leave removes the member", func(t *testing.T) {
		reg.Leave(DefaultGroup, c)
		assert.Equal(t, 0, reg.Size(DefaultGroup))
	})

	t.Run("leaving again is a no-op", func(t *testing.T) {
		reg.Leave(DefaultGroup, c)
		assert.Equal(t, 0, reg.Size(DefaultGroup))
	})

	t.Run("leaving an unknown group is a no-op", func(t *testing.T) {
		reg.Leave("nonexistent", c)
	})
}

func TestGroupRegistry_Broadcast(t *testing.T) {
	reg := NewGroupRegistry(testutil.TestLogger(t))

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = newTestClient(t, 4)
		reg.Join(DefaultGroup, clients[i])
	}

	frame := notificationFrame(MessageAttr{Object: objectMessage, MessageId: 1})
	delivered := reg.Broadcast(DefaultGroup, frame)
	assert.Equal(t, 3, delivered, "expected every member to receive the frame")

	for i, c := range clients {
		select {
		case got := <-c.send:
			assert.Equal(t, frame, got, "client %d received the wrong frame", i)
		default:
			t.Errorf("client %d received nothing", i)
		}
	}
}

func TestGroupRegistry_BroadcastSlowClient(t *testing.T) {
	reg := NewGroupRegistry(testutil.TestLogger(t))

	slow := newTestClient(t, 1)
	slow.send <- notificationFrame(MessageAttr{}) // fill the buffer
	healthy := newTestClient(t, 4)

	reg.Join(DefaultGroup, slow)
	reg.Join(DefaultGroup, healthy)

	delivered := reg.Broadcast(DefaultGroup, notificationFrame(MessageAttr{MessageId: 2}))
	assert.Equal(t, 1, delivered, "expected only the healthy member to count")

	select {
	case <-healthy.send:
	default:
		t.Error("healthy client should still receive the frame")
	}
}

func TestGroupRegistry_BroadcastEmptyGroup(t *testing.T) {
	reg := NewGroupRegistry(testutil.TestLogger(t))
	assert.Equal(t, 0, reg.Broadcast(DefaultGroup, notificationFrame(MessageAttr{})))
}
