package ws

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestHubBindAndLookup(t *testing.T) {
	hub := NewHub()

	c1 := &websocket.Conn{}
	c2 := &websocket.Conn{}
	hub.StoreConnection("s1", c1)
	hub.StoreConnection("s2", c2)

	// unbound sockets are not deliverable
	assert.Empty(t, hub.GetUserSockets(7))

	hub.BindUser("s1", 7)
	hub.BindUser("s2", 7)
	assert.Len(t, hub.GetUserSockets(7), 2)
	assert.Empty(t, hub.GetUserSockets(8))

	conn, ok := hub.GetConnection("s1")
	assert.True(t, ok)
	assert.Same(t, c1, conn)
}

func TestHubDisconnect(t *testing.T) {
	hub := NewHub()

	hub.StoreConnection("s1", &websocket.Conn{})
	hub.BindUser("s1", 7)

	hub.HandleDisconnect("s1")

	_, ok := hub.GetConnection("s1")
	assert.False(t, ok)
	assert.Empty(t, hub.GetUserSockets(7))
}
