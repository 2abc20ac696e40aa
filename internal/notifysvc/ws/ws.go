package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks live client connections. A socket becomes deliverable once its
// hello frame bound it to a user; one user may hold several sockets.
type Hub struct {
	connMap sync.Map // socketId -> *websocket.Conn
	userMap sync.Map // socketId -> userID
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) StoreConnection(socketId string, conn *websocket.Conn) {
	h.connMap.Store(socketId, conn)
}

func (h *Hub) BindUser(socketId string, userID int64) {
	h.userMap.Store(socketId, userID)
}

func (h *Hub) HandleDisconnect(socketId string) {
	h.connMap.Delete(socketId)
	h.userMap.Delete(socketId)
}

func (h *Hub) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := h.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

// GetUserSockets returns every live connection bound to the user.
func (h *Hub) GetUserSockets(userID int64) []*websocket.Conn {
	var conns []*websocket.Conn
	h.userMap.Range(func(key, value interface{}) bool {
		if value.(int64) != userID {
			return true
		}
		if conn, ok := h.GetConnection(key.(string)); ok {
			conns = append(conns, conn)
		}
		return true // continue iterating
	})
	return conns
}
