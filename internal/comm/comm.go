package comm

import "time"

// PushMessage is the envelope published on the notify.push topic. The push
// delivery service fans it out to each target user's live connections.
type PushMessage struct {
	UserIDs []int64           `json:"user_ids"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Data    map[string]string `json:"data,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

// ClientHello is the first frame a websocket client sends after connecting,
// binding the connection to a user.
type ClientHello struct {
	Type   string `json:"type"` // "hello"
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// PushFrame is what the delivery service writes to the client socket.
type PushFrame struct {
	Type   string            `json:"type"` // "push"
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	SentAt time.Time         `json:"sent_at"`
}
