package notify

import (
	"encoding/json"
	"time"

	"github.com/avvvet/pickup-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Notification is a templated event ready for delivery.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Gateway delivers notifications fire-and-forget: a delivery failure must
// never roll back the state change that produced it.
type Gateway interface {
	SendToUser(userID int64, n Notification)
	SendToMultipleUsers(userIDs []int64, n Notification)
}

const PushTopic = "notify.push"

// NatsGateway publishes push envelopes to NATS; the notify service consumes
// them and fans out to connected clients.
type NatsGateway struct {
	conn  *nats.Conn
	topic string
}

func NewNatsGateway(conn *nats.Conn) *NatsGateway {
	return &NatsGateway{conn: conn, topic: PushTopic}
}

func (g *NatsGateway) SendToUser(userID int64, n Notification) {
	g.SendToMultipleUsers([]int64{userID}, n)
}

func (g *NatsGateway) SendToMultipleUsers(userIDs []int64, n Notification) {
	if len(userIDs) == 0 {
		return
	}
	msg := comm.PushMessage{
		UserIDs: userIDs,
		Title:   n.Title,
		Body:    n.Body,
		Data:    n.Data,
		SentAt:  time.Now(),
	}
	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("notify: marshal push message: %v", err)
		return
	}
	if err := g.conn.Publish(g.topic, bytes); err != nil {
		log.Errorf("notify: publish to %s: %v", g.topic, err)
	}
}

// LogGateway is the fallback transport when NATS is not configured.
type LogGateway struct{}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) SendToUser(userID int64, n Notification) {
	log.Infof("notify user %d: %s - %s", userID, n.Title, n.Body)
}

func (g *LogGateway) SendToMultipleUsers(userIDs []int64, n Notification) {
	for _, id := range userIDs {
		g.SendToUser(id, n)
	}
}
