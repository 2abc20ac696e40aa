package broker

import (
	"encoding/json"

	"github.com/avvvet/pickup-services/internal/comm"
	"github.com/avvvet/pickup-services/internal/notifysvc/ws"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Broker consumes push envelopes from the api service and fans them out to
// connected clients. Delivery is best effort: a dead socket is skipped.
type Broker struct {
	Conn *nats.Conn
	Hub  *ws.Hub
}

func NewBroker(conn *nats.Conn, hub *ws.Hub) *Broker {
	return &Broker{Conn: conn, Hub: hub}
}

func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (b *Broker) handleMessage(msgNats *nats.Msg) {
	msg := &comm.PushMessage{}
	if err := json.Unmarshal(msgNats.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	frame := comm.PushFrame{
		Type:   "push",
		Title:  msg.Title,
		Body:   msg.Body,
		Data:   msg.Data,
		SentAt: msg.SentAt,
	}

	for _, userID := range msg.UserIDs {
		for _, conn := range b.Hub.GetUserSockets(userID) {
			if err := conn.WriteJSON(frame); err != nil {
				log.Warnf("push to user %d failed: %v", userID, err)
			}
		}
	}
}
