package broker

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/shlokmonster/wingames/internal/comm"
	log "github.com/sirupsen/logrus"
)

type Broker struct {
	Conn             *nats.Conn
	GetConnection    func(string) (*websocket.Conn, bool)
	RangeConnections func(func(string, *websocket.Conn) bool)
}

func NewBroker(conn *nats.Conn, fncGetConnection func(string) (*websocket.Conn, bool),
	fncRangeConnections func(func(string, *websocket.Conn) bool)) *Broker {
	return &Broker{
		Conn:             conn,
		GetConnection:    fncGetConnection,
		RangeConnections: fncRangeConnections,
	}
}

// consume outbound events from the match service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to the match service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages delivers an outbound envelope from the match service to
// web clients according to its scope.
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Scope {
	case comm.ScopeUser, "":
		b.sendMessage(message.SocketId, message)
	case comm.ScopeRoom:
		for _, socketId := range message.Sockets {
			b.sendMessage(socketId, message)
		}
	case comm.ScopeBroadcast:
		b.RangeConnections(func(socketId string, conn *websocket.Conn) bool {
			b.writeTo(conn, message)
			return true
		})
	default:
		log.Errorf("Unknown delivery scope %s", message.Scope)
	}
}

// send socket message to one web client
func (b *Broker) sendMessage(socketId string, m *comm.WSMessage) {
	if conn, ok := b.GetConnection(socketId); ok {
		b.writeTo(conn, m)
	}
}

func (b *Broker) writeTo(conn *websocket.Conn, m *comm.WSMessage) {
	// clients only ever see the type and the payload
	out := &comm.WSMessage{Type: m.Type, Data: m.Data}
	if err := conn.WriteJSON(out); err != nil {
		log.Println(err)
	}
}
