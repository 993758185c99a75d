package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/shlokmonster/wingames/internal/comm"
	log "github.com/sirupsen/logrus"
)

// topic the socket service consumes outbound events from
const outboundTopic = "match.service"

// Publisher delivers outbound events to clients through the socket service.
// It implements match.Notifier.
type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{Conn: nc}
}

func (p *Publisher) ToSocket(socketId string, event string, payload interface{}) {
	p.send(&comm.WSMessage{
		Type:     event,
		SocketId: socketId,
		Scope:    comm.ScopeUser,
	}, payload)
}

func (p *Publisher) ToRoom(socketIds []string, event string, payload interface{}) {
	p.send(&comm.WSMessage{
		Type:    event,
		Scope:   comm.ScopeRoom,
		Sockets: socketIds,
	}, payload)
}

func (p *Publisher) Broadcast(event string, payload interface{}) {
	p.send(&comm.WSMessage{
		Type:  event,
		Scope: comm.ScopeBroadcast,
	}, payload)
}

func (p *Publisher) send(msg *comm.WSMessage, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("unable to marshal %s payload: %v", msg.Type, err)
		return
	}
	msg.Data = data

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if err := p.Conn.Publish(outboundTopic, bytes); err != nil {
		log.Errorf("Error publishing to topic %s: %s", outboundTopic, err)
	}
}
