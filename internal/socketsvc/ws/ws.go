package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/shlokmonster/wingames/internal/comm"
	"github.com/shlokmonster/wingames/internal/socketsvc/broker"
	log "github.com/sirupsen/logrus"
)

// inboundTopic is where the match service consumes client events.
const inboundTopic = "socket.service"

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "init":
		s.handleInit(socketId, message)
	case "request-matchmaking", "cancel-matchmaking",
		"create-battle", "list-open-battles", "list-running-battles",
		"accept-battle", "delete-battle",
		"submit-room-code", "join-with-room-code", "player-ready":
		s.forward(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleInit(socketId string, msg *comm.WSMessage) {

	var payload struct {
		UserId int64  `json:"user_id"`
		Name   string `json:"name"`
	}

	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_init_data Malformed init payload %s", err)
		return
	}

	// Ensure required fields are present
	if payload.UserId == 0 {
		log.Error("Invalid init payload: missing required user fields")
		return
	}

	s.forward(socketId, msg)
	log.Infof("forwarded init message for user %d", payload.UserId)
}

// forward stamps the socket id on the envelope and hands it to the match
// service over NATS.
func (s *Ws) forward(socketId string, msg *comm.WSMessage) {
	msg.SocketId = socketId

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(inboundTopic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", inboundTopic, err)
	}
}

// HandleDisconnect drops the connection and tells the match service, which
// runs queue, battle and room cleanup for the player behind it.
func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)

	msg := &comm.WSMessage{
		Type:     "disconnect",
		Data:     json.RawMessage(`{}`),
		SocketId: socketId,
	}

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal disconnect message: %v", err)
		return
	}

	if err := s.Broker.Publish(inboundTopic, bytes); err != nil {
		log.Errorf("Failed to publish disconnect for socket %s: %v", socketId, err)
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

// RangeConnections visits every live connection, used for broadcast scope.
func (s *Ws) RangeConnections(fn func(socketId string, conn *websocket.Conn) bool) {
	s.connMap.Range(func(key, value interface{}) bool {
		return fn(key.(string), value.(*websocket.Conn))
	})
}
