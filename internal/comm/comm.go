package comm

import (
	"encoding/json"
)

// delivery scope for outbound messages
const (
	ScopeUser      = "user"
	ScopeRoom      = "room"
	ScopeBroadcast = "broadcast"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "request-matchmaking", "player-ready"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
	Scope    string          `json:"scope,omitempty"`   // outbound only
	Sockets  []string        `json:"sockets,omitempty"` // outbound, room scope membership
}

type PlayerData struct {
	Name    string `json:"name"`
	UserId  int64  `json:"user_id"`
	Balance string `json:"balance"`
}

type Opponent struct {
	UserId int64  `json:"user_id"`
	Name   string `json:"name"`
}

type WaitingData struct {
	Message string `json:"message"`
}

type MatchFound struct {
	RoomId    string   `json:"room_id"`
	Opponent  Opponent `json:"opponent"`
	IsCreator bool     `json:"is_creator"` // true for the side that creates the room code
	Stake     int64    `json:"stake"`
}

type RoomCodeReady struct {
	RoomId   string `json:"room_id"`
	RoomCode string `json:"room_code"`
}

type ReadyStatus struct {
	RoomId        string `json:"room_id"`
	SelfReady     bool   `json:"self_ready"`
	OpponentReady bool   `json:"opponent_ready"`
	AllReady      bool   `json:"all_ready"`
}

type MatchSettled struct {
	RoomId   string   `json:"room_id"`
	Opponent Opponent `json:"opponent"`
	Stake    int64    `json:"stake"`
}

type OpponentLeft struct {
	RoomId  string `json:"room_id"`
	Message string `json:"message"`
}

// BattleView is the client-facing snapshot of a battle, all fields always set.
type BattleView struct {
	Id        string   `json:"id"`
	Creator   Opponent `json:"creator"`
	Stake     int64    `json:"stake"`
	Prize     int64    `json:"prize"`
	Comment   string   `json:"comment"`
	Status    string   `json:"status"`
	CreatedAt int64    `json:"created_at"`
}

type BattleCreated struct {
	Battle BattleView `json:"battle"`
}

type BattleListUpdate struct {
	Battles []BattleView `json:"battles"`
}

type BattleMatched struct {
	BattleId  string   `json:"battle_id"`
	RoomId    string   `json:"room_id"`
	Opponent  Opponent `json:"opponent"`
	IsCreator bool     `json:"is_creator"`
	Stake     int64    `json:"stake"`
	Prize     int64    `json:"prize"`
}

type ErrorData struct {
	Reason string `json:"reason"`
}

type InsufficientFunds struct {
	Required  int64  `json:"required"`
	Available string `json:"available"`
}
