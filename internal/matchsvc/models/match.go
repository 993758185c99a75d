package models

import "time"

type MatchPlayer struct {
	UserId  int64  `bson:"user_id" json:"user_id"`
	Name    string `bson:"name" json:"name"`
	Ready   bool   `bson:"ready" json:"ready"`
	Debited bool   `bson:"debited" json:"debited"`
}

// MatchRecord is the archived form of a room, written when a match activates
// or is abandoned. Keyed by room id in the matches collection.
type MatchRecord struct {
	RoomId    string        `bson:"room_id" json:"room_id"`
	BattleId  string        `bson:"battle_id,omitempty" json:"battle_id,omitempty"`
	RoomCode  string        `bson:"room_code" json:"room_code"`
	Stake     int64         `bson:"stake" json:"stake"`
	Prize     int64         `bson:"prize" json:"prize"`
	Status    string        `bson:"status" json:"status"`
	Flag      string        `bson:"flag" json:"flag"`
	Players   []MatchPlayer `bson:"players" json:"players"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
