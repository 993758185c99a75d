package match

import (
	"sync"
	"time"

	"github.com/shlokmonster/wingames/internal/matchsvc/models"
)

const (
	RoomAwaitingCode  = "awaiting_code"
	RoomAwaitingReady = "awaiting_ready"
	RoomSettling      = "settling"
	RoomActive        = "active"
	RoomAbandoned     = "abandoned"
)

// FlagPartialSettlement marks a room where one player's debit landed and the
// other's failed. Never auto-reversed; reconciled manually.
const FlagPartialSettlement = "partial_settlement"

type PlayerSlot struct {
	UserId        int64
	Name          string
	SocketId      string
	IsReady       bool
	IsRoomCreator bool
	Debited       bool
}

// Room is the paired state of two matched players progressing through
// code-exchange, readiness and settlement. All mutation happens under mu,
// owned exclusively by the Coordinator.
type Room struct {
	Id                string
	BattleId          string
	RoomCode          string
	Stake             int64
	Prize             int64
	Players           [2]*PlayerSlot
	Status            string
	DeductionsApplied bool
	Flag              string
	CreatedAt         time.Time

	mu sync.Mutex
}

func (r *Room) slotBySocket(socketId string) (*PlayerSlot, *PlayerSlot) {
	if r.Players[0].SocketId == socketId {
		return r.Players[0], r.Players[1]
	}
	if r.Players[1].SocketId == socketId {
		return r.Players[1], r.Players[0]
	}
	return nil, nil
}

func (r *Room) slotByUser(userId int64) (*PlayerSlot, *PlayerSlot) {
	if r.Players[0].UserId == userId {
		return r.Players[0], r.Players[1]
	}
	if r.Players[1].UserId == userId {
		return r.Players[1], r.Players[0]
	}
	return nil, nil
}

func (r *Room) socketIds() []string {
	return []string{r.Players[0].SocketId, r.Players[1].SocketId}
}

// record snapshots the room for the archive. Caller holds r.mu.
func (r *Room) record() *models.MatchRecord {
	players := make([]models.MatchPlayer, 0, 2)
	for _, p := range r.Players {
		players = append(players, models.MatchPlayer{
			UserId:  p.UserId,
			Name:    p.Name,
			Ready:   p.IsReady,
			Debited: p.Debited,
		})
	}
	return &models.MatchRecord{
		RoomId:    r.Id,
		BattleId:  r.BattleId,
		RoomCode:  r.RoomCode,
		Stake:     r.Stake,
		Prize:     r.Prize,
		Status:    r.Status,
		Flag:      r.Flag,
		Players:   players,
		CreatedAt: r.CreatedAt,
	}
}
