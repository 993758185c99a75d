package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shlokmonster/wingames/internal/comm"
	"github.com/shlokmonster/wingames/internal/matchsvc/service"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// abandonedRoomGrace is how long an abandoned room is retained before it is
// garbage-collected, so the remaining player can still observe the outcome.
const abandonedRoomGrace = 5 * time.Second

// Coordinator exclusively owns room mutation: code exchange, ready
// convergence and the one-time stake settlement.
type Coordinator struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	bySocket map[string]string
	byCode   map[string]string

	ledger   service.Ledger
	notifier Notifier
	archive  Archiver

	// Board, when set, lets the coordinator retire battle-backed rooms from
	// the running list. Wired after construction.
	Board *Board

	gcDelay time.Duration
}

func NewCoordinator(ledger service.Ledger, notifier Notifier, archive Archiver) *Coordinator {
	return &Coordinator{
		rooms:    make(map[string]*Room),
		bySocket: make(map[string]string),
		byCode:   make(map[string]string),
		ledger:   ledger,
		notifier: notifier,
		archive:  archive,
		gcDelay:  abandonedRoomGrace,
	}
}

// CreateRoom registers a freshly paired room in awaiting_code state. The
// caller announces the pairing to both players.
func (c *Coordinator) CreateRoom(p *Pairing) *Room {
	room := &Room{
		Id:        uuid.New().String(),
		BattleId:  p.BattleId,
		Stake:     p.Stake,
		Prize:     p.Prize,
		Status:    RoomAwaitingCode,
		CreatedAt: time.Now(),
	}
	for i, pl := range p.Players {
		room.Players[i] = &PlayerSlot{
			UserId:        pl.UserId,
			Name:          pl.Name,
			SocketId:      pl.SocketId,
			IsRoomCreator: i == p.CreatorIdx,
		}
	}

	c.mu.Lock()
	c.rooms[room.Id] = room
	for _, s := range room.socketIds() {
		c.bySocket[s] = room.Id
	}
	c.mu.Unlock()

	log.Infof("room %s created for users %d and %d at stake %d",
		room.Id, room.Players[0].UserId, room.Players[1].UserId, room.Stake)
	return room
}

func (c *Coordinator) Room(roomId string) *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[roomId]
}

func (c *Coordinator) roomBySocket(socketId string) *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	roomId, ok := c.bySocket[socketId]
	if !ok {
		return nil
	}
	return c.rooms[roomId]
}

// SubmitCode stores the room code from the designated creator and moves the
// room to awaiting_ready. Resubmission before any ready event overwrites the
// code. Anything else is logged and ignored, never an error to the client.
func (c *Coordinator) SubmitCode(socketId, code string) {
	room := c.roomBySocket(socketId)
	if room == nil {
		log.Warnf("room code from socket %s with no room", socketId)
		return
	}

	room.mu.Lock()
	self, _ := room.slotBySocket(socketId)
	if self == nil || !self.IsRoomCreator {
		room.mu.Unlock()
		log.Warnf("room %s: code submitted by non-creator socket %s", room.Id, socketId)
		return
	}
	if room.Status != RoomAwaitingCode && room.Status != RoomAwaitingReady {
		room.mu.Unlock()
		log.Warnf("room %s: code submitted in state %s", room.Id, room.Status)
		return
	}
	if room.Players[0].IsReady || room.Players[1].IsReady {
		room.mu.Unlock()
		log.Warnf("room %s: code resubmission after ready, ignored", room.Id)
		return
	}

	oldCode := room.RoomCode
	room.RoomCode = code
	room.Status = RoomAwaitingReady
	payload := comm.RoomCodeReady{RoomId: room.Id, RoomCode: code}
	sockets := room.socketIds()
	roomId := room.Id
	room.mu.Unlock()

	c.mu.Lock()
	if oldCode != "" {
		delete(c.byCode, oldCode)
	}
	c.byCode[code] = roomId
	c.mu.Unlock()

	c.notifier.ToRoom(sockets, "room-code-ready", payload)
	log.Infof("room %s: code set, awaiting ready", roomId)
}

// MarkReady flips the caller's ready flag. Safe against duplicates: an
// already-ready player gets the current tally re-broadcast and nothing else.
// The first transition to both-ready triggers settlement exactly once.
func (c *Coordinator) MarkReady(ctx context.Context, socketId string) {
	room := c.roomBySocket(socketId)
	if room == nil {
		log.Warnf("ready from socket %s with no room", socketId)
		return
	}

	room.mu.Lock()
	self, other := room.slotBySocket(socketId)
	if self == nil {
		room.mu.Unlock()
		return
	}
	switch room.Status {
	case RoomAwaitingCode:
		room.mu.Unlock()
		log.Warnf("room %s: ready before room code, ignored", room.Id)
		return
	case RoomAbandoned:
		room.mu.Unlock()
		return
	}

	self.IsReady = true
	allReady := self.IsReady && other.IsReady

	type delivery struct {
		socketId string
		payload  comm.ReadyStatus
	}
	updates := []delivery{
		{self.SocketId, comm.ReadyStatus{RoomId: room.Id, SelfReady: self.IsReady, OpponentReady: other.IsReady, AllReady: allReady}},
		{other.SocketId, comm.ReadyStatus{RoomId: room.Id, SelfReady: other.IsReady, OpponentReady: self.IsReady, AllReady: allReady}},
	}

	settleNow := allReady && room.Status == RoomAwaitingReady && !room.DeductionsApplied
	if settleNow {
		// deductionsApplied flips false->true exactly once, here, under the
		// room lock; concurrent ready duplicates observe it and fall through.
		room.DeductionsApplied = true
		room.Status = RoomSettling
	}
	room.mu.Unlock()

	for _, d := range updates {
		c.notifier.ToSocket(d.socketId, "ready-status-update", d.payload)
	}

	if settleNow {
		c.settle(ctx, room)
	}
}

// settle debits both players, lower user id first. A failed debit is
// surfaced to the affected player; a debit that already landed for the other
// player is deliberately not reversed.
func (c *Coordinator) settle(ctx context.Context, room *Room) {
	// socket ids are snapshot here; a concurrent rebind rewrites them under
	// room.mu and must not race the unlocked notification sends below
	type party struct {
		slot     *PlayerSlot
		userId   int64
		socketId string
	}
	room.mu.Lock()
	order := []party{
		{room.Players[0], room.Players[0].UserId, room.Players[0].SocketId},
		{room.Players[1], room.Players[1].UserId, room.Players[1].SocketId},
	}
	stake := room.Stake
	roomId := room.Id
	room.mu.Unlock()

	if order[1].userId < order[0].userId {
		order[0], order[1] = order[1], order[0]
	}

	stakeDec := decimal.NewFromInt(stake)
	debited := 0
	for _, p := range order {
		tref := fmt.Sprintf("SETTLE-%s-%d", roomId, p.userId)
		_, err := c.ledger.Debit(ctx, p.userId, stakeDec, "match_stake", tref)
		switch {
		case err == nil:
			room.mu.Lock()
			p.slot.Debited = true
			room.mu.Unlock()
			debited++
		case errors.Is(err, service.ErrInsufficientFunds):
			available := "0.00"
			if bal, berr := c.ledger.GetBalance(ctx, p.userId); berr == nil {
				available = bal.StringFixed(2)
			}
			log.Warnf("room %s: user %d under stake %d at settlement", roomId, p.userId, stake)
			c.notifier.ToSocket(p.socketId, "insufficient-funds", comm.InsufficientFunds{
				Required:  stake,
				Available: available,
			})
		default:
			log.Errorf("room %s: ledger debit failed for user %d: %v", roomId, p.userId, err)
			c.notifier.ToSocket(p.socketId, "room-error", comm.ErrorData{
				Reason: "settlement failed, please contact support",
			})
		}
	}

	room.mu.Lock()
	type delivery struct {
		socketId string
		payload  comm.MatchSettled
	}
	var settled []delivery
	switch debited {
	case 2:
		room.Status = RoomActive
		self, other := room.Players[0], room.Players[1]
		settled = []delivery{
			{self.SocketId, comm.MatchSettled{RoomId: roomId, Stake: stake, Opponent: comm.Opponent{UserId: other.UserId, Name: other.Name}}},
			{other.SocketId, comm.MatchSettled{RoomId: roomId, Stake: stake, Opponent: comm.Opponent{UserId: self.UserId, Name: self.Name}}},
		}
		log.Infof("room %s active, both stakes of %d debited", roomId, stake)
	case 1:
		room.Flag = FlagPartialSettlement
		log.Errorf("PRIORITY room %s: %v, manual reconciliation required", roomId, ErrPartialSettlement)
	default:
		log.Errorf("room %s: no debits landed, room parked in %s", roomId, room.Status)
	}
	rec := room.record()
	room.mu.Unlock()

	for _, d := range settled {
		c.notifier.ToSocket(d.socketId, "match-settled", d.payload)
	}

	if err := c.archive.SaveMatch(ctx, rec); err != nil {
		log.Errorf("room %s: archive write failed: %v", roomId, err)
	}
}

// AbandonBySocket reacts to a connection loss. Rooms still exchanging code
// or readiness are abandoned and the opponent told; rooms at or past
// settlement only log the event, settlement is never reversed.
func (c *Coordinator) AbandonBySocket(ctx context.Context, socketId string) {
	room := c.roomBySocket(socketId)
	if room == nil {
		return
	}

	room.mu.Lock()
	leaver, other := room.slotBySocket(socketId)
	if leaver == nil {
		room.mu.Unlock()
		return
	}

	switch room.Status {
	case RoomAwaitingCode, RoomAwaitingReady:
		room.Status = RoomAbandoned
		rec := room.record()
		roomId := room.Id
		battleId := room.BattleId
		otherSocket := other.SocketId
		message := leaver.Name + " has left the game."
		room.mu.Unlock()

		c.notifier.ToSocket(otherSocket, "opponent-left", comm.OpponentLeft{RoomId: roomId, Message: message})

		if battleId != "" && c.Board != nil {
			c.Board.Finish(battleId)
			c.notifier.Broadcast("running-battles-update", comm.BattleListUpdate{
				Battles: BattleViews(c.Board.ListRunning()),
			})
		}

		if err := c.archive.SaveMatch(ctx, rec); err != nil {
			log.Errorf("room %s: archive write failed: %v", roomId, err)
		}

		time.AfterFunc(c.gcDelay, func() { c.removeRoom(roomId) })
		log.Infof("room %s abandoned by user %d", roomId, leaver.UserId)
	default:
		status := room.Status
		userId := leaver.UserId
		roomId := room.Id
		room.mu.Unlock()
		log.Infof("user %d disconnected from room %s in state %s", userId, roomId, status)
	}
}

// Rebind re-attaches a player's current connection to their room by its code,
// the legacy join-with-room-code path, and replays the room state to them.
func (c *Coordinator) Rebind(code string, sess Session) error {
	c.mu.Lock()
	roomId, ok := c.byCode[code]
	var room *Room
	if ok {
		room = c.rooms[roomId]
	}
	c.mu.Unlock()
	if room == nil {
		return ErrNotFound
	}

	room.mu.Lock()
	self, other := room.slotByUser(sess.UserId)
	if self == nil || room.Status == RoomAbandoned {
		room.mu.Unlock()
		return ErrNotFound
	}
	oldSocket := self.SocketId
	self.SocketId = sess.SocketId
	codePayload := comm.RoomCodeReady{RoomId: room.Id, RoomCode: room.RoomCode}
	readyPayload := comm.ReadyStatus{
		RoomId:        room.Id,
		SelfReady:     self.IsReady,
		OpponentReady: other.IsReady,
		AllReady:      self.IsReady && other.IsReady,
	}
	room.mu.Unlock()

	c.mu.Lock()
	if c.bySocket[oldSocket] == roomId {
		delete(c.bySocket, oldSocket)
	}
	c.bySocket[sess.SocketId] = roomId
	c.mu.Unlock()

	c.notifier.ToSocket(sess.SocketId, "room-code-ready", codePayload)
	c.notifier.ToSocket(sess.SocketId, "ready-status-update", readyPayload)
	log.Infof("room %s: user %d rejoined with room code", roomId, sess.UserId)
	return nil
}

func (c *Coordinator) removeRoom(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms[roomId]
	if !ok {
		return
	}
	delete(c.rooms, roomId)
	if room.RoomCode != "" && c.byCode[room.RoomCode] == roomId {
		delete(c.byCode, room.RoomCode)
	}
	for s, id := range c.bySocket {
		if id == roomId {
			delete(c.bySocket, s)
		}
	}
}
