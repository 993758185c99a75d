package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shlokmonster/wingames/internal/comm"
	"github.com/shlokmonster/wingames/internal/matchsvc/match"
	"github.com/shlokmonster/wingames/internal/matchsvc/service"
	log "github.com/sirupsen/logrus"
)

// Broker consumes client events from the socket service and drives the
// match core. Responses go back out through the Publisher.
type Broker struct {
	Conn       *nats.Conn
	Registry   *match.Registry
	Queue      *match.Queue
	Board      *match.Board
	Rooms      *match.Coordinator
	Supervisor *match.Supervisor
	Ledger     service.Ledger
	Notify     *Publisher
}

func NewBroker(nc *nats.Conn, registry *match.Registry, queue *match.Queue,
	board *match.Board, rooms *match.Coordinator, supervisor *match.Supervisor,
	ledger service.Ledger, notify *Publisher) *Broker {
	return &Broker{
		Conn:       nc,
		Registry:   registry,
		Queue:      queue,
		Board:      board,
		Rooms:      rooms,
		Supervisor: supervisor,
		Ledger:     ledger,
		Notify:     notify,
	}
}

// consume messages from the socket service
func (b *Broker) SubscribeSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case "init":
		var request struct {
			UserId int64  `json:"user_id"`
			Name   string `json:"name"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		if request.UserId == 0 {
			log.Error("init without user id, dropped")
			return
		}

		sess := b.Registry.Bind(msg.SocketId, request.UserId, request.Name)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		balance, err := b.Ledger.GetBalance(ctx, sess.UserId)
		if err != nil {
			log.Errorf("Error [Ledger.GetBalance] %s", err)
		}

		b.Notify.ToSocket(msg.SocketId, "init-response", comm.PlayerData{
			Name:    sess.Name,
			UserId:  sess.UserId,
			Balance: balance.StringFixed(2),
		})

		// fresh connections get the current battle snapshots straight away
		b.Notify.ToSocket(msg.SocketId, "open-battles-update", comm.BattleListUpdate{
			Battles: match.BattleViews(b.Board.ListOpen()),
		})
		b.Notify.ToSocket(msg.SocketId, "running-battles-update", comm.BattleListUpdate{
			Battles: match.BattleViews(b.Board.ListRunning()),
		})

	case "request-matchmaking":
		var request struct {
			Stake int64 `json:"stake"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		sess := b.Registry.Session(msg.SocketId)
		if sess == nil {
			b.Notify.ToSocket(msg.SocketId, "room-error", comm.ErrorData{Reason: "session not initialized"})
			return
		}

		pairing, err := b.Queue.Enqueue(*sess, request.Stake)
		if err != nil {
			b.Notify.ToSocket(msg.SocketId, "room-error", comm.ErrorData{Reason: err.Error()})
			return
		}

		if pairing == nil {
			b.Notify.ToSocket(msg.SocketId, "waiting-for-match", comm.WaitingData{
				Message: "Waiting for an opponent...",
			})
			return
		}

		room := b.Rooms.CreateRoom(pairing)
		b.announcePairing(room.Id, pairing, "match-found")

	case "cancel-matchmaking":
		sess := b.Registry.Session(msg.SocketId)
		if sess == nil {
			return
		}
		b.Queue.Cancel(sess.UserId)

	case "create-battle":
		var request struct {
			Stake   int64  `json:"stake"`
			Comment string `json:"comment"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		sess := b.Registry.Session(msg.SocketId)
		if sess == nil {
			b.Notify.ToSocket(msg.SocketId, "battle-error", comm.ErrorData{Reason: "session not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		battle, err := b.Board.Create(ctx, *sess, request.Stake, request.Comment)
		if err != nil {
			b.sendBattleFailure(ctx, msg.SocketId, sess.UserId, request.Stake, err)
			return
		}

		views := match.BattleViews([]*match.Battle{battle})
		b.Notify.ToSocket(msg.SocketId, "battle-created", comm.BattleCreated{Battle: views[0]})
		b.broadcastOpenBattles()

	case "list-open-battles":
		b.Notify.ToSocket(msg.SocketId, "open-battles-update", comm.BattleListUpdate{
			Battles: match.BattleViews(b.Board.ListOpen()),
		})

	case "list-running-battles":
		b.Notify.ToSocket(msg.SocketId, "running-battles-update", comm.BattleListUpdate{
			Battles: match.BattleViews(b.Board.ListRunning()),
		})

	case "accept-battle":
		var request struct {
			BattleId string `json:"battle_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		sess := b.Registry.Session(msg.SocketId)
		if sess == nil {
			b.Notify.ToSocket(msg.SocketId, "battle-error", comm.ErrorData{Reason: "session not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		stake, _ := b.Board.StakeOf(request.BattleId)

		battle, pairing, err := b.Board.Accept(ctx, request.BattleId, *sess)
		if err != nil {
			if errors.Is(err, match.ErrCreatorUnderfunded) {
				// the battle was voided, everyone needs the fresh open list
				b.broadcastOpenBattles()
			}
			b.sendBattleFailure(ctx, msg.SocketId, sess.UserId, stake, err)
			return
		}

		room := b.Rooms.CreateRoom(pairing)
		log.Infof("battle %s matched, room %s", battle.Id, room.Id)
		b.announcePairing(room.Id, pairing, "battle-matched")
		b.broadcastOpenBattles()
		b.Notify.Broadcast("running-battles-update", comm.BattleListUpdate{
			Battles: match.BattleViews(b.Board.ListRunning()),
		})

	case "delete-battle":
		var request struct {
			BattleId string `json:"battle_id"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		sess := b.Registry.Session(msg.SocketId)
		if sess == nil {
			b.Notify.ToSocket(msg.SocketId, "battle-error", comm.ErrorData{Reason: "session not initialized"})
			return
		}

		if err := b.Board.Delete(request.BattleId, sess.UserId); err != nil {
			b.Notify.ToSocket(msg.SocketId, "battle-error", comm.ErrorData{Reason: err.Error()})
			return
		}
		b.broadcastOpenBattles()

	case "submit-room-code":
		var request struct {
			RoomCode string `json:"room_code"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}
		b.Rooms.SubmitCode(msg.SocketId, request.RoomCode)

	case "join-with-room-code":
		var request struct {
			RoomCode string `json:"room_code"`
		}
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error %s", err)
			return
		}

		sess := b.Registry.Session(msg.SocketId)
		if sess == nil {
			b.Notify.ToSocket(msg.SocketId, "room-error", comm.ErrorData{Reason: "session not initialized"})
			return
		}

		if err := b.Rooms.Rebind(request.RoomCode, *sess); err != nil {
			b.Notify.ToSocket(msg.SocketId, "room-error", comm.ErrorData{Reason: err.Error()})
		}

	case "player-ready":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b.Rooms.MarkReady(ctx, msg.SocketId)

	case "disconnect":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b.Supervisor.HandleDisconnect(ctx, msg.SocketId)

	default:
		log.Errorf("Unknown message type %s", msg.Type)
	}
}

// announcePairing sends each player their own view of the pairing: the other
// party as opponent, exactly one side with is_creator set.
func (b *Broker) announcePairing(roomId string, p *match.Pairing, event string) {
	for i, player := range p.Players {
		other := p.Players[1-i]
		opponent := comm.Opponent{UserId: other.UserId, Name: other.Name}

		if event == "battle-matched" {
			b.Notify.ToSocket(player.SocketId, event, comm.BattleMatched{
				BattleId:  p.BattleId,
				RoomId:    roomId,
				Opponent:  opponent,
				IsCreator: i == p.CreatorIdx,
				Stake:     p.Stake,
				Prize:     p.Prize,
			})
			continue
		}

		b.Notify.ToSocket(player.SocketId, event, comm.MatchFound{
			RoomId:    roomId,
			Opponent:  opponent,
			IsCreator: i == p.CreatorIdx,
			Stake:     p.Stake,
		})
	}
}

func (b *Broker) broadcastOpenBattles() {
	b.Notify.Broadcast("open-battles-update", comm.BattleListUpdate{
		Battles: match.BattleViews(b.Board.ListOpen()),
	})
}

// sendBattleFailure maps board errors to their client events. Financial
// failures always reach the affected player, never a silent drop.
func (b *Broker) sendBattleFailure(ctx context.Context, socketId string, userId, stake int64, err error) {
	switch {
	case errors.Is(err, match.ErrInsufficientFunds):
		available := "0.00"
		if bal, berr := b.Ledger.GetBalance(ctx, userId); berr == nil {
			available = bal.StringFixed(2)
		}
		b.Notify.ToSocket(socketId, "insufficient-funds", comm.InsufficientFunds{
			Required:  stake,
			Available: available,
		})
	default:
		b.Notify.ToSocket(socketId, "battle-error", comm.ErrorData{Reason: err.Error()})
	}
}
