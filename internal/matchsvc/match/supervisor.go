package match

import (
	"context"

	"github.com/shlokmonster/wingames/internal/comm"
	log "github.com/sirupsen/logrus"
)

// Supervisor applies cleanup across the queue, board and rooms when a
// connection drops. All checks run on every disconnect: a connection can be
// queued and own a stale battle from a previous session at the same time.
type Supervisor struct {
	registry *Registry
	queue    *Queue
	board    *Board
	rooms    *Coordinator
	notifier Notifier
}

func NewSupervisor(registry *Registry, queue *Queue, board *Board, rooms *Coordinator, notifier Notifier) *Supervisor {
	return &Supervisor{
		registry: registry,
		queue:    queue,
		board:    board,
		rooms:    rooms,
		notifier: notifier,
	}
}

func (s *Supervisor) HandleDisconnect(ctx context.Context, socketId string) {
	log.Infof("supervisor: cleaning up after socket %s", socketId)

	if sess := s.registry.Session(socketId); sess != nil {
		s.queue.Cancel(sess.UserId)

		if s.board.RemoveOpenByCreator(sess.UserId) {
			s.notifier.Broadcast("open-battles-update", comm.BattleListUpdate{
				Battles: BattleViews(s.board.ListOpen()),
			})
		}
	}

	s.rooms.AbandonBySocket(ctx, socketId)
	s.registry.Unbind(socketId)
}
