package match

import (
	"math/rand"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// QueueEntry is a player waiting for an anonymous stake-matched opponent.
type QueueEntry struct {
	UserId     int64
	Name       string
	SocketId   string
	Stake      int64
	EnqueuedAt time.Time
}

// Pairing is the result of matching two players, from the queue or from a
// battle acceptance. Players[CreatorIdx] is the side that obtains the room
// code from the game client.
type Pairing struct {
	Stake      int64
	Prize      int64
	BattleId   string
	Players    [2]Session
	CreatorIdx int
}

func (p *Pairing) SocketIds() []string {
	return []string{p.Players[0].SocketId, p.Players[1].SocketId}
}

// Queue pairs players on exactly equal stake, earliest waiter first.
// Role assignment comes from the queue's own seeded source so pairing is
// reproducible in isolation.
type Queue struct {
	mu      sync.Mutex
	entries []*QueueEntry
	rng     *rand.Rand
}

func NewQueue(seed int64) *Queue {
	return &Queue{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Enqueue either pairs the caller with the oldest waiting entry at the same
// stake or inserts them into the queue; exactly one of the two happens.
// A user already waiting is re-enqueued at the new stake, never duplicated.
func (q *Queue) Enqueue(sess Session, stake int64) (*Pairing, error) {
	if stake <= 0 {
		return nil, ErrInvalidStake
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.removeLocked(sess.UserId)

	for i, e := range q.entries {
		if e.Stake != stake || e.UserId == sess.UserId {
			continue
		}

		q.entries = append(q.entries[:i], q.entries[i+1:]...)

		p := &Pairing{
			Stake:      stake,
			CreatorIdx: q.rng.Intn(2),
			Players: [2]Session{
				{UserId: e.UserId, Name: e.Name, SocketId: e.SocketId},
				sess,
			},
		}
		log.Infof("matched user %d with user %d at stake %d", e.UserId, sess.UserId, stake)
		return p, nil
	}

	q.entries = append(q.entries, &QueueEntry{
		UserId:     sess.UserId,
		Name:       sess.Name,
		SocketId:   sess.SocketId,
		Stake:      stake,
		EnqueuedAt: time.Now(),
	})
	log.Infof("user %d waiting for a match at stake %d", sess.UserId, stake)
	return nil, nil
}

// Cancel removes the caller's entry if present. Repeat calls are no-ops.
func (q *Queue) Cancel(userId int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(userId)
}

func (q *Queue) removeLocked(userId int64) {
	for i, e := range q.entries {
		if e.UserId == userId {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
