package match

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shlokmonster/wingames/internal/matchsvc/models"
	"github.com/shlokmonster/wingames/internal/matchsvc/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// mockNotifier collects events instead of sending them over NATS.
type mockNotifier struct {
	mu         sync.Mutex
	bySocket   map[string][]capturedEvent
	broadcasts []capturedEvent
}

type capturedEvent struct {
	event   string
	payload interface{}
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{bySocket: make(map[string][]capturedEvent)}
}

func (m *mockNotifier) ToSocket(socketId string, event string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySocket[socketId] = append(m.bySocket[socketId], capturedEvent{event, payload})
}

func (m *mockNotifier) ToRoom(socketIds []string, event string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range socketIds {
		m.bySocket[s] = append(m.bySocket[s], capturedEvent{event, payload})
	}
}

func (m *mockNotifier) Broadcast(event string, payload interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, capturedEvent{event, payload})
}

func (m *mockNotifier) lastFor(socketId, event string) (capturedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.bySocket[socketId]
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].event == event {
			return events[i], true
		}
	}
	return capturedEvent{}, false
}

func (m *mockNotifier) countFor(socketId, event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.bySocket[socketId] {
		if e.event == event {
			n++
		}
	}
	return n
}

func (m *mockNotifier) broadcastCount(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.broadcasts {
		if e.event == event {
			n++
		}
	}
	return n
}

// fakeArchive records match snapshots in memory.
type fakeArchive struct {
	mu   sync.Mutex
	recs []*models.MatchRecord
}

func (f *fakeArchive) SaveMatch(ctx context.Context, rec *models.MatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.recs = append(f.recs, &cp)
	return nil
}

func (f *fakeArchive) last() *models.MatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recs) == 0 {
		return nil
	}
	return f.recs[len(f.recs)-1]
}

type testRig struct {
	registry   *Registry
	queue      *Queue
	board      *Board
	rooms      *Coordinator
	supervisor *Supervisor
	ledger     *service.MemoryLedger
	notifier   *mockNotifier
	archive    *fakeArchive
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	ledger := service.NewMemoryLedger()
	notifier := newMockNotifier()
	archive := &fakeArchive{}

	registry := NewRegistry()
	queue := NewQueue(1)
	board := NewBoard(ledger)
	rooms := NewCoordinator(ledger, notifier, archive)
	rooms.Board = board
	rooms.gcDelay = 20 * time.Millisecond

	return &testRig{
		registry:   registry,
		queue:      queue,
		board:      board,
		rooms:      rooms,
		supervisor: NewSupervisor(registry, queue, board, rooms, notifier),
		ledger:     ledger,
		notifier:   notifier,
		archive:    archive,
	}
}

var depositSeq atomic.Int64

func (r *testRig) deposit(t *testing.T, userId, amount int64) {
	t.Helper()
	tref := fmt.Sprintf("TEST-DEP-%d-%d", userId, depositSeq.Add(1))
	_, err := r.ledger.Credit(context.Background(), userId, decimal.NewFromInt(amount), "deposit", tref)
	require.NoError(t, err)
}

// stakeDebits counts the user's posted match_stake entries.
func (r *testRig) stakeDebits(userId int64) int {
	n := 0
	for _, e := range r.ledger.Entries(userId) {
		if e.TType == "match_stake" {
			n++
		}
	}
	return n
}

// gatedLedger blocks one armed balance read for a chosen user, letting tests
// hold an operation inside its unlocked ledger window while others proceed.
type gatedLedger struct {
	*service.MemoryLedger
	gateUser int64
	armed    atomic.Bool
	entered  chan struct{}
	release  chan struct{}
}

func newGatedLedger(mem *service.MemoryLedger, userId int64) *gatedLedger {
	return &gatedLedger{
		MemoryLedger: mem,
		gateUser:     userId,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (l *gatedLedger) GetBalance(ctx context.Context, userId int64) (decimal.Decimal, error) {
	if userId == l.gateUser && l.armed.CompareAndSwap(true, false) {
		close(l.entered)
		<-l.release
	}
	return l.MemoryLedger.GetBalance(ctx, userId)
}

func session(userId int64, name, socketId string) Session {
	return Session{UserId: userId, Name: name, SocketId: socketId}
}

func testPairing(a, b Session, stake int64) *Pairing {
	return &Pairing{Stake: stake, Players: [2]Session{a, b}, CreatorIdx: 0}
}
