package match

import (
	"context"
	"testing"

	"github.com/shlokmonster/wingames/internal/matchsvc/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBattle(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "quick game")
	require.NoError(t, err)

	assert.NotEmpty(t, battle.Id)
	assert.Equal(t, BattleOpen, battle.Status)
	assert.Equal(t, int64(200), battle.Stake)
	assert.Equal(t, int64(190), battle.Prize)
	assert.Equal(t, "quick game", battle.Comment)

	open := rig.board.ListOpen()
	require.Len(t, open, 1)
	assert.Equal(t, battle.Id, open[0].Id)
	assert.Empty(t, rig.board.ListRunning())
}

func TestCreateBattleInvalidStake(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)

	_, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 0, "")
	assert.ErrorIs(t, err, ErrInvalidStake)
	assert.Empty(t, rig.board.ListOpen())
}

func TestCreateBattleInsufficientFunds(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 400)

	_, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 500, "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Empty(t, rig.board.ListOpen(), "no battle is created on a failed balance check")
}

func TestAcceptBattle(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)
	rig.deposit(t, 2, 1000)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)

	accepted, pairing, err := rig.board.Accept(context.Background(), battle.Id, session(2, "bob", "s2"))
	require.NoError(t, err)
	require.NotNil(t, pairing)

	assert.Equal(t, BattleMatched, accepted.Status)
	assert.Equal(t, int64(2), accepted.Opponent.UserId)

	assert.Equal(t, int64(1), pairing.Players[0].UserId, "creator holds slot zero")
	assert.Equal(t, int64(2), pairing.Players[1].UserId)
	assert.Equal(t, 0, pairing.CreatorIdx, "battle creator creates the room code")
	assert.Equal(t, battle.Id, pairing.BattleId)

	// a battle is never visible in both snapshots at once
	assert.Empty(t, rig.board.ListOpen())
	running := rig.board.ListRunning()
	require.Len(t, running, 1)
	assert.Equal(t, battle.Id, running[0].Id)
}

func TestAcceptOwnBattleForbidden(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)

	_, _, err = rig.board.Accept(context.Background(), battle.Id, session(1, "alice", "s1b"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Len(t, rig.board.ListOpen(), 1)
}

func TestAcceptMissingOrMatchedBattle(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)
	rig.deposit(t, 2, 1000)
	rig.deposit(t, 3, 1000)

	_, _, err := rig.board.Accept(context.Background(), "nope", session(2, "bob", "s2"))
	assert.ErrorIs(t, err, ErrNotFound)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)

	_, _, err = rig.board.Accept(context.Background(), battle.Id, session(2, "bob", "s2"))
	require.NoError(t, err)

	// second acceptor loses the race
	_, _, err = rig.board.Accept(context.Background(), battle.Id, session(3, "carol", "s3"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptWithInsufficientFunds(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)
	rig.deposit(t, 2, 50)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)

	_, _, err = rig.board.Accept(context.Background(), battle.Id, session(2, "bob", "s2"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Len(t, rig.board.ListOpen(), 1, "battle stays open for other acceptors")
}

func TestAcceptCreatorUnderfunded(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 300)
	rig.deposit(t, 2, 1000)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 300, "")
	require.NoError(t, err)

	// the creator's balance drains between create and accept
	_, err = rig.ledger.Debit(context.Background(), 1, decimal.NewFromInt(250), "withdrawal", "TEST-WD-1")
	require.NoError(t, err)

	_, _, err = rig.board.Accept(context.Background(), battle.Id, session(2, "bob", "s2"))
	assert.ErrorIs(t, err, ErrCreatorUnderfunded)
	assert.Empty(t, rig.board.ListOpen(), "a battle that cannot be honored is removed")
}

func TestAcceptRaceLoserNeverVoidsMatchedBattle(t *testing.T) {
	ctx := context.Background()
	mem := service.NewMemoryLedger()
	ledger := newGatedLedger(mem, 1)
	board := NewBoard(ledger)

	_, err := mem.Credit(ctx, 1, decimal.NewFromInt(300), "deposit", "DEP-R1")
	require.NoError(t, err)
	_, err = mem.Credit(ctx, 2, decimal.NewFromInt(1000), "deposit", "DEP-R2")
	require.NoError(t, err)
	_, err = mem.Credit(ctx, 3, decimal.NewFromInt(1000), "deposit", "DEP-R3")
	require.NoError(t, err)

	battle, err := board.Create(ctx, session(1, "alice", "s1"), 300, "")
	require.NoError(t, err)

	// park the slow acceptor on the creator-balance read
	ledger.armed.Store(true)
	slow := make(chan error, 1)
	go func() {
		_, _, err := board.Accept(context.Background(), battle.Id, session(3, "carol", "s3"))
		slow <- err
	}()
	<-ledger.entered

	// the fast acceptor matches the battle while the slow one is held
	_, _, err = board.Accept(ctx, battle.Id, session(2, "bob", "s2"))
	require.NoError(t, err)
	require.Len(t, board.ListRunning(), 1)

	// creator drains below the stake before the held read completes
	_, err = mem.Debit(ctx, 1, decimal.NewFromInt(250), "withdrawal", "TEST-WD-RACE")
	require.NoError(t, err)
	close(ledger.release)

	assert.ErrorIs(t, <-slow, ErrNotFound, "race loser is told the battle is gone, not that it was voided")

	running := board.ListRunning()
	require.Len(t, running, 1, "matched battle survives the losing accept")
	assert.Equal(t, battle.Id, running[0].Id)
}

func TestDeleteBattle(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)
	rig.deposit(t, 2, 1000)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)

	assert.ErrorIs(t, rig.board.Delete(battle.Id, 2), ErrForbidden)
	require.NoError(t, rig.board.Delete(battle.Id, 1))
	assert.Empty(t, rig.board.ListOpen())

	assert.ErrorIs(t, rig.board.Delete(battle.Id, 1), ErrNotFound)
}

func TestDeleteMatchedBattleForbidden(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)
	rig.deposit(t, 2, 1000)

	battle, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)
	_, _, err = rig.board.Accept(context.Background(), battle.Id, session(2, "bob", "s2"))
	require.NoError(t, err)

	assert.ErrorIs(t, rig.board.Delete(battle.Id, 1), ErrForbidden)
}

func TestRemoveOpenByCreator(t *testing.T) {
	rig := newTestRig(t)
	rig.deposit(t, 1, 1000)
	rig.deposit(t, 2, 1000)

	_, err := rig.board.Create(context.Background(), session(1, "alice", "s1"), 100, "")
	require.NoError(t, err)
	_, err = rig.board.Create(context.Background(), session(1, "alice", "s1"), 200, "")
	require.NoError(t, err)
	_, err = rig.board.Create(context.Background(), session(2, "bob", "s2"), 300, "")
	require.NoError(t, err)

	assert.True(t, rig.board.RemoveOpenByCreator(1))
	assert.False(t, rig.board.RemoveOpenByCreator(1))

	open := rig.board.ListOpen()
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].Creator.UserId)
}

func TestPrizeFloorsHouseFee(t *testing.T) {
	assert.Equal(t, int64(95), PrizeFor(100))
	assert.Equal(t, int64(190), PrizeFor(200))
	assert.Equal(t, int64(316), PrizeFor(333))
}
