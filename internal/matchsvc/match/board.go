package match

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shlokmonster/wingames/internal/comm"
	"github.com/shlokmonster/wingames/internal/matchsvc/service"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	BattleOpen    = "open"
	BattleMatched = "matched"
)

// payoutFactor is the fixed house margin applied to the matched stake;
// prize = floor(stake * payoutFactor).
var payoutFactor = decimal.NewFromFloat(0.95)

func PrizeFor(stake int64) int64 {
	return decimal.NewFromInt(stake).Mul(payoutFactor).Floor().IntPart()
}

// Battle is an open stake challenge any other player may accept.
type Battle struct {
	Id        string
	Creator   Session
	Opponent  Session // zero value until matched
	Stake     int64
	Prize     int64
	Comment   string
	Status    string
	CreatedAt time.Time
	MatchedAt time.Time
}

// Board owns the open->matched battle lifecycle. A battle is visible in at
// most one of the open and running snapshots at any time.
type Board struct {
	mu      sync.Mutex
	battles map[string]*Battle
	ledger  service.Ledger
}

func NewBoard(ledger service.Ledger) *Board {
	return &Board{
		battles: make(map[string]*Battle),
		ledger:  ledger,
	}
}

// Create opens a new battle after an advisory balance check. The check can
// go stale before settlement; the settlement-time re-check is authoritative.
func (b *Board) Create(ctx context.Context, sess Session, stake int64, comment string) (*Battle, error) {
	if stake <= 0 {
		return nil, ErrInvalidStake
	}

	balance, err := b.ledger.GetBalance(ctx, sess.UserId)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(decimal.NewFromInt(stake)) {
		log.Infof("user %d cannot open battle at stake %d, balance %s", sess.UserId, stake, balance.StringFixed(2))
		return nil, ErrInsufficientFunds
	}

	battle := &Battle{
		Id:        uuid.New().String(),
		Creator:   sess,
		Stake:     stake,
		Prize:     PrizeFor(stake),
		Comment:   comment,
		Status:    BattleOpen,
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.battles[battle.Id] = battle
	b.mu.Unlock()

	log.Infof("battle %s opened by user %d at stake %d", battle.Id, sess.UserId, stake)
	return battle, nil
}

// Accept matches the caller against an open battle. Both parties' balances
// are re-checked; an underfunded creator voids the battle entirely.
func (b *Board) Accept(ctx context.Context, battleId string, sess Session) (*Battle, *Pairing, error) {
	b.mu.Lock()
	battle, ok := b.battles[battleId]
	if !ok || battle.Status != BattleOpen {
		b.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	if battle.Creator.UserId == sess.UserId {
		b.mu.Unlock()
		return nil, nil, ErrForbidden
	}
	creator := battle.Creator
	stake := battle.Stake
	b.mu.Unlock()

	// Balance reads may block on the ledger; never hold the board lock here.
	stakeDec := decimal.NewFromInt(stake)

	acceptorBal, err := b.ledger.GetBalance(ctx, sess.UserId)
	if err != nil {
		return nil, nil, err
	}
	if acceptorBal.LessThan(stakeDec) {
		return nil, nil, ErrInsufficientFunds
	}

	creatorBal, err := b.ledger.GetBalance(ctx, creator.UserId)
	if err != nil {
		return nil, nil, err
	}
	if creatorBal.LessThan(stakeDec) {
		b.mu.Lock()
		// a concurrent acceptor may have matched the battle while we were
		// reading balances; only a still-open battle is ours to void
		cur, ok := b.battles[battleId]
		if !ok || cur.Status != BattleOpen {
			b.mu.Unlock()
			return nil, nil, ErrNotFound
		}
		delete(b.battles, battleId)
		b.mu.Unlock()
		log.Warnf("battle %s voided, creator %d below stake %d", battleId, creator.UserId, stake)
		return nil, nil, ErrCreatorUnderfunded
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-verify after the unlocked ledger calls; a concurrent acceptor,
	// delete or disconnect may have won the race.
	battle, ok = b.battles[battleId]
	if !ok || battle.Status != BattleOpen {
		return nil, nil, ErrNotFound
	}

	battle.Status = BattleMatched
	battle.Opponent = sess
	battle.MatchedAt = time.Now()

	pairing := &Pairing{
		Stake:      battle.Stake,
		Prize:      battle.Prize,
		BattleId:   battle.Id,
		Players:    [2]Session{battle.Creator, sess},
		CreatorIdx: 0, // the battle creator always creates the room code
	}

	log.Infof("battle %s accepted by user %d", battle.Id, sess.UserId)
	return battle, pairing, nil
}

// Delete removes an open battle; only the creator may do it and only while
// the battle is still open.
func (b *Board) Delete(battleId string, userId int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	battle, ok := b.battles[battleId]
	if !ok {
		return ErrNotFound
	}
	if battle.Creator.UserId != userId || battle.Status != BattleOpen {
		return ErrForbidden
	}

	delete(b.battles, battleId)
	log.Infof("battle %s deleted by creator %d", battleId, userId)
	return nil
}

// RemoveOpenByCreator clears every open battle owned by the user, reporting
// whether anything was removed. Matched battles are left to their rooms.
func (b *Board) RemoveOpenByCreator(userId int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := false
	for id, battle := range b.battles {
		if battle.Creator.UserId == userId && battle.Status == BattleOpen {
			delete(b.battles, id)
			removed = true
		}
	}
	return removed
}

// Finish drops a matched battle once its room reaches a terminal state.
func (b *Board) Finish(battleId string) {
	if battleId == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.battles, battleId)
}

// StakeOf reports the stake of a battle if it exists in any state.
func (b *Board) StakeOf(battleId string) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	battle, ok := b.battles[battleId]
	if !ok {
		return 0, false
	}
	return battle.Stake, true
}

func (b *Board) ListOpen() []*Battle {
	return b.snapshot(BattleOpen)
}

func (b *Board) ListRunning() []*Battle {
	return b.snapshot(BattleMatched)
}

func (b *Board) snapshot(status string) []*Battle {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Battle, 0, len(b.battles))
	for _, battle := range b.battles {
		if battle.Status == status {
			cp := *battle
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// BattleViews converts battles to their client-facing shape, every field
// always present.
func BattleViews(battles []*Battle) []comm.BattleView {
	views := make([]comm.BattleView, 0, len(battles))
	for _, b := range battles {
		views = append(views, comm.BattleView{
			Id:        b.Id,
			Creator:   comm.Opponent{UserId: b.Creator.UserId, Name: b.Creator.Name},
			Stake:     b.Stake,
			Prize:     b.Prize,
			Comment:   b.Comment,
			Status:    b.Status,
			CreatedAt: b.CreatedAt.UnixMilli(),
		})
	}
	return views
}
