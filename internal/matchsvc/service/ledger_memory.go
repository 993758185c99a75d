package service

import (
	"context"
	"sync"
	"time"

	"github.com/shlokmonster/wingames/internal/matchsvc/models"
	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-memory Ledger for local development and tests. It
// keeps the same semantics as the postgres ledger: append-only entries,
// balance as dr minus cr, idempotency by tref.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[int64][]models.LedgerEntry
	trefs   map[string]bool
	nextId  int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[int64][]models.LedgerEntry),
		trefs:   make(map[string]bool),
	}
}

func (m *MemoryLedger) GetBalance(ctx context.Context, userId int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(userId), nil
}

func (m *MemoryLedger) Debit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.balanceLocked(userId)
	if m.trefs[tref] {
		return balance, nil
	}
	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}

	m.appendLocked(userId, ttype, tref, decimal.Zero, amount)
	return balance.Sub(amount), nil
}

func (m *MemoryLedger) Credit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.balanceLocked(userId)
	if m.trefs[tref] {
		return balance, nil
	}

	m.appendLocked(userId, ttype, tref, amount, decimal.Zero)
	return balance.Add(amount), nil
}

// Entries returns the user's transaction log, oldest first.
func (m *MemoryLedger) Entries(userId int64) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.LedgerEntry, len(m.entries[userId]))
	copy(out, m.entries[userId])
	return out
}

func (m *MemoryLedger) balanceLocked(userId int64) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range m.entries[userId] {
		balance = balance.Add(e.Dr).Sub(e.Cr)
	}
	return balance
}

func (m *MemoryLedger) appendLocked(userId int64, ttype, tref string, dr, cr decimal.Decimal) {
	m.nextId++
	m.entries[userId] = append(m.entries[userId], models.LedgerEntry{
		ID:        m.nextId,
		UserID:    userId,
		TType:     ttype,
		Dr:        dr,
		Cr:        cr,
		TRef:      tref,
		Status:    "completed",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	if tref != "" {
		m.trefs[tref] = true
	}
}
