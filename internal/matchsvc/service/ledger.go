package service

import (
	"context"

	"github.com/shlokmonster/wingames/internal/matchsvc/store"
	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is the typed failure for any debit that cannot be
// covered. Callers compare with errors.Is.
var ErrInsufficientFunds = store.ErrInsufficientFunds

// Ledger is the boundary to the balance system of record. Each call is
// atomic and independently durable; Debit and Credit return the resulting
// balance on success.
type Ledger interface {
	GetBalance(ctx context.Context, userId int64) (decimal.Decimal, error)
	Debit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error)
	Credit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error)
}

// LedgerService is the postgres-backed Ledger.
type LedgerService struct {
	ledgerStore *store.LedgerStore
}

func NewLedgerService(ledgerStore *store.LedgerStore) *LedgerService {
	return &LedgerService{ledgerStore: ledgerStore}
}

func (s *LedgerService) GetBalance(ctx context.Context, userId int64) (decimal.Decimal, error) {
	return s.ledgerStore.GetBalanceByUserID(ctx, userId)
}

func (s *LedgerService) Debit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error) {
	return s.ledgerStore.Debit(ctx, userId, amount, ttype, tref)
}

func (s *LedgerService) Credit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error) {
	return s.ledgerStore.Credit(ctx, userId, amount, ttype, tref)
}
