package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned by Debit when the in-transaction balance
// re-check comes up short. The insert never happens in that case.
var ErrInsufficientFunds = errors.New("insufficient funds")

// LedgerStore is the postgres system of record for balances. Balances are
// never cached; every authorization decision re-reads inside a transaction.
type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) GetBalanceByUserID(ctx context.Context, userId int64) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal

	err := s.db.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
    `, userId).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, err
	}

	return totalDr.Sub(totalCr), nil
}

// Debit posts a cr entry for the user after re-checking the balance inside
// the same transaction. Idempotent by tref: a replayed tref returns the
// current balance without a second insert.
func (s *LedgerStore) Debit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM balances WHERE tref = $1)`, tref,
	).Scan(&exists)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tref check: %w", err)
	}

	var totalDr, totalCr decimal.Decimal
	err = tx.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
    `, userId).Scan(&totalDr, &totalCr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance read: %w", err)
	}
	balance := totalDr.Sub(totalCr)

	if exists {
		// Entry already posted by an earlier attempt; nothing to do.
		return balance, tx.Commit(ctx)
	}

	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO balances (user_id, ttype, dr, cr, tref, status)
		VALUES ($1, $2, 0, $3, $4, 'completed')
	`, userId, ttype, amount, tref)
	if err != nil {
		return decimal.Zero, fmt.Errorf("debit insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit tx: %w", err)
	}

	return balance.Sub(amount), nil
}

// Credit posts a dr entry for the user, idempotent by tref.
func (s *LedgerStore) Credit(ctx context.Context, userId int64, amount decimal.Decimal, ttype, tref string) (decimal.Decimal, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM balances WHERE tref = $1)`, tref,
	).Scan(&exists)
	if err != nil {
		return decimal.Zero, fmt.Errorf("tref check: %w", err)
	}

	var totalDr, totalCr decimal.Decimal
	err = tx.QueryRow(ctx, `
        SELECT
            COALESCE(SUM(dr), 0),
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE user_id = $1 AND status = 'completed'
    `, userId).Scan(&totalDr, &totalCr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("balance read: %w", err)
	}
	balance := totalDr.Sub(totalCr)

	if exists {
		return balance, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO balances (user_id, ttype, dr, cr, tref, status)
		VALUES ($1, $2, $3, 0, $4, 'completed')
	`, userId, ttype, amount, tref)
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("commit tx: %w", err)
	}

	return balance.Add(amount), nil
}
