package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedgerBalance(t *testing.T) {
	m := NewMemoryLedger()
	ctx := context.Background()

	bal, err := m.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	bal, err = m.Credit(ctx, 7, decimal.NewFromInt(500), "deposit", "DEP-1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", bal.StringFixed(2))

	bal, err = m.Debit(ctx, 7, decimal.NewFromInt(120), "match_stake", "STK-1")
	require.NoError(t, err)
	assert.Equal(t, "380.00", bal.StringFixed(2))

	entries := m.Entries(7)
	require.Len(t, entries, 2)
	assert.Equal(t, "deposit", entries[0].TType)
	assert.Equal(t, "match_stake", entries[1].TType)
	assert.Equal(t, "completed", entries[1].Status)
}

func TestMemoryLedgerInsufficientFunds(t *testing.T) {
	m := NewMemoryLedger()
	ctx := context.Background()

	_, err := m.Credit(ctx, 7, decimal.NewFromInt(50), "deposit", "DEP-1")
	require.NoError(t, err)

	bal, err := m.Debit(ctx, 7, decimal.NewFromInt(100), "match_stake", "STK-1")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, "50.00", bal.StringFixed(2))
	assert.Len(t, m.Entries(7), 1, "a rejected debit posts nothing")
}

func TestMemoryLedgerTrefIdempotency(t *testing.T) {
	m := NewMemoryLedger()
	ctx := context.Background()

	_, err := m.Credit(ctx, 7, decimal.NewFromInt(500), "deposit", "DEP-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = m.Debit(ctx, 7, decimal.NewFromInt(100), "match_stake", "SETTLE-r1-7")
		require.NoError(t, err)
	}

	bal, err := m.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "400.00", bal.StringFixed(2), "a replayed tref posts exactly once")
	assert.Len(t, m.Entries(7), 2)

	// the same ref never credits twice either
	_, err = m.Credit(ctx, 7, decimal.NewFromInt(500), "deposit", "DEP-1")
	require.NoError(t, err)
	bal, _ = m.GetBalance(ctx, 7)
	assert.Equal(t, "400.00", bal.StringFixed(2))
}

func TestMemoryLedgerIsolatesUsers(t *testing.T) {
	m := NewMemoryLedger()
	ctx := context.Background()

	_, err := m.Credit(ctx, 1, decimal.NewFromInt(500), "deposit", "DEP-1")
	require.NoError(t, err)

	bal, err := m.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
	assert.Empty(t, m.Entries(2))
}
