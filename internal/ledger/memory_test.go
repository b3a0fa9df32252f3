package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *MemoryLedger {
	t.Helper()
	l := NewMemoryLedger(31337, alice)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	l.SetClock(func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Minute)
	})
	return l
}

func TestMemoryLedger_CardLifecycle(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	sub, err := l.CreateCard(ctx, big.NewInt(100))
	require.NoError(t, err)
	require.NotNil(t, sub.CardID)
	assert.Equal(t, uint64(0), *sub.CardID)
	assert.Equal(t, uint64(1), sub.Block)

	_, err = l.Deposit(ctx, 0, big.NewInt(60))
	require.NoError(t, err)
	_, err = l.Spend(ctx, 0, big.NewInt(25), bob)
	require.NoError(t, err)
	_, err = l.Withdraw(ctx, 0, big.NewInt(5))
	require.NoError(t, err)

	card, err := l.CardInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, alice, card.Owner)
	assert.Equal(t, big.NewInt(30), card.Balance)
	assert.Equal(t, big.NewInt(25), card.AmountSpent)
	assert.True(t, card.IsActive)

	_, err = l.ResetSpent(ctx, 0)
	require.NoError(t, err)
	card, err = l.CardInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, card.AmountSpent.Sign())

	assert.Equal(t, uint64(5), l.Tip())
}

func TestMemoryLedger_EnforcesContractRules(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.CreateCard(ctx, big.NewInt(10))
	require.NoError(t, err)
	_, err = l.Deposit(ctx, 0, big.NewInt(50))
	require.NoError(t, err)

	_, err = l.Spend(ctx, 0, big.NewInt(11), bob)
	assert.ErrorIs(t, err, models.ErrLimitExceeded)

	_, err = l.Withdraw(ctx, 0, big.NewInt(51))
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = l.As(bob).Withdraw(ctx, 0, big.NewInt(1))
	assert.ErrorIs(t, err, models.ErrNotOwner)

	_, err = l.SetActive(ctx, 0, false)
	require.NoError(t, err)
	_, err = l.Deposit(ctx, 0, big.NewInt(1))
	assert.ErrorIs(t, err, models.ErrCardInactive)

	_, err = l.CardInfo(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryLedger_QueryEvents(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.CreateCard(ctx, big.NewInt(10))
	require.NoError(t, err)
	_, err = l.As(bob).CreateCard(ctx, big.NewInt(20))
	require.NoError(t, err)
	_, err = l.Deposit(ctx, 0, big.NewInt(5))
	require.NoError(t, err)

	created, err := l.QueryEvents(ctx, models.EventCardCreated, 0, nil)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, alice, created[0].Account)
	assert.Equal(t, bob, created[1].Account)

	upTo := uint64(1)
	windowed, err := l.QueryEvents(ctx, models.EventCardCreated, 0, &upTo)
	require.NoError(t, err)
	assert.Len(t, windowed, 1)

	deposits, err := l.QueryEvents(ctx, models.EventCardDeposited, 0, nil)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, uint64(3), deposits[0].Block)

	ts, err := l.BlockTimestamp(ctx, deposits[0].Block)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC), ts)

	_, err = l.BlockTimestamp(ctx, 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryLedger_CardInfoReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.CreateCard(ctx, big.NewInt(10))
	require.NoError(t, err)

	card, err := l.CardInfo(ctx, 0)
	require.NoError(t, err)
	card.Balance.SetInt64(999)

	again, err := l.CardInfo(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Balance.Sign())
}

func TestMemoryLedger_CancelledContext(t *testing.T) {
	l := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.CardInfo(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, l.Ping(ctx), context.Canceled)
}
