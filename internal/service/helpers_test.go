package service

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benx421/smartcards/internal/ledger"
	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xA11CE00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xB0B0000000000000000000000000000000000002")
	carol = common.HexToAddress("0xCA70100000000000000000000000000000000003")
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestLedger returns a memory ledger signed by alice whose blocks are one
// hour apart
func newTestLedger(t *testing.T) *ledger.MemoryLedger {
	t.Helper()
	l := ledger.NewMemoryLedger(31337, alice)
	tick := 0
	l.SetClock(func() time.Time {
		tick++
		return testStart.Add(time.Duration(tick) * time.Hour)
	})
	return l
}

// newTestPortfolioService wires a portfolio service over reader with raw
// amounts reported one to one (zero decimals)
func newTestPortfolioService(reader ledger.Reader) *PortfolioService {
	m := metrics.New(nil)
	logger := testLogger()
	return NewPortfolioService(
		NewCardEnumerator(reader, 0, logger, m),
		NewEventFetcher(reader, logger, m),
		NewTimestampResolver(reader, nil, 0, m),
		NewAggregator(time.UTC, 0),
		m,
		logger,
	)
}

// mustSubmit fails the test if a ledger write errors:
//
//	mustSubmit(t)(l.Deposit(ctx, 0, amount))
func mustSubmit(t *testing.T) func(*models.Submission, error) *models.Submission {
	t.Helper()
	return func(sub *models.Submission, err error) *models.Submission {
		t.Helper()
		require.NoError(t, err)
		return sub
	}
}

// seedLedger builds a small multi-owner history:
//
//	card 0  alice  limit 100, deposit 60, spend 25 to carol
//	card 1  bob    limit 50,  deposit 10
//	card 2  alice  limit 10,  deposit 5, deactivated
func seedLedger(t *testing.T, l *ledger.MemoryLedger) {
	t.Helper()
	ctx := context.Background()

	mustSubmit(t)(l.CreateCard(ctx, big.NewInt(100)))
	mustSubmit(t)(l.Deposit(ctx, 0, big.NewInt(60)))
	mustSubmit(t)(l.Spend(ctx, 0, big.NewInt(25), carol))

	asBob := l.As(bob)
	mustSubmit(t)(asBob.CreateCard(ctx, big.NewInt(50)))
	mustSubmit(t)(asBob.Deposit(ctx, 1, big.NewInt(10)))

	mustSubmit(t)(l.CreateCard(ctx, big.NewInt(10)))
	mustSubmit(t)(l.Deposit(ctx, 2, big.NewInt(5)))
	mustSubmit(t)(l.SetActive(ctx, 2, false))
}

// stubReader is a ledger.Reader driven by per-method funcs. Unset funcs
// behave like an empty ledger.
type stubReader struct {
	cardInfo       func(ctx context.Context, id uint64) (*models.Card, error)
	queryEvents    func(ctx context.Context, kind models.EventKind) ([]models.LedgerEvent, error)
	blockTimestamp func(ctx context.Context, block uint64) (time.Time, error)

	mu          sync.Mutex
	cardCalls   []uint64
	blockCalls  atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (s *stubReader) CardInfo(ctx context.Context, id uint64) (*models.Card, error) {
	s.mu.Lock()
	s.cardCalls = append(s.cardCalls, id)
	s.mu.Unlock()
	if s.cardInfo == nil {
		return nil, models.ErrNotFound
	}
	return s.cardInfo(ctx, id)
}

func (s *stubReader) QueryEvents(ctx context.Context, kind models.EventKind, _ uint64, _ *uint64) ([]models.LedgerEvent, error) {
	if s.queryEvents == nil {
		return nil, nil
	}
	return s.queryEvents(ctx, kind)
}

func (s *stubReader) BlockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	s.blockCalls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.blockTimestamp == nil {
		return testStart.Add(time.Duration(block) * time.Minute), nil // #nosec G115
	}
	return s.blockTimestamp(ctx, block)
}

var _ ledger.Reader = (*stubReader)(nil)

func created(card, block uint64, logIndex uint, owner common.Address, limit int64) models.LedgerEvent {
	return models.LedgerEvent{
		CardID: card, Block: block, LogIndex: logIndex, Account: owner,
		Payload: models.CardCreatedPayload{Owner: owner, SpendingLimit: big.NewInt(limit)},
	}
}

func deposited(card, block uint64, logIndex uint, from common.Address, amount int64) models.LedgerEvent {
	return models.LedgerEvent{
		CardID: card, Block: block, LogIndex: logIndex, Account: from,
		Payload: models.CardDepositedPayload{From: from, Value: big.NewInt(amount)},
	}
}

func spent(card, block uint64, logIndex uint, from common.Address, amount int64) models.LedgerEvent {
	return models.LedgerEvent{
		CardID: card, Block: block, LogIndex: logIndex, Account: from,
		Payload: models.CardSpentPayload{From: from, Recipient: carol, Value: big.NewInt(amount)},
	}
}

func at(e models.LedgerEvent, ts time.Time) models.LedgerEvent {
	e.Timestamp = ts
	return e
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
