package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MemoryLedger is an in-process stand-in for the SmartCard contract. It applies
// the same rules the contract enforces and mines one block per mutation, so
// event order and block timestamps behave like a real chain.
type MemoryLedger struct {
	clock   func() time.Time
	cards   []models.Card
	events  []models.LedgerEvent
	blocks  []time.Time // index is the block number; block 0 is genesis
	mu      sync.RWMutex
	chainID uint64
	signer  common.Address
}

// NewMemoryLedger creates a ledger whose default writer signs as signer
func NewMemoryLedger(chainID uint64, signer common.Address) *MemoryLedger {
	return &MemoryLedger{
		clock:   time.Now,
		blocks:  []time.Time{time.Now()},
		chainID: chainID,
		signer:  signer,
	}
}

// SetClock replaces the time source used to stamp newly mined blocks
func (m *MemoryLedger) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// As returns a writer that signs calls as from
func (m *MemoryLedger) As(from common.Address) Writer {
	return &memoryWriter{ledger: m, from: from}
}

// Signer returns the account the default writer signs as
func (m *MemoryLedger) Signer() (common.Address, bool) {
	return m.signer, true
}

// ChainID implements Ledger
func (m *MemoryLedger) ChainID() uint64 {
	return m.chainID
}

// Ping implements Ledger
func (m *MemoryLedger) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Ledger
func (m *MemoryLedger) Close() {}

// Tip returns the latest mined block number
func (m *MemoryLedger) Tip() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.blocks) - 1)
}

// CardInfo implements Reader
func (m *MemoryLedger) CardInfo(ctx context.Context, id uint64) (*models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if id >= uint64(len(m.cards)) {
		return nil, fmt.Errorf("card %d: %w", id, models.ErrNotFound)
	}
	card := cloneCard(m.cards[id])
	return &card, nil
}

// QueryEvents implements Reader
func (m *MemoryLedger) QueryEvents(ctx context.Context, kind models.EventKind, fromBlock uint64, toBlock *uint64) ([]models.LedgerEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.LedgerEvent
	for _, e := range m.events {
		if e.Kind() != kind || e.Block < fromBlock {
			continue
		}
		if toBlock != nil && e.Block > *toBlock {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// BlockTimestamp implements Reader
func (m *MemoryLedger) BlockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if block >= uint64(len(m.blocks)) {
		return time.Time{}, fmt.Errorf("block %d: %w", block, models.ErrNotFound)
	}
	return m.blocks[block], nil
}

// CreateCard implements Writer
func (m *MemoryLedger) CreateCard(ctx context.Context, spendingLimit *big.Int) (*models.Submission, error) {
	return m.As(m.signer).CreateCard(ctx, spendingLimit)
}

// Deposit implements Writer
func (m *MemoryLedger) Deposit(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error) {
	return m.As(m.signer).Deposit(ctx, cardID, amount)
}

// Withdraw implements Writer
func (m *MemoryLedger) Withdraw(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error) {
	return m.As(m.signer).Withdraw(ctx, cardID, amount)
}

// Spend implements Writer
func (m *MemoryLedger) Spend(ctx context.Context, cardID uint64, amount *big.Int, recipient common.Address) (*models.Submission, error) {
	return m.As(m.signer).Spend(ctx, cardID, amount, recipient)
}

// ResetSpent implements Writer
func (m *MemoryLedger) ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error) {
	return m.As(m.signer).ResetSpent(ctx, cardID)
}

// SetActive implements Writer
func (m *MemoryLedger) SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error) {
	return m.As(m.signer).SetActive(ctx, cardID, active)
}

// ChangeLimit implements Writer
func (m *MemoryLedger) ChangeLimit(ctx context.Context, cardID uint64, newLimit *big.Int) (*models.Submission, error) {
	return m.As(m.signer).ChangeLimit(ctx, cardID, newLimit)
}

// mine appends a block and stamps the given events into it. Callers hold mu.
func (m *MemoryLedger) mine(events ...models.LedgerEvent) *models.Submission {
	block := uint64(len(m.blocks))
	m.blocks = append(m.blocks, m.clock())

	var seed [16]byte
	binary.BigEndian.PutUint64(seed[:8], m.chainID)
	binary.BigEndian.PutUint64(seed[8:], block)
	txHash := crypto.Keccak256Hash(seed[:])

	for i := range events {
		events[i].Block = block
		events[i].LogIndex = uint(i)
		events[i].TxHash = txHash
		m.events = append(m.events, events[i])
	}
	return &models.Submission{TxHash: txHash, Block: block}
}

// ownedCard looks up a card the caller may modify. Callers hold mu.
func (m *MemoryLedger) ownedCard(cardID uint64, from common.Address) (*models.Card, error) {
	if cardID >= uint64(len(m.cards)) {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrNotFound)
	}
	card := &m.cards[cardID]
	if card.Owner != from {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrNotOwner)
	}
	return card, nil
}

type memoryWriter struct {
	ledger *MemoryLedger
	from   common.Address
}

func (w *memoryWriter) CreateCard(ctx context.Context, spendingLimit *big.Int) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spendingLimit == nil || spendingLimit.Sign() <= 0 {
		return nil, fmt.Errorf("spending limit must be positive")
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uint64(len(m.cards))
	m.cards = append(m.cards, models.Card{
		ID:            id,
		Owner:         w.from,
		Balance:       new(big.Int),
		SpendingLimit: new(big.Int).Set(spendingLimit),
		AmountSpent:   new(big.Int),
		IsActive:      true,
	})

	sub := m.mine(models.LedgerEvent{
		CardID:  id,
		Account: w.from,
		Payload: models.CardCreatedPayload{Owner: w.from, SpendingLimit: new(big.Int).Set(spendingLimit)},
	})
	sub.CardID = &id
	return sub, nil
}

func (w *memoryWriter) Deposit(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	if cardID >= uint64(len(m.cards)) {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrNotFound)
	}
	card := &m.cards[cardID]
	if !card.IsActive {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrCardInactive)
	}
	card.Balance = new(big.Int).Add(card.Balance, amount)

	return m.mine(models.LedgerEvent{
		CardID:  cardID,
		Account: w.from,
		Payload: models.CardDepositedPayload{From: w.from, Value: new(big.Int).Set(amount)},
	}), nil
}

func (w *memoryWriter) Withdraw(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("withdraw amount must be positive")
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	card, err := m.ownedCard(cardID, w.from)
	if err != nil {
		return nil, err
	}
	if !card.IsActive {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrCardInactive)
	}
	if card.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrInsufficientFunds)
	}
	card.Balance = new(big.Int).Sub(card.Balance, amount)

	return m.mine(models.LedgerEvent{
		CardID:  cardID,
		Account: w.from,
		Payload: models.CardWithdrawnPayload{Owner: w.from, Value: new(big.Int).Set(amount)},
	}), nil
}

func (w *memoryWriter) Spend(ctx context.Context, cardID uint64, amount *big.Int, recipient common.Address) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("spend amount must be positive")
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	card, err := m.ownedCard(cardID, w.from)
	if err != nil {
		return nil, err
	}
	if !card.IsActive {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrCardInactive)
	}
	if card.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrInsufficientFunds)
	}
	if card.RemainingLimit().Cmp(amount) < 0 {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrLimitExceeded)
	}
	card.Balance = new(big.Int).Sub(card.Balance, amount)
	card.AmountSpent = new(big.Int).Add(card.AmountSpent, amount)

	return m.mine(models.LedgerEvent{
		CardID:  cardID,
		Account: w.from,
		Payload: models.CardSpentPayload{From: w.from, Recipient: recipient, Value: new(big.Int).Set(amount)},
	}), nil
}

// ResetSpent emits no event; the contract only records the new spent amount.
func (w *memoryWriter) ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	card, err := m.ownedCard(cardID, w.from)
	if err != nil {
		return nil, err
	}
	if !card.IsActive {
		return nil, fmt.Errorf("card %d: %w", cardID, models.ErrCardInactive)
	}
	card.AmountSpent = new(big.Int)

	return m.mine(), nil
}

func (w *memoryWriter) SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	card, err := m.ownedCard(cardID, w.from)
	if err != nil {
		return nil, err
	}
	card.IsActive = active

	return m.mine(models.LedgerEvent{
		CardID:  cardID,
		Payload: models.CardStatusChangedPayload{IsActive: active},
	}), nil
}

func (w *memoryWriter) ChangeLimit(ctx context.Context, cardID uint64, newLimit *big.Int) (*models.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if newLimit == nil || newLimit.Sign() <= 0 {
		return nil, fmt.Errorf("spending limit must be positive")
	}

	m := w.ledger
	m.mu.Lock()
	defer m.mu.Unlock()

	card, err := m.ownedCard(cardID, w.from)
	if err != nil {
		return nil, err
	}
	card.SpendingLimit = new(big.Int).Set(newLimit)

	return m.mine(models.LedgerEvent{
		CardID:  cardID,
		Payload: models.SpendingLimitChangedPayload{NewLimit: new(big.Int).Set(newLimit)},
	}), nil
}

func cloneCard(c models.Card) models.Card {
	c.Balance = new(big.Int).Set(c.Balance)
	c.SpendingLimit = new(big.Int).Set(c.SpendingLimit)
	c.AmountSpent = new(big.Int).Set(c.AmountSpent)
	return c
}

// Compile-time check: ensure MemoryLedger implements Ledger interface
var _ Ledger = (*MemoryLedger)(nil)
