// Package ledger provides access to the SmartCard contract that holds cards,
// balances and the event log.
package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// Reader is the read-only view of the ledger used by the portfolio aggregator
type Reader interface {
	// CardInfo returns the card with the given ID, or models.ErrNotFound when
	// no card has been created at that ID. Any other error is a transport failure.
	CardInfo(ctx context.Context, id uint64) (*models.Card, error)

	// QueryEvents returns every event of the given kind between fromBlock and
	// toBlock inclusive. A nil toBlock means the current tip.
	QueryEvents(ctx context.Context, kind models.EventKind, fromBlock uint64, toBlock *uint64) ([]models.LedgerEvent, error)

	// BlockTimestamp returns the wall-clock time the given block was produced.
	BlockTimestamp(ctx context.Context, block uint64) (time.Time, error)
}

// Writer issues state-changing calls against the ledger. Every call is signed
// by the account the ledger was opened with.
type Writer interface {
	CreateCard(ctx context.Context, spendingLimit *big.Int) (*models.Submission, error)
	Deposit(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error)
	Withdraw(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error)
	Spend(ctx context.Context, cardID uint64, amount *big.Int, recipient common.Address) (*models.Submission, error)
	ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error)
	SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error)
	ChangeLimit(ctx context.Context, cardID uint64, newLimit *big.Int) (*models.Submission, error)
}

// Ledger is the full contract surface
type Ledger interface {
	Reader
	Writer
	// Ping checks the ledger is reachable.
	Ping(ctx context.Context) error
	// ChainID reports the network the ledger lives on.
	ChainID() uint64
	Close()
}
