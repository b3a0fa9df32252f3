package service

import (
	"context"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// HealthChecker validates system health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PortfolioReader exposes the read-side aggregation operations
type PortfolioReader interface {
	ComputePortfolio(ctx context.Context, owner common.Address) (*models.Portfolio, error)
	ComputePortfolioIn(ctx context.Context, owner common.Address, loc *time.Location) (*models.Portfolio, error)
	ListOwnedCards(ctx context.Context, owner common.Address) ([]models.Card, error)
	ListOwnedEvents(ctx context.Context, owner common.Address) ([]models.LedgerEvent, error)
	ListSpendableCards(ctx context.Context, owner common.Address) ([]models.Card, error)
	RecentSpends(ctx context.Context, owner common.Address, limit int) ([]models.LedgerEvent, error)
}

// CardOperator handles card mutations. Amounts are whole-unit decimal strings.
type CardOperator interface {
	Create(ctx context.Context, spendingLimit string) (*models.Submission, error)
	Deposit(ctx context.Context, cardID uint64, amount string) (*models.Submission, error)
	Withdraw(ctx context.Context, cardID uint64, amount string) (*models.Submission, error)
	Spend(ctx context.Context, cardID uint64, recipient, amount string) (*models.Submission, error)
	ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error)
	SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error)
	ChangeLimit(ctx context.Context, cardID uint64, newLimit string) (*models.Submission, error)
}

// SnapshotRepository keeps the last committed portfolio per owner
type SnapshotRepository interface {
	Save(ctx context.Context, portfolio *models.Portfolio) error
	Latest(ctx context.Context, owner common.Address) (*models.Portfolio, error)
}

// PortfolioPublisher announces committed portfolios to downstream consumers
type PortfolioPublisher interface {
	Publish(ctx context.Context, portfolio *models.Portfolio) error
}

// Ensure concrete types implement interfaces
var (
	_ PortfolioReader = (*PortfolioService)(nil)
	_ CardOperator    = (*CardService)(nil)
)
