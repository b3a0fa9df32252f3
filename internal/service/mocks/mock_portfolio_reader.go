package mocks

import (
	"context"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockPortfolioReader is a mock of service.PortfolioReader
type MockPortfolioReader struct {
	mock.Mock
}

// NewMockPortfolioReader creates a mock that asserts its expectations on cleanup
func NewMockPortfolioReader(t TestingT) *MockPortfolioReader {
	m := &MockPortfolioReader{}
	register(&m.Mock, t)
	return m
}

func (m *MockPortfolioReader) ComputePortfolio(ctx context.Context, owner common.Address) (*models.Portfolio, error) {
	args := m.Called(ctx, owner)
	return ret[*models.Portfolio](args, 0), args.Error(1)
}

func (m *MockPortfolioReader) ComputePortfolioIn(ctx context.Context, owner common.Address, loc *time.Location) (*models.Portfolio, error) {
	args := m.Called(ctx, owner, loc)
	return ret[*models.Portfolio](args, 0), args.Error(1)
}

func (m *MockPortfolioReader) ListOwnedCards(ctx context.Context, owner common.Address) ([]models.Card, error) {
	args := m.Called(ctx, owner)
	return ret[[]models.Card](args, 0), args.Error(1)
}

func (m *MockPortfolioReader) ListOwnedEvents(ctx context.Context, owner common.Address) ([]models.LedgerEvent, error) {
	args := m.Called(ctx, owner)
	return ret[[]models.LedgerEvent](args, 0), args.Error(1)
}

func (m *MockPortfolioReader) ListSpendableCards(ctx context.Context, owner common.Address) ([]models.Card, error) {
	args := m.Called(ctx, owner)
	return ret[[]models.Card](args, 0), args.Error(1)
}

func (m *MockPortfolioReader) RecentSpends(ctx context.Context, owner common.Address, limit int) ([]models.LedgerEvent, error) {
	args := m.Called(ctx, owner, limit)
	return ret[[]models.LedgerEvent](args, 0), args.Error(1)
}
