package mocks

import (
	"context"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// MockHealthChecker is a mock of service.HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

// NewMockHealthChecker creates a mock that asserts its expectations on cleanup
func NewMockHealthChecker(t TestingT) *MockHealthChecker {
	m := &MockHealthChecker{}
	register(&m.Mock, t)
	return m
}

func (m *MockHealthChecker) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPortfolioComputer is a mock of service.PortfolioComputer
type MockPortfolioComputer struct {
	mock.Mock
}

// NewMockPortfolioComputer creates a mock that asserts its expectations on cleanup
func NewMockPortfolioComputer(t TestingT) *MockPortfolioComputer {
	m := &MockPortfolioComputer{}
	register(&m.Mock, t)
	return m
}

func (m *MockPortfolioComputer) ComputePortfolio(ctx context.Context, owner common.Address) (*models.Portfolio, error) {
	args := m.Called(ctx, owner)
	return ret[*models.Portfolio](args, 0), args.Error(1)
}

// MockSnapshotRepository is a mock of service.SnapshotRepository
type MockSnapshotRepository struct {
	mock.Mock
}

// NewMockSnapshotRepository creates a mock that asserts its expectations on cleanup
func NewMockSnapshotRepository(t TestingT) *MockSnapshotRepository {
	m := &MockSnapshotRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockSnapshotRepository) Save(ctx context.Context, portfolio *models.Portfolio) error {
	return m.Called(ctx, portfolio).Error(0)
}

func (m *MockSnapshotRepository) Latest(ctx context.Context, owner common.Address) (*models.Portfolio, error) {
	args := m.Called(ctx, owner)
	return ret[*models.Portfolio](args, 0), args.Error(1)
}

// MockPortfolioPublisher is a mock of service.PortfolioPublisher
type MockPortfolioPublisher struct {
	mock.Mock
}

// NewMockPortfolioPublisher creates a mock that asserts its expectations on cleanup
func NewMockPortfolioPublisher(t TestingT) *MockPortfolioPublisher {
	m := &MockPortfolioPublisher{}
	register(&m.Mock, t)
	return m
}

func (m *MockPortfolioPublisher) Publish(ctx context.Context, portfolio *models.Portfolio) error {
	return m.Called(ctx, portfolio).Error(0)
}

// MockIdempotencyRepository is a mock of middleware.IdempotencyRepository
type MockIdempotencyRepository struct {
	mock.Mock
}

// NewMockIdempotencyRepository creates a mock that asserts its expectations on cleanup
func NewMockIdempotencyRepository(t TestingT) *MockIdempotencyRepository {
	m := &MockIdempotencyRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	args := m.Called(ctx, key, requestPath)
	return ret[*models.IdempotencyKey](args, 0), args.Error(1)
}

func (m *MockIdempotencyRepository) Store(ctx context.Context, idemKey *models.IdempotencyKey) error {
	return m.Called(ctx, idemKey).Error(0)
}
