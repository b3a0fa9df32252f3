package mocks

import (
	"context"

	"github.com/benx421/smartcards/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockCardOperator is a mock of service.CardOperator
type MockCardOperator struct {
	mock.Mock
}

// NewMockCardOperator creates a mock that asserts its expectations on cleanup
func NewMockCardOperator(t TestingT) *MockCardOperator {
	m := &MockCardOperator{}
	register(&m.Mock, t)
	return m
}

func (m *MockCardOperator) Create(ctx context.Context, spendingLimit string) (*models.Submission, error) {
	args := m.Called(ctx, spendingLimit)
	return ret[*models.Submission](args, 0), args.Error(1)
}

func (m *MockCardOperator) Deposit(ctx context.Context, cardID uint64, amount string) (*models.Submission, error) {
	args := m.Called(ctx, cardID, amount)
	return ret[*models.Submission](args, 0), args.Error(1)
}

func (m *MockCardOperator) Withdraw(ctx context.Context, cardID uint64, amount string) (*models.Submission, error) {
	args := m.Called(ctx, cardID, amount)
	return ret[*models.Submission](args, 0), args.Error(1)
}

func (m *MockCardOperator) Spend(ctx context.Context, cardID uint64, recipient, amount string) (*models.Submission, error) {
	args := m.Called(ctx, cardID, recipient, amount)
	return ret[*models.Submission](args, 0), args.Error(1)
}

func (m *MockCardOperator) ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error) {
	args := m.Called(ctx, cardID)
	return ret[*models.Submission](args, 0), args.Error(1)
}

func (m *MockCardOperator) SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error) {
	args := m.Called(ctx, cardID, active)
	return ret[*models.Submission](args, 0), args.Error(1)
}

func (m *MockCardOperator) ChangeLimit(ctx context.Context, cardID uint64, newLimit string) (*models.Submission, error) {
	args := m.Called(ctx, cardID, newLimit)
	return ret[*models.Submission](args, 0), args.Error(1)
}
