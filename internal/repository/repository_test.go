package repository

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benx421/smartcards/internal/db"
	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = common.HexToAddress("0xA11CE00000000000000000000000000000000001")

func newMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqlDB.Close() //nolint:errcheck // test cleanup
	})
	return db.New(sqlDB, nil), mock
}

func testPortfolio() *models.Portfolio {
	return &models.Portfolio{
		PassID:            uuid.New(),
		Sequence:          7,
		Owner:             owner,
		TotalCards:        2,
		ActiveCards:       1,
		TotalTransactions: 5,
		TotalBalance:      decimal.RequireFromString("40.5"),
		TotalSpent:        decimal.NewFromInt(25),
		SpendingLimit:     decimal.NewFromInt(110),
		SpentRatio:        models.Ratio(math.NaN()),
		CardActivity: []models.CardActivitySummary{
			{CardID: 0, TransactionCount: 3, TotalSpent: decimal.NewFromInt(25)},
		},
		DailyVolume: []models.DailyVolume{
			{Day: "2026-03-01", Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Volume: decimal.NewFromInt(90)},
		},
		ComputedAt: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotRepository_Save(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewSnapshotRepository(database)
	p := testPortfolio()

	mock.ExpectExec("INSERT INTO portfolio_snapshots").
		WithArgs(owner.Hex(), p.PassID, int64(7), sqlmock.AnyArg(), p.ComputedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), p))
}

func TestSnapshotRepository_SaveError(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewSnapshotRepository(database)

	mock.ExpectExec("INSERT INTO portfolio_snapshots").WillReturnError(sql.ErrConnDone)

	err := repo.Save(context.Background(), testPortfolio())
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestSnapshotRepository_Latest(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewSnapshotRepository(database)

	mem := NewMemorySnapshotRepository()
	p := testPortfolio()
	require.NoError(t, mem.Save(context.Background(), p))
	payload := mem.snapshots[owner]

	mock.ExpectQuery("SELECT payload FROM portfolio_snapshots WHERE owner = \\$1").
		WithArgs(owner.Hex()).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := repo.Latest(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, p.PassID, got.PassID)
	assert.Equal(t, p.Sequence, got.Sequence)
	assert.True(t, p.TotalBalance.Equal(got.TotalBalance))
	assert.True(t, got.SpentRatio.IsNaN())
	require.Len(t, got.DailyVolume, 1)
	assert.Equal(t, "2026-03-01", got.DailyVolume[0].Day)
}

func TestSnapshotRepository_LatestNotFound(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewSnapshotRepository(database)

	mock.ExpectQuery("SELECT payload FROM portfolio_snapshots").
		WithArgs(owner.Hex()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), owner)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemorySnapshotRepository(t *testing.T) {
	repo := NewMemorySnapshotRepository()
	ctx := context.Background()

	_, err := repo.Latest(ctx, owner)
	assert.ErrorIs(t, err, models.ErrNotFound)

	p := testPortfolio()
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Latest(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, p.PassID, got.PassID)
	assert.NotSame(t, p, got)

	got.TotalCards = 99
	again, err := repo.Latest(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, again.TotalCards, "callers cannot mutate stored snapshots")
}

func TestIdempotencyRepository_Get(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewIdempotencyRepository(database)
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT key, request_path, response_status, response_body, created_at FROM idempotency_keys").
		WithArgs("key-1", "/api/v1/cards").
		WillReturnRows(sqlmock.NewRows([]string{"key", "request_path", "response_status", "response_body", "created_at"}).
			AddRow("key-1", "/api/v1/cards", 201, `{"card_id":3}`, createdAt))

	got, err := repo.Get(context.Background(), "key-1", "/api/v1/cards")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 201, got.ResponseStatus)
	assert.Equal(t, `{"card_id":3}`, got.ResponseBody)
	assert.Equal(t, createdAt, got.CreatedAt)
}

func TestIdempotencyRepository_GetMissing(t *testing.T) {
	database, mock := newMockDB(t)
	repo := NewIdempotencyRepository(database)

	mock.ExpectQuery("FROM idempotency_keys").
		WithArgs("missing", "/api/v1/cards").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(context.Background(), "missing", "/api/v1/cards")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotencyRepository_Store(t *testing.T) {
	tests := []struct {
		execErr error
		name    string
		wantErr bool
	}{
		{name: "stores key"},
		{name: "wraps driver error", execErr: errors.New("pq: connection refused"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock := newMockDB(t)
			repo := NewIdempotencyRepository(database)

			exec := mock.ExpectExec("INSERT INTO idempotency_keys .* ON CONFLICT \\(key, request_path\\) DO NOTHING").
				WithArgs("key-1", "/api/v1/cards/0/deposits", 200, `{}`, sqlmock.AnyArg())
			if tt.execErr != nil {
				exec.WillReturnError(tt.execErr)
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.Store(context.Background(), &models.IdempotencyKey{
				Key:            "key-1",
				RequestPath:    "/api/v1/cards/0/deposits",
				ResponseStatus: 200,
				ResponseBody:   `{}`,
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.execErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMemoryIdempotencyRepository(t *testing.T) {
	repo := NewMemoryIdempotencyRepository()
	ctx := context.Background()

	got, err := repo.Get(ctx, "k", "/api/v1/cards")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Store(ctx, &models.IdempotencyKey{Key: "k", RequestPath: "/api/v1/cards", ResponseStatus: 201, ResponseBody: "first"}))
	require.NoError(t, repo.Store(ctx, &models.IdempotencyKey{Key: "k", RequestPath: "/api/v1/cards", ResponseStatus: 201, ResponseBody: "second"}))

	got, err = repo.Get(ctx, "k", "/api/v1/cards")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ResponseBody)
	assert.False(t, got.CreatedAt.IsZero())

	other, err := repo.Get(ctx, "k", "/api/v1/cards/1/spends")
	require.NoError(t, err)
	assert.Nil(t, other, "keys are scoped by path")
}
