package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benx421/smartcards/internal/cache"
	"github.com/benx421/smartcards/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampResolver_Resolve(t *testing.T) {
	reader := &stubReader{}
	r := NewTimestampResolver(reader, nil, 0, nil)

	events := []models.LedgerEvent{
		created(0, 5, 0, alice, 10),
		deposited(0, 5, 1, alice, 3),
		deposited(0, 9, 0, alice, 4),
	}
	require.NoError(t, r.Resolve(context.Background(), events))

	assert.Equal(t, testStart.Add(5*time.Minute), events[0].Timestamp)
	assert.Equal(t, events[0].Timestamp, events[1].Timestamp)
	assert.Equal(t, testStart.Add(9*time.Minute), events[2].Timestamp)
	assert.Equal(t, int64(2), reader.blockCalls.Load(), "one lookup per distinct block")
}

func TestTimestampResolver_Empty(t *testing.T) {
	reader := &stubReader{}
	r := NewTimestampResolver(reader, nil, 0, nil)

	require.NoError(t, r.Resolve(context.Background(), nil))
	assert.Zero(t, reader.blockCalls.Load())
}

func TestTimestampResolver_FailureFailsAll(t *testing.T) {
	reader := &stubReader{
		blockTimestamp: func(_ context.Context, block uint64) (time.Time, error) {
			if block == 2 {
				return time.Time{}, errors.New("header not available")
			}
			return testStart, nil
		},
	}
	r := NewTimestampResolver(reader, nil, 0, nil)

	events := []models.LedgerEvent{created(0, 1, 0, alice, 1), deposited(0, 2, 0, alice, 1)}
	err := r.Resolve(context.Background(), events)
	require.Error(t, err)
	assert.Equal(t, ErrCodeLedgerUnavailable, ErrorCode(err))
}

func TestTimestampResolver_BoundedConcurrency(t *testing.T) {
	reader := &stubReader{
		blockTimestamp: func(_ context.Context, _ uint64) (time.Time, error) {
			time.Sleep(5 * time.Millisecond)
			return testStart, nil
		},
	}
	r := NewTimestampResolver(reader, nil, 2, nil)

	events := make([]models.LedgerEvent, 0, 12)
	for block := uint64(1); block <= 12; block++ {
		events = append(events, deposited(0, block, 0, alice, 1))
	}
	require.NoError(t, r.Resolve(context.Background(), events))
	assert.LessOrEqual(t, reader.maxInFlight.Load(), int64(2))
	assert.Equal(t, int64(12), reader.blockCalls.Load())
}

func TestTimestampResolver_UsesCache(t *testing.T) {
	blockTimes, err := cache.NewLRUBlockTimes(16)
	require.NoError(t, err)
	reader := &stubReader{}
	r := NewTimestampResolver(reader, blockTimes, 0, nil)

	first := []models.LedgerEvent{deposited(0, 3, 0, alice, 1), deposited(0, 4, 0, alice, 1)}
	require.NoError(t, r.Resolve(context.Background(), first))
	assert.Equal(t, int64(2), reader.blockCalls.Load())
	assert.Equal(t, 2, blockTimes.Len())

	second := []models.LedgerEvent{deposited(0, 3, 1, alice, 1), deposited(0, 4, 1, alice, 1)}
	require.NoError(t, r.Resolve(context.Background(), second))
	assert.Equal(t, int64(2), reader.blockCalls.Load(), "second pass is served from cache")
	assert.Equal(t, first[0].Timestamp, second[0].Timestamp)
}
