package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	err      error
	messages []kafka.Message
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var publishedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testPortfolio() *models.Portfolio {
	return &models.Portfolio{
		PassID:       uuid.MustParse("8f14e45f-ceea-467f-a0e6-5c3a2f1b9d10"),
		Sequence:     12,
		Owner:        common.HexToAddress("0xA11CE00000000000000000000000000000000001"),
		TotalCards:   1,
		TotalBalance: decimal.NewFromInt(3),
		SpentRatio:   models.Ratio(math.NaN()),
	}
}

func TestNewMessage(t *testing.T) {
	p := testPortfolio()

	msg, err := NewMessage(p, publishedAt)
	require.NoError(t, err)

	assert.Equal(t, p.Owner.Hex(), string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, EventPortfolioComputed, headers["event_type"])
	assert.Equal(t, "8f14e45f-ceea-467f-a0e6-5c3a2f1b9d10", headers["pass_id"])
	assert.Equal(t, "12", headers["sequence"])

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventPortfolioComputed, env.Type)
	assert.Equal(t, publishedAt, env.PublishedAt)
	require.NotNil(t, env.Portfolio)
	assert.Equal(t, p.PassID, env.Portfolio.PassID)
	assert.True(t, env.Portfolio.SpentRatio.IsNaN())
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{
		writer: w,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return publishedAt },
	}

	require.NoError(t, p.Publish(context.Background(), testPortfolio()))
	require.Len(t, w.messages, 1)

	w.err = errors.New("leader not available")
	err := p.Publish(context.Background(), testPortfolio())
	assert.ErrorIs(t, err, w.err)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), testPortfolio()))
	assert.NoError(t, NopPublisher{}.Close())
}
