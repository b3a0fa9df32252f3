// Package events publishes committed portfolio snapshots to Kafka so
// downstream consumers see every wallet refresh.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/benx421/smartcards/internal/config"
	"github.com/benx421/smartcards/internal/models"
	"github.com/segmentio/kafka-go"
)

// EventPortfolioComputed is the envelope type of published snapshots
const EventPortfolioComputed = "portfolio.computed"

// Envelope wraps a snapshot with routing metadata
type Envelope struct {
	PublishedAt time.Time         `json:"published_at"`
	Portfolio   *models.Portfolio `json:"portfolio"`
	Type        string            `json:"type"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per committed snapshot, keyed by owner so
// a wallet's snapshots stay ordered within a partition
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for the configured brokers and topic
func NewKafkaPublisher(cfg *config.KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	logger.Info("publishing portfolio snapshots to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Publish implements service.PortfolioPublisher
func (p *KafkaPublisher) Publish(ctx context.Context, portfolio *models.Portfolio) error {
	msg, err := NewMessage(portfolio, p.now())
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish portfolio snapshot: %w", err)
	}

	p.logger.Debug("published portfolio snapshot",
		"owner", portfolio.Owner.Hex(),
		"sequence", portfolio.Sequence,
	)
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewMessage builds the Kafka message for a snapshot
func NewMessage(portfolio *models.Portfolio, publishedAt time.Time) (kafka.Message, error) {
	value, err := json.Marshal(Envelope{
		Type:        EventPortfolioComputed,
		PublishedAt: publishedAt.UTC(),
		Portfolio:   portfolio,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode portfolio snapshot: %w", err)
	}

	return kafka.Message{
		Key:   []byte(portfolio.Owner.Hex()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventPortfolioComputed)},
			{Key: "pass_id", Value: []byte(portfolio.PassID.String())},
			{Key: "sequence", Value: []byte(strconv.FormatUint(portfolio.Sequence, 10))},
		},
		Time: publishedAt,
	}, nil
}

// NopPublisher discards snapshots when no brokers are configured
type NopPublisher struct{}

// Publish implements service.PortfolioPublisher
func (NopPublisher) Publish(context.Context, *models.Portfolio) error { return nil }

// Close is a no-op
func (NopPublisher) Close() error { return nil }
