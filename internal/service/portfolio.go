package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pass operations, used as the metrics label
const (
	OpPortfolio = "portfolio"
	OpCards     = "cards"
	OpEvents    = "events"
	OpSpends    = "spends"
)

// PortfolioService answers the read-side questions about a wallet: its cards,
// its history and the summary derived from both. Every call is a fresh pass
// against the ledger; nothing is cached beyond block timestamps.
type PortfolioService struct {
	enumerator *CardEnumerator
	fetcher    *EventFetcher
	resolver   *TimestampResolver
	aggregator *Aggregator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewPortfolioService creates a new PortfolioService
func NewPortfolioService(
	enumerator *CardEnumerator,
	fetcher *EventFetcher,
	resolver *TimestampResolver,
	aggregator *Aggregator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		enumerator: enumerator,
		fetcher:    fetcher,
		resolver:   resolver,
		aggregator: aggregator,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// ComputePortfolio aggregates owner's portfolio with days bucketed in the
// service's default timezone
func (s *PortfolioService) ComputePortfolio(ctx context.Context, owner common.Address) (*models.Portfolio, error) {
	return s.ComputePortfolioIn(ctx, owner, nil)
}

// ComputePortfolioIn aggregates owner's portfolio with days bucketed in loc.
// A nil loc uses the default timezone. Any ledger failure aborts the pass and
// no partial portfolio is returned.
func (s *PortfolioService) ComputePortfolioIn(ctx context.Context, owner common.Address, loc *time.Location) (*models.Portfolio, error) {
	passID := uuid.New()
	start := s.now()
	logger := s.logger.With("pass_id", passID.String(), "owner", owner.Hex())

	var (
		cards  []models.Card
		events []models.LedgerEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cards, err = s.enumerator.ListOwned(gctx, owner)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.fetcher.Fetch(gctx, DashboardKinds)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(logger, OpPortfolio, start, err)
		return nil, err
	}

	owned := FilterOwned(events, owner)
	if err := s.resolver.Resolve(ctx, owned); err != nil {
		s.fail(logger, OpPortfolio, start, err)
		return nil, err
	}
	SortNewestFirst(owned)

	aggregator := s.aggregator
	if loc != nil {
		aggregator = aggregator.In(loc)
	}
	portfolio := aggregator.Aggregate(owner, cards, owned)
	portfolio.PassID = passID
	portfolio.ComputedAt = s.now()

	s.succeed(logger, OpPortfolio, start,
		"cards", portfolio.TotalCards,
		"events", portfolio.TotalTransactions,
	)
	return portfolio, nil
}

// ListOwnedCards returns owner's cards in ascending ID order
func (s *PortfolioService) ListOwnedCards(ctx context.Context, owner common.Address) ([]models.Card, error) {
	start := s.now()
	logger := s.logger.With("owner", owner.Hex())

	cards, err := s.enumerator.ListOwned(ctx, owner)
	if err != nil {
		s.fail(logger, OpCards, start, err)
		return nil, err
	}

	s.succeed(logger, OpCards, start, "cards", len(cards))
	return cards, nil
}

// ListSpendableCards returns owner's active cards that still hold a balance
func (s *PortfolioService) ListSpendableCards(ctx context.Context, owner common.Address) ([]models.Card, error) {
	cards, err := s.ListOwnedCards(ctx, owner)
	if err != nil {
		return nil, err
	}

	spendable := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		if c.IsActive && c.Balance != nil && c.Balance.Sign() > 0 {
			spendable = append(spendable, c)
		}
	}
	return spendable, nil
}

// ListOwnedEvents returns the full history of owner's cards, newest first,
// with timestamps resolved
func (s *PortfolioService) ListOwnedEvents(ctx context.Context, owner common.Address) ([]models.LedgerEvent, error) {
	start := s.now()
	logger := s.logger.With("owner", owner.Hex())

	events, err := s.ownedEvents(ctx, HistoryKinds, owner)
	if err != nil {
		s.fail(logger, OpEvents, start, err)
		return nil, err
	}
	if err := s.resolver.Resolve(ctx, events); err != nil {
		s.fail(logger, OpEvents, start, err)
		return nil, err
	}

	s.succeed(logger, OpEvents, start, "events", len(events))
	return events, nil
}

// RecentSpends returns owner's most recent CardSpent events, newest first.
// A non-positive limit returns all of them.
func (s *PortfolioService) RecentSpends(ctx context.Context, owner common.Address, limit int) ([]models.LedgerEvent, error) {
	start := s.now()
	logger := s.logger.With("owner", owner.Hex())

	events, err := s.ownedEvents(ctx, []models.EventKind{models.EventCardCreated, models.EventCardSpent}, owner)
	if err != nil {
		s.fail(logger, OpSpends, start, err)
		return nil, err
	}

	spends := filterKind(events, models.EventCardSpent)
	if limit > 0 && len(spends) > limit {
		spends = spends[:limit]
	}
	if err := s.resolver.Resolve(ctx, spends); err != nil {
		s.fail(logger, OpSpends, start, err)
		return nil, err
	}

	s.succeed(logger, OpSpends, start, "events", len(spends))
	return spends, nil
}

func (s *PortfolioService) ownedEvents(ctx context.Context, kinds []models.EventKind, owner common.Address) ([]models.LedgerEvent, error) {
	events, err := s.fetcher.Fetch(ctx, kinds)
	if err != nil {
		return nil, err
	}
	owned := FilterOwned(events, owner)
	SortNewestFirst(owned)
	return owned, nil
}

func (s *PortfolioService) succeed(logger *slog.Logger, op string, start time.Time, attrs ...any) {
	elapsed := s.now().Sub(start)
	s.metrics.ObservePass(op, metrics.ResultSuccess, elapsed)
	logger.Info("pass completed", append([]any{"operation", op, "duration", elapsed}, attrs...)...)
}

func (s *PortfolioService) fail(logger *slog.Logger, op string, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	s.metrics.ObservePass(op, metrics.ResultFailure, elapsed)
	logger.Error("pass failed", "operation", op, "duration", elapsed, "error", err)
}
