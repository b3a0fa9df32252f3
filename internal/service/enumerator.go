package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benx421/smartcards/internal/ledger"
	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultProbeCeiling bounds enumeration when no ceiling is configured
const DefaultProbeCeiling = 1000

// CardEnumerator discovers cards by probing sequential IDs starting at 0.
// The ledger offers no listing call, so the first missing ID ends the scan.
type CardEnumerator struct {
	reader  ledger.Reader
	logger  *slog.Logger
	metrics *metrics.Metrics
	ceiling int
}

// NewCardEnumerator creates a new CardEnumerator. A non-positive ceiling
// falls back to DefaultProbeCeiling.
func NewCardEnumerator(reader ledger.Reader, ceiling int, logger *slog.Logger, m *metrics.Metrics) *CardEnumerator {
	if ceiling <= 0 {
		ceiling = DefaultProbeCeiling
	}
	return &CardEnumerator{
		reader:  reader,
		logger:  logger,
		metrics: m,
		ceiling: ceiling,
	}
}

// ListAll returns every existing card in ascending ID order
func (e *CardEnumerator) ListAll(ctx context.Context) ([]models.Card, error) {
	return e.scan(ctx, func(*models.Card) bool { return true })
}

// ListOwned returns the cards owned by owner in ascending ID order
func (e *CardEnumerator) ListOwned(ctx context.Context, owner common.Address) ([]models.Card, error) {
	return e.scan(ctx, func(c *models.Card) bool { return c.OwnedBy(owner) })
}

func (e *CardEnumerator) scan(ctx context.Context, keep func(*models.Card) bool) ([]models.Card, error) {
	cards := []models.Card{}
	probes := 0
	defer func() { e.metrics.ObserveProbes(probes) }()

	for id := 0; id < e.ceiling; id++ {
		probes++
		card, err := e.reader.CardInfo(ctx, uint64(id)) // #nosec G115 -- id is bounded by ceiling
		e.metrics.ObserveLedgerCall("getCardInfo", ignoreNotFound(err))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return cards, nil
			}
			return nil, ledgerUnavailable(fmt.Sprintf("failed to read card #%d", id), err)
		}
		if keep(card) {
			cards = append(cards, *card)
		}
	}

	e.logger.Warn("card enumeration hit probe ceiling, later cards are not visible",
		"ceiling", e.ceiling,
		"cards", len(cards),
	)
	return cards, nil
}

// ignoreNotFound lets an ID gap count as a successful ledger call
func ignoreNotFound(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}
