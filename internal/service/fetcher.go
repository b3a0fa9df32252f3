package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benx421/smartcards/internal/ledger"
	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
	"golang.org/x/sync/errgroup"
)

// DashboardKinds are the event kinds that feed the portfolio summary
var DashboardKinds = []models.EventKind{
	models.EventCardCreated,
	models.EventCardDeposited,
	models.EventCardWithdrawn,
	models.EventCardSpent,
}

// HistoryKinds are the event kinds shown in the full activity history
var HistoryKinds = models.AllEventKinds

// EventFetcher pulls the complete event history for a set of kinds.
//
// Every call scans from the genesis block to the chain tip, so cost grows with
// the ledger's total history. There is no pagination.
type EventFetcher struct {
	reader  ledger.Reader
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEventFetcher creates a new EventFetcher
func NewEventFetcher(reader ledger.Reader, logger *slog.Logger, m *metrics.Metrics) *EventFetcher {
	return &EventFetcher{reader: reader, logger: logger, metrics: m}
}

// Fetch queries each kind concurrently and concatenates the results. The
// returned slice is not ordered.
func (f *EventFetcher) Fetch(ctx context.Context, kinds []models.EventKind) ([]models.LedgerEvent, error) {
	results := make([][]models.LedgerEvent, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			events, err := f.reader.QueryEvents(gctx, kind, 0, nil)
			f.metrics.ObserveLedgerCall("queryEvents", err)
			if err != nil {
				return ledgerUnavailable(fmt.Sprintf("failed to fetch %s events", kind), err)
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	events := make([]models.LedgerEvent, 0, total)
	for _, r := range results {
		events = append(events, r...)
	}

	f.metrics.ObserveEvents(total)
	f.logger.Debug("fetched ledger events", "kinds", len(kinds), "events", total)
	return events, nil
}
