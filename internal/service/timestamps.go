package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benx421/smartcards/internal/cache"
	"github.com/benx421/smartcards/internal/ledger"
	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
	"golang.org/x/sync/errgroup"
)

// TimestampResolver fills in event timestamps from their originating blocks
type TimestampResolver struct {
	reader  ledger.Reader
	cache   cache.BlockTimes
	metrics *metrics.Metrics
	limit   int
}

// NewTimestampResolver creates a new TimestampResolver. maxConcurrency caps
// in-flight block lookups; 0 leaves them unbounded. blockTimes may be nil.
func NewTimestampResolver(reader ledger.Reader, blockTimes cache.BlockTimes, maxConcurrency int, m *metrics.Metrics) *TimestampResolver {
	return &TimestampResolver{
		reader:  reader,
		cache:   blockTimes,
		metrics: m,
		limit:   maxConcurrency,
	}
}

// Resolve sets Timestamp on every event in place. The ledger is asked once
// per distinct uncached block, not once per event, so every event of the same
// block gets the same value. Any failed lookup fails the whole call.
func (r *TimestampResolver) Resolve(ctx context.Context, events []models.LedgerEvent) error {
	blocks := make(map[uint64]time.Time)
	for i := range events {
		blocks[events[i].Block] = time.Time{}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	for block := range blocks {
		g.Go(func() error {
			ts, err := r.lookup(gctx, block)
			if err != nil {
				return err
			}
			mu.Lock()
			blocks[block] = ts
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range events {
		events[i].Timestamp = blocks[events[i].Block]
	}
	return nil
}

func (r *TimestampResolver) lookup(ctx context.Context, block uint64) (time.Time, error) {
	if r.cache != nil {
		if ts, ok := r.cache.Get(ctx, block); ok {
			return ts, nil
		}
	}

	ts, err := r.reader.BlockTimestamp(ctx, block)
	r.metrics.ObserveLedgerCall("getBlock", err)
	if err != nil {
		return time.Time{}, ledgerUnavailable(fmt.Sprintf("failed to resolve timestamp of block %d", block), err)
	}

	if r.cache != nil {
		r.cache.Set(ctx, block, ts)
	}
	return ts, nil
}
