package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
	"github.com/benx421/smartcards/internal/session"
	"github.com/ethereum/go-ethereum/common"
)

// OpTracker labels tracker outcomes in metrics
const OpTracker = "tracker"

// ErrPassSuperseded is returned when a pass finished after a reset and there
// is no newer snapshot to return in its place
var ErrPassSuperseded = errors.New("portfolio pass superseded")

// PortfolioComputer runs one aggregation pass
type PortfolioComputer interface {
	ComputePortfolio(ctx context.Context, owner common.Address) (*models.Portfolio, error)
}

// PortfolioTracker sequences aggregation passes for the session wallet.
//
// Passes may overlap. Each one is numbered when it starts, and a finished
// pass only becomes the current snapshot if no later-started pass has already
// committed. A reset (disconnect, account or network change) invalidates every
// pass in flight.
type PortfolioTracker struct {
	computer  PortfolioComputer
	snapshots SnapshotRepository
	publisher PortfolioPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	last      *models.Portfolio
	next      uint64
	committed uint64
	epoch     uint64
	mu        sync.Mutex
	persistMu sync.Mutex
}

// NewPortfolioTracker creates a new PortfolioTracker. snapshots and publisher
// are optional.
func NewPortfolioTracker(
	computer PortfolioComputer,
	snapshots SnapshotRepository,
	publisher PortfolioPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *PortfolioTracker {
	return &PortfolioTracker{
		computer:  computer,
		snapshots: snapshots,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh runs a new pass for owner.
//
// On success it returns the committed snapshot, which is this pass's result
// unless a later-started pass beat it. On failure the previous snapshot is
// left in place and returned alongside the error.
func (t *PortfolioTracker) Refresh(ctx context.Context, owner common.Address) (*models.Portfolio, error) {
	t.mu.Lock()
	t.next++
	seq, epoch := t.next, t.epoch
	t.mu.Unlock()

	start := t.now()
	portfolio, err := t.computer.ComputePortfolio(ctx, owner)
	elapsed := t.now().Sub(start)

	t.mu.Lock()
	if err != nil {
		last := t.lastFor(owner)
		t.mu.Unlock()
		t.metrics.ObservePass(OpTracker, metrics.ResultFailure, elapsed)
		t.logger.Warn("portfolio refresh failed, keeping last snapshot",
			"sequence", seq,
			"owner", owner.Hex(),
			"has_snapshot", last != nil,
			"error", err,
		)
		return last, err
	}

	if epoch != t.epoch || seq < t.committed {
		last := t.lastFor(owner)
		t.mu.Unlock()
		t.metrics.ObservePass(OpTracker, metrics.ResultSuperseded, elapsed)
		t.logger.Info("discarding superseded portfolio pass",
			"sequence", seq,
			"committed", t.committedSeq(),
			"pass_id", portfolio.PassID.String(),
		)
		if last == nil {
			return nil, ErrPassSuperseded
		}
		return last, nil
	}

	portfolio.Sequence = seq
	t.committed = seq
	t.last = portfolio
	t.mu.Unlock()

	t.metrics.ObservePass(OpTracker, metrics.ResultSuccess, elapsed)
	t.persist(ctx, portfolio)
	return portfolio, nil
}

// Last returns the current snapshot, or nil before the first commit
func (t *PortfolioTracker) Last() *models.Portfolio {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// lastFor returns the current snapshot if it belongs to owner. Callers hold mu.
func (t *PortfolioTracker) lastFor(owner common.Address) *models.Portfolio {
	if t.last == nil || t.last.Owner != owner {
		return nil
	}
	return t.last
}

// Restore seeds the tracker with the persisted snapshot for owner when it has
// no snapshot of owner's yet. A missing snapshot is not an error. A reset that
// lands while the snapshot is loading wins over the restore.
func (t *PortfolioTracker) Restore(ctx context.Context, owner common.Address) error {
	if t.snapshots == nil {
		return nil
	}

	t.mu.Lock()
	epoch := t.epoch
	t.mu.Unlock()

	snapshot, err := t.snapshots.Latest(ctx, owner)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	if snapshot == nil || snapshot.Owner != owner {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if epoch == t.epoch && t.lastFor(owner) == nil {
		t.last = snapshot
		t.logger.Debug("restored portfolio snapshot", "owner", owner.Hex(), "sequence", snapshot.Sequence)
	}
	return nil
}

// Reset drops the current snapshot and invalidates passes in flight
func (t *PortfolioTracker) Reset() {
	t.mu.Lock()
	t.epoch++
	t.last = nil
	t.committed = t.next
	t.mu.Unlock()
}

// Watch resets the tracker whenever the session wallet or network changes,
// until ctx is done or changes is closed. A newly connected wallet is then
// seeded from its persisted snapshot. Both steps run here, in change order,
// so a restore can never be undone by the reset of its own connect.
func (t *PortfolioTracker) Watch(ctx context.Context, changes <-chan session.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Kind == session.ChangeConnected && change.Address == change.Previous {
				continue
			}
			t.logger.Info("session changed, resetting portfolio", "kind", change.Kind)
			t.Reset()

			if change.Kind != session.ChangeConnected {
				continue
			}
			if err := t.Restore(ctx, change.Address); err != nil {
				t.logger.Warn("failed to restore portfolio snapshot", "owner", change.Address.Hex(), "error", err)
			}
		}
	}
}

func (t *PortfolioTracker) committedSeq() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// persist stores and announces a committed snapshot. Failures are logged but
// do not fail the refresh; the in-memory snapshot is already current.
func (t *PortfolioTracker) persist(ctx context.Context, portfolio *models.Portfolio) {
	t.persistMu.Lock()
	defer t.persistMu.Unlock()

	// A later pass committed while this one waited; it will persist itself.
	if t.committedSeq() != portfolio.Sequence {
		return
	}

	if t.snapshots != nil {
		if err := t.snapshots.Save(ctx, portfolio); err != nil {
			t.logger.Error("failed to save portfolio snapshot", "sequence", portfolio.Sequence, "error", err)
		}
	}
	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, portfolio); err != nil {
			t.logger.Error("failed to publish portfolio snapshot", "sequence", portfolio.Sequence, "error", err)
		}
	}
}
