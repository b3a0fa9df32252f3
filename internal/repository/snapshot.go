// Package repository provides data access layer implementations for the
// portfolio service.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/benx421/smartcards/internal/db"
	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// SnapshotRepository stores the last committed portfolio per wallet
type SnapshotRepository interface {
	Save(ctx context.Context, portfolio *models.Portfolio) error
	Latest(ctx context.Context, owner common.Address) (*models.Portfolio, error)
}

// snapshotRepository implements SnapshotRepository on PostgreSQL
type snapshotRepository struct {
	db *db.DB
}

// NewSnapshotRepository creates a new PostgreSQL-backed SnapshotRepository
func NewSnapshotRepository(database *db.DB) SnapshotRepository {
	return &snapshotRepository{db: database}
}

// Save upserts the snapshot for the portfolio's owner. A snapshot computed
// earlier than the stored one is ignored.
func (r *snapshotRepository) Save(ctx context.Context, portfolio *models.Portfolio) error {
	payload, err := json.Marshal(portfolio)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio snapshot: %w", err)
	}

	query := `
		INSERT INTO portfolio_snapshots (owner, pass_id, sequence, payload, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner) DO UPDATE
		SET pass_id = EXCLUDED.pass_id,
		    sequence = EXCLUDED.sequence,
		    payload = EXCLUDED.payload,
		    computed_at = EXCLUDED.computed_at,
		    updated_at = NOW()
		WHERE portfolio_snapshots.computed_at <= EXCLUDED.computed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		portfolio.Owner.Hex(),
		portfolio.PassID,
		// #nosec G115 -- sequences stay far below MaxInt64
		int64(portfolio.Sequence),
		payload,
		portfolio.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio snapshot: %w", err)
	}

	return nil
}

// Latest returns the stored snapshot for owner, or models.ErrNotFound
func (r *snapshotRepository) Latest(ctx context.Context, owner common.Address) (*models.Portfolio, error) {
	query := `
		SELECT payload
		FROM portfolio_snapshots
		WHERE owner = $1
	`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, owner.Hex()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %s: %w", owner.Hex(), models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio snapshot: %w", err)
	}

	var portfolio models.Portfolio
	if err := json.Unmarshal(payload, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio snapshot: %w", err)
	}
	return &portfolio, nil
}

// MemorySnapshotRepository keeps snapshots in process. Snapshots are stored
// encoded so callers never share state with the repository.
type MemorySnapshotRepository struct {
	snapshots map[common.Address][]byte
	mu        sync.Mutex
}

// NewMemorySnapshotRepository creates an empty in-memory SnapshotRepository
func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{snapshots: make(map[common.Address][]byte)}
}

// Save implements SnapshotRepository
func (m *MemorySnapshotRepository) Save(_ context.Context, portfolio *models.Portfolio) error {
	payload, err := json.Marshal(portfolio)
	if err != nil {
		return fmt.Errorf("failed to encode portfolio snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[portfolio.Owner] = payload
	return nil
}

// Latest implements SnapshotRepository
func (m *MemorySnapshotRepository) Latest(_ context.Context, owner common.Address) (*models.Portfolio, error) {
	m.mu.Lock()
	payload, ok := m.snapshots[owner]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("snapshot for %s: %w", owner.Hex(), models.ErrNotFound)
	}

	var portfolio models.Portfolio
	if err := json.Unmarshal(payload, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio snapshot: %w", err)
	}
	return &portfolio, nil
}

var (
	_ SnapshotRepository = (*snapshotRepository)(nil)
	_ SnapshotRepository = (*MemorySnapshotRepository)(nil)
)
