package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benx421/smartcards/internal/db"
	"github.com/benx421/smartcards/internal/models"
)

// IdempotencyRepository stores replayable responses keyed by Idempotency-Key
type IdempotencyRepository interface {
	// Get returns nil, nil when the key has not been seen for requestPath
	Get(ctx context.Context, key, requestPath string) (*models.IdempotencyKey, error)
	Store(ctx context.Context, idemKey *models.IdempotencyKey) error
}

// idempotencyRepository implements IdempotencyRepository on PostgreSQL
type idempotencyRepository struct {
	db *db.DB
}

// NewIdempotencyRepository creates a new PostgreSQL-backed IdempotencyRepository
func NewIdempotencyRepository(database *db.DB) IdempotencyRepository {
	return &idempotencyRepository{db: database}
}

// Get implements IdempotencyRepository
func (r *idempotencyRepository) Get(ctx context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	query := `
		SELECT key, request_path, response_status, response_body, created_at
		FROM idempotency_keys
		WHERE key = $1 AND request_path = $2
	`

	var idemKey models.IdempotencyKey
	err := r.db.QueryRowContext(ctx, query, key, requestPath).Scan(
		&idemKey.Key,
		&idemKey.RequestPath,
		&idemKey.ResponseStatus,
		&idemKey.ResponseBody,
		&idemKey.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	return &idemKey, nil
}

// Store implements IdempotencyRepository. The first stored response for a key
// wins; later stores are ignored.
func (r *idempotencyRepository) Store(ctx context.Context, idemKey *models.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (key, request_path, response_status, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key, request_path) DO NOTHING
	`

	createdAt := idemKey.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		idemKey.Key,
		idemKey.RequestPath,
		idemKey.ResponseStatus,
		idemKey.ResponseBody,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store idempotency key: %w", err)
	}

	return nil
}

// MemoryIdempotencyRepository keeps idempotency keys in process
type MemoryIdempotencyRepository struct {
	keys map[string]models.IdempotencyKey
	mu   sync.Mutex
}

// NewMemoryIdempotencyRepository creates an empty in-memory IdempotencyRepository
func NewMemoryIdempotencyRepository() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{keys: make(map[string]models.IdempotencyKey)}
}

// Get implements IdempotencyRepository
func (m *MemoryIdempotencyRepository) Get(_ context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idemKey, ok := m.keys[requestPath+"\x00"+key]
	if !ok {
		return nil, nil
	}
	return &idemKey, nil
}

// Store implements IdempotencyRepository
func (m *MemoryIdempotencyRepository) Store(_ context.Context, idemKey *models.IdempotencyKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := idemKey.RequestPath + "\x00" + idemKey.Key
	if _, exists := m.keys[id]; exists {
		return nil
	}
	stored := *idemKey
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.keys[id] = stored
	return nil
}

var (
	_ IdempotencyRepository = (*idempotencyRepository)(nil)
	_ IdempotencyRepository = (*MemoryIdempotencyRepository)(nil)
)
