package api

import (
	"time"

	"github.com/benx421/smartcards/internal/models"
)

// HealthStatus is the value of Health.Status
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
)

// ErrorCodeInvalidRequest covers malformed bodies and parameters that never
// reach the service layer
const ErrorCodeInvalidRequest = "invalid_request"

// Error is the body of every non-2xx JSON response
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Health is the body of GET /health
type Health struct {
	Status HealthStatus `json:"status"`
}

// Card is a card with amounts rendered in whole units
type Card struct {
	Owner          string `json:"owner"`
	Balance        string `json:"balance"`
	SpendingLimit  string `json:"spending_limit"`
	AmountSpent    string `json:"amount_spent"`
	RemainingLimit string `json:"remaining_limit"`
	ID             uint64 `json:"id"`
	IsActive       bool   `json:"is_active"`
}

// Event is a ledger event with its human-readable rendering
type Event struct {
	Timestamp   *time.Time       `json:"timestamp,omitempty"`
	Kind        models.EventKind `json:"kind"`
	TxHash      string           `json:"tx_hash"`
	Account     string           `json:"account,omitempty"`
	Recipient   string           `json:"recipient,omitempty"`
	Amount      string           `json:"amount,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	ExplorerURL string           `json:"explorer_url,omitempty"`
	CardID      uint64           `json:"card_id"`
	Block       uint64           `json:"block"`
	LogIndex    uint             `json:"log_index"`
}

// Portfolio is the aggregation result tagged with its unit symbol
type Portfolio struct {
	*models.Portfolio
	Unit string `json:"unit"`
}

// Submission acknowledges a mined card mutation
type Submission struct {
	CardID      *uint64 `json:"card_id,omitempty"`
	TxHash      string  `json:"tx_hash"`
	ExplorerURL string  `json:"explorer_url,omitempty"`
	Block       uint64  `json:"block"`
}

// AmountRequest is the body of deposit and withdrawal calls
type AmountRequest struct {
	Amount string `json:"amount"`
}

// SpendRequest is the body of POST /api/v1/cards/{cardId}/spends
type SpendRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// LimitRequest is the body of card creation and limit changes
type LimitRequest struct {
	SpendingLimit string `json:"spending_limit"`
}

// StatusRequest is the body of PUT /api/v1/cards/{cardId}/status
type StatusRequest struct {
	Active *bool `json:"active"`
}

// ConnectRequest is the body of POST /api/v1/session
type ConnectRequest struct {
	Address string `json:"address"`
	ChainID string `json:"chain_id"`
}

// NetworkRequest is the body of PUT /api/v1/session/network
type NetworkRequest struct {
	ChainID string `json:"chain_id"`
}

// Network identifies a chain by name and hex chain ID
type Network struct {
	Name        string `json:"name"`
	ChainID     string `json:"chain_id"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// Session is the body of every session endpoint
type Session struct {
	Network           *Network `json:"network,omitempty"`
	Address           string   `json:"address,omitempty"`
	ExpectedNetwork   Network  `json:"expected_network"`
	Connected         bool     `json:"connected"`
	OnExpectedNetwork bool     `json:"on_expected_network"`
}
