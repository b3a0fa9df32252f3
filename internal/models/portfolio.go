package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Portfolio is the summary of one aggregation pass over a wallet's cards and events
type Portfolio struct {
	ComputedAt        time.Time             `json:"computed_at"`
	TotalBalance      decimal.Decimal       `json:"total_balance"`
	TotalSpent        decimal.Decimal       `json:"total_spent"`
	SpendingLimit     decimal.Decimal       `json:"spending_limit"`
	CardActivity      []CardActivitySummary `json:"card_activity"`
	DailyVolume       []DailyVolume         `json:"daily_volume"`
	SpentRatio        Ratio                 `json:"spent_ratio"`
	Sequence          uint64                `json:"sequence"`
	TotalCards        int                   `json:"total_cards"`
	ActiveCards       int                   `json:"active_cards"`
	TotalTransactions int                   `json:"total_transactions"`
	PassID            uuid.UUID             `json:"pass_id"`
	Owner             common.Address        `json:"owner"`
}

// CardActivitySummary ranks one card by how much ledger activity it has seen
type CardActivitySummary struct {
	TotalSpent       decimal.Decimal `json:"total_spent"`
	CardID           uint64          `json:"card_id"`
	TransactionCount int             `json:"transaction_count"`
}

// DailyVolume is the summed event amount for one calendar day
type DailyVolume struct {
	Date   time.Time       `json:"date"`
	Volume decimal.Decimal `json:"volume"`
	Day    string          `json:"day"`
}

// Ratio is a float that may legitimately be NaN (0/0). JSON has no NaN, so it
// is written as null and read back as NaN.
type Ratio float64

// IsNaN reports whether the ratio is undefined.
func (r Ratio) IsNaN() bool {
	return math.IsNaN(float64(r))
}

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}
