package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Card is a snapshot of one virtual spending sub-account held by the ledger
type Card struct {
	Balance       *big.Int       `json:"balance"`
	SpendingLimit *big.Int       `json:"spending_limit"`
	AmountSpent   *big.Int       `json:"amount_spent"`
	ID            uint64         `json:"id"`
	Owner         common.Address `json:"owner"`
	IsActive      bool           `json:"is_active"`
}

// OwnedBy reports whether addr owns the card.
func (c *Card) OwnedBy(addr common.Address) bool {
	return c.Owner == addr
}

// RemainingLimit returns how much can still be spent before the limit is hit.
func (c *Card) RemainingLimit() *big.Int {
	remaining := new(big.Int).Sub(orZero(c.SpendingLimit), orZero(c.AmountSpent))
	if remaining.Sign() < 0 {
		return new(big.Int)
	}
	return remaining
}

// Submission is the ledger's acknowledgement of a mutating call
type Submission struct {
	TxHash common.Hash `json:"tx_hash"`
	Block  uint64      `json:"block"`
	CardID *uint64     `json:"card_id,omitempty"`
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
