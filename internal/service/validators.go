package service

import (
	"fmt"
	"math/big"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateAddress checks s is a 0x-prefixed 20-byte hex address
func ValidateAddress(s string) (common.Address, error) {
	if err := validate.Var(s, "required,eth_addr"); err != nil {
		return common.Address{}, fmt.Errorf("invalid address %q: must be a 0x-prefixed 40 hex digit address", s)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a whole-unit decimal string into the smallest ledger unit
// and checks it is positive
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	amount, err := models.ParseUnits(s, decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// ValidateAmount checks if amount is valid (positive)
func ValidateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("invalid amount: must be greater than 0")
	}

	return nil
}

// ValidateActive checks the card accepts balance operations
func ValidateActive(card *models.Card) error {
	if !card.IsActive {
		return fmt.Errorf("card #%d is inactive", card.ID)
	}
	return nil
}

// ValidateBalance checks the card holds at least amount
func ValidateBalance(card *models.Card, amount *big.Int) error {
	if card.Balance == nil || card.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance on card #%d", card.ID)
	}
	return nil
}

// ValidateLimit checks spending amount keeps the card within its limit
func ValidateLimit(card *models.Card, amount *big.Int) error {
	if card.RemainingLimit().Cmp(amount) < 0 {
		return fmt.Errorf("amount exceeds remaining spending limit on card #%d", card.ID)
	}
	return nil
}
