package models

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the number of decimals of the ledger's native unit
const DefaultDecimals = 18

// DefaultUnitSymbol is the display symbol of the ledger's native unit
const DefaultUnitSymbol = "XPT"

// ToUnits converts an amount in the smallest ledger unit to whole units.
func ToUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FromUnits converts whole units to the smallest ledger unit, truncating any
// precision the ledger cannot represent.
func FromUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// ParseUnits parses a decimal string of whole units into the smallest ledger unit.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return FromUnits(d, decimals), nil
}

// FormatUnits renders a smallest-unit amount as a whole-unit string.
func FormatUnits(amount *big.Int, decimals int32) string {
	return ToUnits(amount, decimals).String()
}
