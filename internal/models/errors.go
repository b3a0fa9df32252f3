package models

import "errors"

// Domain errors that can be returned by ledgers and repositories
var (
	// ErrNotFound indicates the requested entity was not found
	ErrNotFound = errors.New("not found")

	// ErrCardInactive indicates the ledger rejected an operation on a deactivated card
	ErrCardInactive = errors.New("card inactive")

	// ErrInsufficientFunds indicates the card balance cannot cover the operation
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLimitExceeded indicates the operation would push spend past the card limit
	ErrLimitExceeded = errors.New("spending limit exceeded")

	// ErrNotOwner indicates the signer does not own the card
	ErrNotOwner = errors.New("not card owner")
)
