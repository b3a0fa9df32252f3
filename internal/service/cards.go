package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/benx421/smartcards/internal/ledger"
	"github.com/benx421/smartcards/internal/metrics"
	"github.com/benx421/smartcards/internal/models"
)

// CardService validates and submits card mutations. Every request is checked
// against the live card state before any transaction is sent, so rejected
// input never costs gas.
type CardService struct {
	reader   ledger.Reader
	writer   ledger.Writer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	decimals int32
}

// NewCardService creates a new CardService
func NewCardService(reader ledger.Reader, writer ledger.Writer, decimals int32, m *metrics.Metrics, logger *slog.Logger) *CardService {
	return &CardService{
		reader:   reader,
		writer:   writer,
		metrics:  m,
		logger:   logger,
		decimals: decimals,
	}
}

// Create opens a new card with the given spending limit
func (s *CardService) Create(ctx context.Context, spendingLimit string) (*models.Submission, error) {
	limit, err := s.parseAmount(spendingLimit)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, "createCard", 0, func() (*models.Submission, error) {
		return s.writer.CreateCard(ctx, limit)
	})
}

// Deposit adds funds to an active card
func (s *CardService) Deposit(ctx context.Context, cardID uint64, amount string) (*models.Submission, error) {
	value, err := s.parseAmount(amount)
	if err != nil {
		return nil, err
	}
	card, err := s.card(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := ValidateActive(card); err != nil {
		return nil, validationError(ErrCodeCardInactive, err)
	}
	return s.submit(ctx, "deposit", cardID, func() (*models.Submission, error) {
		return s.writer.Deposit(ctx, cardID, value)
	})
}

// Withdraw moves funds from a card back to its owner
func (s *CardService) Withdraw(ctx context.Context, cardID uint64, amount string) (*models.Submission, error) {
	value, err := s.parseAmount(amount)
	if err != nil {
		return nil, err
	}
	card, err := s.card(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := ValidateActive(card); err != nil {
		return nil, validationError(ErrCodeCardInactive, err)
	}
	if err := ValidateBalance(card, value); err != nil {
		return nil, validationError(ErrCodeInsufficientFunds, err)
	}
	return s.submit(ctx, "withdraw", cardID, func() (*models.Submission, error) {
		return s.writer.Withdraw(ctx, cardID, value)
	})
}

// Spend pays recipient from a card, within its balance and remaining limit
func (s *CardService) Spend(ctx context.Context, cardID uint64, recipient, amount string) (*models.Submission, error) {
	to, err := ValidateAddress(recipient)
	if err != nil {
		return nil, validationError(ErrCodeInvalidAddress, err)
	}
	value, err := s.parseAmount(amount)
	if err != nil {
		return nil, err
	}
	card, err := s.card(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := ValidateActive(card); err != nil {
		return nil, validationError(ErrCodeCardInactive, err)
	}
	if err := ValidateBalance(card, value); err != nil {
		return nil, validationError(ErrCodeInsufficientFunds, err)
	}
	if err := ValidateLimit(card, value); err != nil {
		return nil, validationError(ErrCodeLimitExceeded, err)
	}
	return s.submit(ctx, "spend", cardID, func() (*models.Submission, error) {
		return s.writer.Spend(ctx, cardID, value, to)
	})
}

// ResetSpent zeroes a card's spent counter
func (s *CardService) ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error) {
	card, err := s.card(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := ValidateActive(card); err != nil {
		return nil, validationError(ErrCodeCardInactive, err)
	}
	return s.submit(ctx, "resetSpent", cardID, func() (*models.Submission, error) {
		return s.writer.ResetSpent(ctx, cardID)
	})
}

// SetActive activates or deactivates a card
func (s *CardService) SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error) {
	if _, err := s.card(ctx, cardID); err != nil {
		return nil, err
	}
	return s.submit(ctx, "setActive", cardID, func() (*models.Submission, error) {
		return s.writer.SetActive(ctx, cardID, active)
	})
}

// ChangeLimit replaces a card's spending limit
func (s *CardService) ChangeLimit(ctx context.Context, cardID uint64, newLimit string) (*models.Submission, error) {
	limit, err := s.parseAmount(newLimit)
	if err != nil {
		return nil, err
	}
	if _, err := s.card(ctx, cardID); err != nil {
		return nil, err
	}
	return s.submit(ctx, "changeLimit", cardID, func() (*models.Submission, error) {
		return s.writer.ChangeLimit(ctx, cardID, limit)
	})
}

func (s *CardService) parseAmount(amount string) (*big.Int, error) {
	value, err := ParseAmount(amount, s.decimals)
	if err != nil {
		return nil, validationError(ErrCodeInvalidAmount, err)
	}
	return value, nil
}

func (s *CardService) card(ctx context.Context, cardID uint64) (*models.Card, error) {
	card, err := s.reader.CardInfo(ctx, cardID)
	s.metrics.ObserveLedgerCall("getCardInfo", ignoreNotFound(err))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &ServiceError{
				Code:    ErrCodeCardNotFound,
				Message: fmt.Sprintf("card #%d not found", cardID),
			}
		}
		return nil, ledgerUnavailable(fmt.Sprintf("failed to read card #%d", cardID), err)
	}
	return card, nil
}

func (s *CardService) submit(ctx context.Context, method string, cardID uint64, call func() (*models.Submission, error)) (*models.Submission, error) {
	sub, err := call()
	s.metrics.ObserveLedgerCall(method, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "ledger write failed", "method", method, "card_id", cardID, "error", err)
		return nil, mapWriteError(method, err)
	}

	s.logger.InfoContext(ctx, "ledger write confirmed",
		"method", method,
		"card_id", cardID,
		"tx_hash", sub.TxHash.Hex(),
		"block", sub.Block,
	)
	return sub, nil
}

// mapWriteError translates rejections raised by the ledger itself, which can
// still happen when card state changed between validation and submission.
func mapWriteError(method string, err error) error {
	code := ErrCodeLedgerUnavailable
	switch {
	case errors.Is(err, models.ErrNotFound):
		code = ErrCodeCardNotFound
	case errors.Is(err, models.ErrCardInactive):
		code = ErrCodeCardInactive
	case errors.Is(err, models.ErrInsufficientFunds):
		code = ErrCodeInsufficientFunds
	case errors.Is(err, models.ErrLimitExceeded):
		code = ErrCodeLimitExceeded
	case errors.Is(err, models.ErrNotOwner):
		code = ErrCodeNotOwner
	case errors.Is(err, ledger.ErrReadOnly):
		code = ErrCodeNotConnected
	}
	return &ServiceError{
		Code:    code,
		Message: fmt.Sprintf("%s rejected", method),
		Err:     err,
	}
}

func validationError(code string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: err.Error()}
}
