package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/benx421/smartcards/internal/config"
	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrReadOnly is returned by write calls when no signing key was configured
var ErrReadOnly = errors.New("ledger opened without a signing key")

// EVMLedger talks to the SmartCard contract over JSON-RPC
type EVMLedger struct {
	client      *ethclient.Client
	contract    *bind.BoundContract
	signer      *bind.TransactOpts
	logger      *slog.Logger
	address     common.Address
	chainID     uint64
	callTimeout time.Duration
	// writeMu serializes transactions so the node hands out nonces in order
	writeMu sync.Mutex
}

// DialEVM connects to the node and binds the contract
func DialEVM(ctx context.Context, cfg *config.LedgerConfig, logger *slog.Logger) (*EVMLedger, error) {
	logger.Info("connecting to ledger",
		"rpc_url", cfg.RPCURL,
		"contract", cfg.ContractAddress,
		"chain_id", cfg.ChainID,
	)

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger node: %w", err)
	}

	remoteChainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if !remoteChainID.IsUint64() || remoteChainID.Uint64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("ledger node is on chain %s, expected %d", remoteChainID, cfg.ChainID)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	l := &EVMLedger{
		client:      client,
		contract:    bind.NewBoundContract(address, contractABI, client, client, client),
		logger:      logger,
		address:     address,
		chainID:     cfg.ChainID,
		callTimeout: cfg.CallTimeout,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid ledger private key: %w", err)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(cfg.ChainID))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to build transactor: %w", err)
		}
		l.signer = opts
		logger.Info("ledger signer configured", "account", opts.From.Hex())
	} else {
		logger.Warn("no ledger private key configured, card mutations are disabled")
	}

	return l, nil
}

// Signer returns the account that signs mutations, if any
func (l *EVMLedger) Signer() (common.Address, bool) {
	if l.signer == nil {
		return common.Address{}, false
	}
	return l.signer.From, true
}

// ChainID implements Ledger
func (l *EVMLedger) ChainID() uint64 {
	return l.chainID
}

// Ping implements Ledger
func (l *EVMLedger) Ping(ctx context.Context) error {
	if _, err := l.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("ledger unreachable: %w", err)
	}
	return nil
}

// Close releases the RPC connection
func (l *EVMLedger) Close() {
	l.logger.Info("closing ledger connection")
	l.client.Close()
}

// CardInfo implements Reader
func (l *EVMLedger) CardInfo(ctx context.Context, id uint64) (*models.Card, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	var out []any
	err := l.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getCardInfo", new(big.Int).SetUint64(id))
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("card %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to call getCardInfo(%d): %w", id, err)
	}

	card, err := decodeCardInfo(id, out)
	if err != nil {
		return nil, err
	}
	// Contracts that return a zeroed struct instead of reverting
	if card.Owner == (common.Address{}) {
		return nil, fmt.Errorf("card %d: %w", id, models.ErrNotFound)
	}
	return card, nil
}

// QueryEvents implements Reader
func (l *EVMLedger) QueryEvents(ctx context.Context, kind models.EventKind, fromBlock uint64, toBlock *uint64) ([]models.LedgerEvent, error) {
	topic, err := eventTopic(kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{l.address},
		Topics:    [][]common.Hash{{topic}},
	}
	if toBlock != nil {
		query.ToBlock = new(big.Int).SetUint64(*toBlock)
	}

	logs, err := l.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s logs: %w", kind, err)
	}

	events := make([]models.LedgerEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		event, err := decodeLog(kind, lg)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// BlockTimestamp implements Reader
func (l *EVMLedger) BlockTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	header, err := l.client.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return time.Time{}, fmt.Errorf("block %d: %w", block, models.ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("failed to fetch block %d: %w", block, err)
	}
	return time.Unix(int64(header.Time), 0), nil // #nosec G115 -- block times fit in int64
}

// CreateCard implements Writer
func (l *EVMLedger) CreateCard(ctx context.Context, spendingLimit *big.Int) (*models.Submission, error) {
	sub, receipt, err := l.transact(ctx, nil, "createCard", spendingLimit)
	if err != nil {
		return nil, err
	}

	topic, _ := eventTopic(models.EventCardCreated)
	for _, lg := range receipt.Logs {
		if lg.Address != l.address || len(lg.Topics) == 0 || lg.Topics[0] != topic {
			continue
		}
		event, err := decodeLog(models.EventCardCreated, *lg)
		if err != nil {
			return nil, err
		}
		sub.CardID = &event.CardID
		break
	}
	return sub, nil
}

// Deposit implements Writer. The amount travels as the transaction value.
func (l *EVMLedger) Deposit(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error) {
	sub, _, err := l.transact(ctx, amount, "deposit", new(big.Int).SetUint64(cardID))
	return sub, err
}

// Withdraw implements Writer
func (l *EVMLedger) Withdraw(ctx context.Context, cardID uint64, amount *big.Int) (*models.Submission, error) {
	sub, _, err := l.transact(ctx, nil, "withdraw", new(big.Int).SetUint64(cardID), amount)
	return sub, err
}

// Spend implements Writer
func (l *EVMLedger) Spend(ctx context.Context, cardID uint64, amount *big.Int, recipient common.Address) (*models.Submission, error) {
	sub, _, err := l.transact(ctx, nil, "spend", new(big.Int).SetUint64(cardID), amount, recipient)
	return sub, err
}

// ResetSpent implements Writer
func (l *EVMLedger) ResetSpent(ctx context.Context, cardID uint64) (*models.Submission, error) {
	sub, _, err := l.transact(ctx, nil, "resetSpent", new(big.Int).SetUint64(cardID))
	return sub, err
}

// SetActive implements Writer
func (l *EVMLedger) SetActive(ctx context.Context, cardID uint64, active bool) (*models.Submission, error) {
	sub, _, err := l.transact(ctx, nil, "setActive", new(big.Int).SetUint64(cardID), active)
	return sub, err
}

// ChangeLimit implements Writer
func (l *EVMLedger) ChangeLimit(ctx context.Context, cardID uint64, newLimit *big.Int) (*models.Submission, error) {
	sub, _, err := l.transact(ctx, nil, "changeLimit", new(big.Int).SetUint64(cardID), newLimit)
	return sub, err
}

func (l *EVMLedger) transact(ctx context.Context, value *big.Int, method string, args ...any) (*models.Submission, *types.Receipt, error) {
	if l.signer == nil {
		return nil, nil, ErrReadOnly
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	opts := *l.signer
	opts.Context = ctx
	opts.Value = value

	tx, err := l.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to submit %s: %w", method, err)
	}

	l.logger.Debug("ledger transaction submitted", "method", method, "tx_hash", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, l.client, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed waiting for %s to be mined: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, nil, fmt.Errorf("%s transaction %s reverted", method, tx.Hash().Hex())
	}

	return &models.Submission{
		TxHash: tx.Hash(),
		Block:  receipt.BlockNumber.Uint64(),
	}, receipt, nil
}

func (l *EVMLedger) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.callTimeout)
}

var _ Ledger = (*EVMLedger)(nil)
