package ledger

import (
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

//go:embed smartcard.abi.json
var smartCardABIJSON string

var contractABI = mustParseABI(smartCardABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("ledger: invalid embedded contract ABI: %v", err))
	}
	return parsed
}

// eventTopic returns the topic0 hash that identifies logs of the given kind
func eventTopic(kind models.EventKind) (common.Hash, error) {
	ev, ok := contractABI.Events[string(kind)]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown event kind %q", kind)
	}
	return ev.ID, nil
}

// decodeLog turns a raw contract log into a typed ledger event
func decodeLog(kind models.EventKind, lg types.Log) (models.LedgerEvent, error) {
	ev, ok := contractABI.Events[string(kind)]
	if !ok {
		return models.LedgerEvent{}, fmt.Errorf("unknown event kind %q", kind)
	}
	if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
		return models.LedgerEvent{}, fmt.Errorf("log %d in block %d is not a %s event", lg.Index, lg.BlockNumber, kind)
	}

	fields := make(map[string]any)
	if err := contractABI.UnpackIntoMap(fields, ev.Name, lg.Data); err != nil {
		return models.LedgerEvent{}, fmt.Errorf("failed to unpack %s data: %w", kind, err)
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
		return models.LedgerEvent{}, fmt.Errorf("failed to parse %s topics: %w", kind, err)
	}

	cardID, err := uint64Field(fields, "cardId")
	if err != nil {
		return models.LedgerEvent{}, err
	}

	event := models.LedgerEvent{
		Block:    lg.BlockNumber,
		LogIndex: lg.Index,
		TxHash:   lg.TxHash,
		CardID:   cardID,
	}

	switch kind {
	case models.EventCardCreated:
		owner, limit := addressField(fields, "owner"), bigField(fields, "spendingLimit")
		event.Account = owner
		event.Payload = models.CardCreatedPayload{Owner: owner, SpendingLimit: limit}
	case models.EventCardDeposited:
		from := addressField(fields, "from")
		event.Account = from
		event.Payload = models.CardDepositedPayload{From: from, Value: bigField(fields, "amount")}
	case models.EventCardWithdrawn:
		owner := addressField(fields, "owner")
		event.Account = owner
		event.Payload = models.CardWithdrawnPayload{Owner: owner, Value: bigField(fields, "amount")}
	case models.EventCardSpent:
		from := addressField(fields, "from")
		event.Account = from
		event.Payload = models.CardSpentPayload{
			From:      from,
			Recipient: addressField(fields, "recipient"),
			Value:     bigField(fields, "amount"),
		}
	case models.EventCardStatusChanged:
		active, _ := fields["isActive"].(bool)
		event.Payload = models.CardStatusChangedPayload{IsActive: active}
	case models.EventSpendingLimitChanged:
		event.Payload = models.SpendingLimitChangedPayload{NewLimit: bigField(fields, "newLimit")}
	default:
		return models.LedgerEvent{}, fmt.Errorf("unsupported event kind %q", kind)
	}

	return event, nil
}

// decodeCardInfo unpacks the getCardInfo return tuple
func decodeCardInfo(id uint64, out []any) (*models.Card, error) {
	if len(out) != 5 {
		return nil, fmt.Errorf("getCardInfo returned %d values, want 5", len(out))
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("getCardInfo owner has type %T", out[0])
	}
	balance, ok1 := out[1].(*big.Int)
	limit, ok2 := out[2].(*big.Int)
	spent, ok3 := out[3].(*big.Int)
	active, ok4 := out[4].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("getCardInfo returned unexpected types %T %T %T %T", out[1], out[2], out[3], out[4])
	}

	return &models.Card{
		ID:            id,
		Owner:         owner,
		Balance:       balance,
		SpendingLimit: limit,
		AmountSpent:   spent,
		IsActive:      active,
	}, nil
}

// isRevert reports whether a call failed because the contract reverted, as
// opposed to the node being unreachable.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

func uint64Field(fields map[string]any, name string) (uint64, error) {
	v := bigField(fields, name)
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s %s does not fit in uint64", name, v)
	}
	return v.Uint64(), nil
}

func bigField(fields map[string]any, name string) *big.Int {
	if v, ok := fields[name].(*big.Int); ok && v != nil {
		return v
	}
	return new(big.Int)
}

func addressField(fields map[string]any, name string) common.Address {
	addr, _ := fields[name].(common.Address)
	return addr
}
