package models

import (
	"cmp"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the ledger event emitted by a state-changing card operation
type EventKind string

const (
	EventCardCreated          EventKind = "CardCreated"
	EventCardDeposited        EventKind = "CardDeposited"
	EventCardWithdrawn        EventKind = "CardWithdrawn"
	EventCardSpent            EventKind = "CardSpent"
	EventCardStatusChanged    EventKind = "CardStatusChanged"
	EventSpendingLimitChanged EventKind = "SpendingLimitChanged"
)

// AllEventKinds lists every kind the ledger emits, in declaration order.
var AllEventKinds = []EventKind{
	EventCardCreated,
	EventCardDeposited,
	EventCardWithdrawn,
	EventCardSpent,
	EventCardStatusChanged,
	EventSpendingLimitChanged,
}

// OrderKey is the total order of ledger events: block first, then log position.
type OrderKey struct {
	Block    uint64
	LogIndex uint
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, with or after other.
func (k OrderKey) Compare(other OrderKey) int {
	if c := cmp.Compare(k.Block, other.Block); c != 0 {
		return c
	}
	return cmp.Compare(k.LogIndex, other.LogIndex)
}

func (k OrderKey) String() string {
	return fmt.Sprintf("%d:%d", k.Block, k.LogIndex)
}

// LedgerEvent is an immutable record of a past state-changing ledger operation.
//
// Timestamp is not carried by the ledger log itself; it stays zero until it is
// resolved from the originating block.
type LedgerEvent struct {
	Timestamp time.Time
	Payload   Payload
	TxHash    common.Hash
	Block     uint64
	CardID    uint64
	LogIndex  uint
	Account   common.Address
}

// Kind returns the event kind carried by the payload.
func (e *LedgerEvent) Kind() EventKind {
	return e.Payload.Kind()
}

// Key returns the event's position in the ledger's total order.
func (e *LedgerEvent) Key() OrderKey {
	return OrderKey{Block: e.Block, LogIndex: e.LogIndex}
}

// Title is the short human label of the event.
func (e *LedgerEvent) Title() string {
	return e.Payload.Title()
}

// Describe renders the event for activity feeds, e.g. "2.5 XPT spent from Card #3".
func (e *LedgerEvent) Describe(units Units) string {
	return e.Payload.Describe(e.CardID, units)
}

// Units tells payload formatters how to render raw ledger amounts
type Units struct {
	Symbol   string
	Decimals int32
}

func (u Units) format(amount *big.Int) string {
	return FormatUnits(amount, u.Decimals) + " " + u.Symbol
}

// Payload is the kind-specific body of a ledger event. The set of
// implementations is closed: every kind must provide its own formatter.
type Payload interface {
	Kind() EventKind
	// Amount is the value moved by the event, or nil when the kind carries none.
	Amount() *big.Int
	Title() string
	Describe(cardID uint64, units Units) string

	sealed()
}

// CardCreatedPayload is emitted when a card is opened
type CardCreatedPayload struct {
	SpendingLimit *big.Int
	Owner         common.Address
}

func (CardCreatedPayload) Kind() EventKind { return EventCardCreated }
func (CardCreatedPayload) Amount() *big.Int { return nil }
func (CardCreatedPayload) Title() string    { return "Card Created" }
func (p CardCreatedPayload) Describe(cardID uint64, u Units) string {
	return fmt.Sprintf("Card #%d created with %s limit", cardID, u.format(p.SpendingLimit))
}
func (CardCreatedPayload) sealed() {}

// CardDepositedPayload is emitted when funds are added to a card
type CardDepositedPayload struct {
	Value *big.Int
	From  common.Address
}

func (CardDepositedPayload) Kind() EventKind    { return EventCardDeposited }
func (p CardDepositedPayload) Amount() *big.Int { return p.Value }
func (CardDepositedPayload) Title() string      { return "Deposit" }
func (p CardDepositedPayload) Describe(cardID uint64, u Units) string {
	return fmt.Sprintf("%s deposited to Card #%d", u.format(p.Value), cardID)
}
func (CardDepositedPayload) sealed() {}

// CardWithdrawnPayload is emitted when the owner pulls funds back out of a card
type CardWithdrawnPayload struct {
	Value *big.Int
	Owner common.Address
}

func (CardWithdrawnPayload) Kind() EventKind    { return EventCardWithdrawn }
func (p CardWithdrawnPayload) Amount() *big.Int { return p.Value }
func (CardWithdrawnPayload) Title() string      { return "Withdrawal" }
func (p CardWithdrawnPayload) Describe(cardID uint64, u Units) string {
	return fmt.Sprintf("%s withdrawn from Card #%d", u.format(p.Value), cardID)
}
func (CardWithdrawnPayload) sealed() {}

// CardSpentPayload is emitted when a card pays a recipient
type CardSpentPayload struct {
	Value     *big.Int
	From      common.Address
	Recipient common.Address
}

func (CardSpentPayload) Kind() EventKind    { return EventCardSpent }
func (p CardSpentPayload) Amount() *big.Int { return p.Value }
func (CardSpentPayload) Title() string      { return "Spent" }
func (p CardSpentPayload) Describe(cardID uint64, u Units) string {
	return fmt.Sprintf("%s spent from Card #%d", u.format(p.Value), cardID)
}
func (CardSpentPayload) sealed() {}

// CardStatusChangedPayload is emitted when a card is activated or deactivated
type CardStatusChangedPayload struct {
	IsActive bool
}

func (CardStatusChangedPayload) Kind() EventKind  { return EventCardStatusChanged }
func (CardStatusChangedPayload) Amount() *big.Int { return nil }
func (CardStatusChangedPayload) Title() string    { return "Status Changed" }
func (p CardStatusChangedPayload) Describe(cardID uint64, _ Units) string {
	if p.IsActive {
		return fmt.Sprintf("Card #%d activated", cardID)
	}
	return fmt.Sprintf("Card #%d deactivated", cardID)
}
func (CardStatusChangedPayload) sealed() {}

// SpendingLimitChangedPayload is emitted when the owner changes a card's limit
type SpendingLimitChangedPayload struct {
	NewLimit *big.Int
}

func (SpendingLimitChangedPayload) Kind() EventKind  { return EventSpendingLimitChanged }
func (SpendingLimitChangedPayload) Amount() *big.Int { return nil }
func (SpendingLimitChangedPayload) Title() string    { return "Limit Changed" }
func (p SpendingLimitChangedPayload) Describe(cardID uint64, u Units) string {
	return fmt.Sprintf("Card #%d limit changed to %s", cardID, u.format(p.NewLimit))
}
func (SpendingLimitChangedPayload) sealed() {}

var (
	_ Payload = CardCreatedPayload{}
	_ Payload = CardDepositedPayload{}
	_ Payload = CardWithdrawnPayload{}
	_ Payload = CardSpentPayload{}
	_ Payload = CardStatusChangedPayload{}
	_ Payload = SpendingLimitChangedPayload{}
)
