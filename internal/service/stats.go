package service

import (
	"math"
	"math/big"
	"slices"
	"time"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DailyVolumeDays is how many distinct calendar days the volume series keeps
const DailyVolumeDays = 7

// dayLayout is the calendar-day label used by DailyVolume.Day
const dayLayout = "2006-01-02"

// Aggregator derives portfolio statistics from card snapshots and events.
// It performs no I/O and holds no state between calls.
type Aggregator struct {
	loc      *time.Location
	decimals int32
}

// NewAggregator creates an Aggregator that buckets days in loc. A nil loc
// means time.Local.
func NewAggregator(loc *time.Location, decimals int32) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{loc: loc, decimals: decimals}
}

// In returns a copy of the aggregator that buckets days in loc
func (a *Aggregator) In(loc *time.Location) *Aggregator {
	return NewAggregator(loc, a.decimals)
}

// Location returns the timezone used for day bucketing
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Aggregate computes the portfolio for owner. events must already be filtered
// to owner's cards and sorted newest first; card activity ties are broken by
// that order.
func (a *Aggregator) Aggregate(owner common.Address, cards []models.Card, events []models.LedgerEvent) *models.Portfolio {
	balance, spent, limit := new(big.Int), new(big.Int), new(big.Int)
	active := 0
	byID := make(map[uint64]*models.Card, len(cards))
	for i := range cards {
		c := &cards[i]
		byID[c.ID] = c
		addTo(balance, c.Balance)
		addTo(spent, c.AmountSpent)
		addTo(limit, c.SpendingLimit)
		if c.IsActive {
			active++
		}
	}

	return &models.Portfolio{
		Owner:             owner,
		TotalCards:        len(cards),
		ActiveCards:       active,
		TotalBalance:      models.ToUnits(balance, a.decimals),
		TotalSpent:        models.ToUnits(spent, a.decimals),
		SpendingLimit:     models.ToUnits(limit, a.decimals),
		SpentRatio:        spentRatio(spent, balance),
		TotalTransactions: len(events),
		CardActivity:      a.cardActivity(byID, events),
		DailyVolume:       a.dailyVolume(events),
	}
}

func (a *Aggregator) cardActivity(cards map[uint64]*models.Card, events []models.LedgerEvent) []models.CardActivitySummary {
	type tally struct {
		spent *big.Int
		count int
	}
	order := []uint64{}
	tallies := make(map[uint64]*tally)

	for i := range events {
		id := events[i].CardID
		t, ok := tallies[id]
		if !ok {
			t = &tally{spent: new(big.Int)}
			tallies[id] = t
			order = append(order, id)
		}
		t.count++
		if p, ok := events[i].Payload.(models.CardSpentPayload); ok {
			addTo(t.spent, p.Value)
		}
	}

	out := make([]models.CardActivitySummary, 0, len(order))
	for _, id := range order {
		t := tallies[id]
		spent := t.spent
		// The live counter wins; event sums drift once resetSpent has been called.
		if c, ok := cards[id]; ok && c.AmountSpent != nil {
			spent = c.AmountSpent
		}
		out = append(out, models.CardActivitySummary{
			CardID:           id,
			TransactionCount: t.count,
			TotalSpent:       models.ToUnits(spent, a.decimals),
		})
	}

	slices.SortStableFunc(out, func(x, y models.CardActivitySummary) int {
		return y.TransactionCount - x.TransactionCount
	})
	return out
}

func (a *Aggregator) dailyVolume(events []models.LedgerEvent) []models.DailyVolume {
	sums := make(map[string]*big.Int)
	dates := make(map[string]time.Time)

	for i := range events {
		ts := events[i].Timestamp
		// Unstamped events have no day; they still count as transactions and card activity
		if ts.IsZero() {
			continue
		}
		local := ts.In(a.loc)
		day := local.Format(dayLayout)
		if _, ok := sums[day]; !ok {
			sums[day] = new(big.Int)
			dates[day] = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, a.loc)
		}
		addTo(sums[day], events[i].Payload.Amount())
	}

	days := make([]string, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	// ISO labels sort chronologically
	slices.Sort(days)
	if len(days) > DailyVolumeDays {
		days = days[len(days)-DailyVolumeDays:]
	}

	out := make([]models.DailyVolume, 0, len(days))
	for _, day := range days {
		out = append(out, models.DailyVolume{
			Day:    day,
			Date:   dates[day],
			Volume: models.ToUnits(sums[day], a.decimals),
		})
	}
	return out
}

func spentRatio(spent, balance *big.Int) models.Ratio {
	total := new(big.Int).Add(spent, balance)
	if total.Sign() == 0 {
		return models.Ratio(math.NaN())
	}
	ratio, _ := decimal.NewFromBigInt(spent, 0).
		DivRound(decimal.NewFromBigInt(total, 0), 16).
		Float64()
	return models.Ratio(ratio)
}

func addTo(sum, v *big.Int) {
	if v != nil {
		sum.Add(sum, v)
	}
}
