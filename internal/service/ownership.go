package service

import (
	"slices"

	"github.com/benx421/smartcards/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// FilterOwned keeps the events that belong to owner's cards.
//
// Ownership is decided by CardCreated events alone: an event whose card was
// created by someone else, or whose creation record is missing from events,
// is dropped. Input order is preserved.
func FilterOwned(events []models.LedgerEvent, owner common.Address) []models.LedgerEvent {
	owned := make(map[uint64]struct{})
	for i := range events {
		if p, ok := events[i].Payload.(models.CardCreatedPayload); ok && p.Owner == owner {
			owned[events[i].CardID] = struct{}{}
		}
	}

	out := make([]models.LedgerEvent, 0, len(events))
	for i := range events {
		if p, ok := events[i].Payload.(models.CardCreatedPayload); ok {
			if p.Owner == owner {
				out = append(out, events[i])
			}
			continue
		}
		if _, ok := owned[events[i].CardID]; ok {
			out = append(out, events[i])
		}
	}
	return out
}

// SortNewestFirst orders events by descending (block, log index). The sort is
// stable, so ties keep their input order.
func SortNewestFirst(events []models.LedgerEvent) {
	slices.SortStableFunc(events, func(a, b models.LedgerEvent) int {
		return b.Key().Compare(a.Key())
	})
}

// filterKind keeps the events of one kind
func filterKind(events []models.LedgerEvent, kind models.EventKind) []models.LedgerEvent {
	out := make([]models.LedgerEvent, 0, len(events))
	for i := range events {
		if events[i].Kind() == kind {
			out = append(out, events[i])
		}
	}
	return out
}
