package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventItemListed   EventType = "ItemListed"
	EventItemCanceled EventType = "ItemCanceled"
	EventItemBought   EventType = "ItemBought"

	EventSettlementShortfall EventType = "SettlementShortfall"
)

// Event is a marketplace notification. Account is the seller for ItemListed and
// ItemCanceled, and the buyer for ItemBought. Amount is zero for ItemCanceled.
// SettlementShortfall names the seller and the credit that could not be reversed
// after a failed asset transfer.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	TokenID    string    `json:"token_id"`
	Account    Account   `json:"account"`
	Amount     Amount    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(typ EventType, key ListingKey, account Account, amount Amount) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Collection: key.Collection,
		TokenID:    key.TokenID,
		Account:    account,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) Key() ListingKey {
	return ListingKey{Collection: e.Collection, TokenID: e.TokenID}
}
