package port

import (
	"context"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

type ListingLedger interface {
	// Get returns the listing stored at key, or nil if there is none
	Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error)

	// Put stores listing under listing.Key, overwriting any previous entry
	Put(ctx context.Context, listing domain.Listing) error

	// Remove deletes the listing at key; removing an absent key is a no-op
	Remove(ctx context.Context, key domain.ListingKey) error
}

type ProceedsLedger interface {
	// Balance returns the withdrawable balance of account, zero if it never received credit
	Balance(ctx context.Context, account domain.Account) (domain.Amount, error)

	// Credit adds a non-negative amount to the balance of account
	Credit(ctx context.Context, account domain.Account, amount domain.Amount) error

	// Drain resets the balance of account to zero and returns what it was
	Drain(ctx context.Context, account domain.Account) (domain.Amount, error)
}

// LedgerTx is the view of both ledgers inside one LedgerStore transaction.
type LedgerTx interface {
	Listings() ListingLedger
	Proceeds() ProceedsLedger
}

type LedgerStore interface {
	// Atomically runs fn inside a transaction spanning both ledgers. Writes made
	// through tx are committed together if fn returns nil and discarded otherwise.
	// Implementations may call fn more than once on write conflicts, so fn must not
	// have effects outside tx.
	Atomically(ctx context.Context, fn func(tx LedgerTx) error) error

	// Listing reads a listing outside of any transaction
	Listing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error)

	// Proceeds reads a balance outside of any transaction
	Proceeds(ctx context.Context, account domain.Account) (domain.Amount, error)
}
