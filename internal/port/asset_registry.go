package port

import (
	"context"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

// AssetRegistry is the external ledger of asset ownership the marketplace trades against.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, key domain.ListingKey) (domain.Account, error)

	// IsApprovedForOperator reports whether operator may move the asset on the owner's behalf
	IsApprovedForOperator(ctx context.Context, key domain.ListingKey, operator domain.Account) (bool, error)

	// TransferFrom moves the asset from -> to, acting as operator. It fails if from
	// is not the custodian at call time or operator is not authorized.
	TransferFrom(ctx context.Context, operator, from, to domain.Account, key domain.ListingKey) error
}
