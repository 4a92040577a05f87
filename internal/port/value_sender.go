package port

import (
	"context"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
)

type ValueSender interface {
	// SendValue delivers amount of the native unit to account outside the marketplace
	SendValue(ctx context.Context, account domain.Account, amount domain.Amount) error
}
