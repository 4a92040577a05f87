package port

import "context"

type IdempotencyRepository interface {
	// Acquire claims key, returns false if it is already claimed
	Acquire(ctx context.Context, key string) (bool, error)

	// Release frees a claimed key so the request can be retried
	Release(ctx context.Context, key string) error
}
