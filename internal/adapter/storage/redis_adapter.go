package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/port"
)

const (
	redisListingPrefix  = "listing:"
	redisProceedsPrefix = "proceeds:"
	idempotencyKeyTTL   = 24 * time.Hour
)

// RedisAdapter stores the ledgers in Redis and also serves idempotency claims.
// Transactions are optimistic: every key is WATCHed before it is read and the
// staged writes are applied in one MULTI/EXEC.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, idempotencyTTL time.Duration) *RedisAdapter {
	if idempotencyTTL <= 0 {
		idempotencyTTL = idempotencyKeyTTL
	}
	return &RedisAdapter{client: client, ttl: idempotencyTTL}
}

func (r *RedisAdapter) Atomically(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{
				ctx:      ctx,
				rtx:      rtx,
				listings: make(map[domain.ListingKey]*domain.Listing),
				proceeds: make(map[domain.Account]domain.Amount),
			}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.listings) == 0 && len(tx.proceeds) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				tx.flush(pipe)
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

func (r *RedisAdapter) Listing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	return readRedisListing(ctx, r.client, key)
}

func (r *RedisAdapter) Proceeds(ctx context.Context, account domain.Account) (domain.Amount, error) {
	return readRedisProceeds(ctx, r.client, account)
}

func (r *RedisAdapter) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

type redisReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisTx struct {
	ctx      context.Context
	rtx      *redis.Tx
	listings map[domain.ListingKey]*domain.Listing
	proceeds map[domain.Account]domain.Amount
}

func (t *redisTx) Listings() port.ListingLedger   { return redisListings{t} }
func (t *redisTx) Proceeds() port.ProceedsLedger { return redisProceeds{t} }

func (t *redisTx) flush(pipe redis.Pipeliner) {
	for key, l := range t.listings {
		if l == nil {
			pipe.Del(t.ctx, redisListingKey(key))
			continue
		}
		pipe.HSet(t.ctx, redisListingKey(key), "seller", l.Seller.String(), "price", l.Price.String())
	}
	for account, balance := range t.proceeds {
		if balance.IsZero() {
			pipe.Del(t.ctx, redisProceedsKey(account))
			continue
		}
		pipe.Set(t.ctx, redisProceedsKey(account), balance.String(), 0)
	}
}

func (t *redisTx) watch(ctx context.Context, key string) error {
	return t.rtx.Watch(ctx, key).Err()
}

type redisListings struct{ tx *redisTx }

func (l redisListings) Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	if staged, ok := l.tx.listings[key]; ok {
		if staged == nil {
			return nil, nil
		}
		cp := *staged
		return &cp, nil
	}
	if err := l.tx.watch(ctx, redisListingKey(key)); err != nil {
		return nil, err
	}
	return readRedisListing(ctx, l.tx.rtx, key)
}

func (l redisListings) Put(ctx context.Context, listing domain.Listing) error {
	cp := listing
	l.tx.listings[listing.Key] = &cp
	return nil
}

func (l redisListings) Remove(ctx context.Context, key domain.ListingKey) error {
	l.tx.listings[key] = nil
	return nil
}

type redisProceeds struct{ tx *redisTx }

func (p redisProceeds) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	if staged, ok := p.tx.proceeds[account]; ok {
		return staged, nil
	}
	if err := p.tx.watch(ctx, redisProceedsKey(account)); err != nil {
		return domain.Amount{}, err
	}
	return readRedisProceeds(ctx, p.tx.rtx, account)
}

func (p redisProceeds) Credit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount.IsNegative() {
		return ErrNegativeCredit
	}
	balance, err := p.Balance(ctx, account)
	if err != nil {
		return err
	}
	p.tx.proceeds[account] = balance.Add(amount)
	return nil
}

func (p redisProceeds) Drain(ctx context.Context, account domain.Account) (domain.Amount, error) {
	balance, err := p.Balance(ctx, account)
	if err != nil {
		return domain.Amount{}, err
	}
	p.tx.proceeds[account] = domain.Amount{}
	return balance, nil
}

func readRedisListing(ctx context.Context, c redisReader, key domain.ListingKey) (*domain.Listing, error) {
	fields, err := c.HGetAll(ctx, redisListingKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall listing %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, fmt.Errorf("decode listing price %s: %w", key, err)
	}
	return &domain.Listing{Key: key, Seller: domain.Account(fields["seller"]), Price: price}, nil
}

func readRedisProceeds(ctx context.Context, c redisReader, account domain.Account) (domain.Amount, error) {
	raw, err := c.Get(ctx, redisProceedsKey(account)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Amount{}, nil
	}
	if err != nil {
		return domain.Amount{}, fmt.Errorf("get proceeds %s: %w", account, err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("decode proceeds %s: %w", account, err)
	}
	return balance, nil
}

func redisListingKey(key domain.ListingKey) string {
	return redisListingPrefix + escapeKeyPart(key.Collection) + ":" + escapeKeyPart(key.TokenID)
}

func redisProceedsKey(account domain.Account) string {
	return redisProceedsPrefix + account.String()
}
