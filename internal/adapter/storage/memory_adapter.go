package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/port"
)

// MemoryAdapter keeps both ledgers in process. Transactions are serialized by a
// single mutex, and their writes are staged until fn returns nil.
type MemoryAdapter struct {
	mu       sync.Mutex
	listings map[domain.ListingKey]domain.Listing
	proceeds map[domain.Account]domain.Amount
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		listings: make(map[domain.ListingKey]domain.Listing),
		proceeds: make(map[domain.Account]domain.Amount),
	}
}

func (m *MemoryAdapter) Atomically(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:    m,
		listings: make(map[domain.ListingKey]*domain.Listing),
		proceeds: make(map[domain.Account]domain.Amount),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

func (m *MemoryAdapter) Listing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *MemoryAdapter) Proceeds(ctx context.Context, account domain.Account) (domain.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.proceeds[account], nil
}

// memoryTx stages writes; a nil entry in listings marks a removal.
type memoryTx struct {
	store    *MemoryAdapter
	listings map[domain.ListingKey]*domain.Listing
	proceeds map[domain.Account]domain.Amount
}

func (t *memoryTx) Listings() port.ListingLedger   { return memoryListings{t} }
func (t *memoryTx) Proceeds() port.ProceedsLedger { return memoryProceeds{t} }

func (t *memoryTx) apply() {
	for key, l := range t.listings {
		if l == nil {
			delete(t.store.listings, key)
			continue
		}
		t.store.listings[key] = *l
	}
	for account, balance := range t.proceeds {
		if balance.IsZero() {
			delete(t.store.proceeds, account)
			continue
		}
		t.store.proceeds[account] = balance
	}
}

type memoryListings struct{ tx *memoryTx }

func (l memoryListings) Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	if staged, ok := l.tx.listings[key]; ok {
		if staged == nil {
			return nil, nil
		}
		cp := *staged
		return &cp, nil
	}
	stored, ok := l.tx.store.listings[key]
	if !ok {
		return nil, nil
	}
	return &stored, nil
}

func (l memoryListings) Put(ctx context.Context, listing domain.Listing) error {
	cp := listing
	l.tx.listings[listing.Key] = &cp
	return nil
}

func (l memoryListings) Remove(ctx context.Context, key domain.ListingKey) error {
	l.tx.listings[key] = nil
	return nil
}

type memoryProceeds struct{ tx *memoryTx }

func (p memoryProceeds) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	if staged, ok := p.tx.proceeds[account]; ok {
		return staged, nil
	}
	return p.tx.store.proceeds[account], nil
}

func (p memoryProceeds) Credit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount.IsNegative() {
		return ErrNegativeCredit
	}
	balance, _ := p.Balance(ctx, account)
	p.tx.proceeds[account] = balance.Add(amount)
	return nil
}

func (p memoryProceeds) Drain(ctx context.Context, account domain.Account) (domain.Amount, error) {
	balance, _ := p.Balance(ctx, account)
	p.tx.proceeds[account] = domain.Amount{}
	return balance, nil
}

// MemoryIdempotency is the in-process counterpart of RedisAdapter's SETNX claims.
// Expired claims are swept every idempotencySweepEvery acquisitions.
type MemoryIdempotency struct {
	mu     sync.Mutex
	ttl    time.Duration
	claims map[string]time.Time
	hits   uint64
}

const idempotencySweepEvery = 512

func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	return &MemoryIdempotency{
		ttl:    ttl,
		claims: make(map[string]time.Time),
	}
}

func (m *MemoryIdempotency) Acquire(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.hits++
	if m.ttl > 0 && m.hits%idempotencySweepEvery == 0 {
		for k, expires := range m.claims {
			if !now.Before(expires) {
				delete(m.claims, k)
			}
		}
	}

	if expires, ok := m.claims[key]; ok && (m.ttl <= 0 || now.Before(expires)) {
		return false, nil
	}
	m.claims[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.claims, key)
	return nil
}
