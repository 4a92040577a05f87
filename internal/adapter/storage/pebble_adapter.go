package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/port"
)

const (
	listingKeyPrefix  = "listing/"
	proceedsKeyPrefix = "proceeds/"
)

// PebbleAdapter persists both ledgers in an embedded pebble database. Writers
// are serialized in process; each transaction is one indexed batch committed
// with pebble.Sync.
type PebbleAdapter struct {
	mu sync.Mutex
	db *pebble.DB
}

type listingRecord struct {
	Seller string `json:"seller"`
	Price  string `json:"price"`
}

func OpenPebbleAdapter(dir string) (*PebbleAdapter, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", dir, err)
	}
	return &PebbleAdapter{db: db}, nil
}

func (p *PebbleAdapter) Close() error {
	return p.db.Close()
}

func (p *PebbleAdapter) Atomically(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&pebbleTx{reader: batch, batch: batch}); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (p *PebbleAdapter) Listing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	return getListing(p.db, key)
}

func (p *PebbleAdapter) Proceeds(ctx context.Context, account domain.Account) (domain.Amount, error) {
	return getProceeds(p.db, account)
}

type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

type pebbleTx struct {
	reader pebbleReader
	batch  *pebble.Batch
}

func (t *pebbleTx) Listings() port.ListingLedger   { return pebbleListings{t} }
func (t *pebbleTx) Proceeds() port.ProceedsLedger { return pebbleProceeds{t} }

type pebbleListings struct{ tx *pebbleTx }

func (l pebbleListings) Get(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	return getListing(l.tx.reader, key)
}

func (l pebbleListings) Put(ctx context.Context, listing domain.Listing) error {
	value, err := json.Marshal(listingRecord{
		Seller: listing.Seller.String(),
		Price:  listing.Price.String(),
	})
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	return l.tx.batch.Set(pebbleListingKey(listing.Key), value, nil)
}

func (l pebbleListings) Remove(ctx context.Context, key domain.ListingKey) error {
	return l.tx.batch.Delete(pebbleListingKey(key), nil)
}

type pebbleProceeds struct{ tx *pebbleTx }

func (p pebbleProceeds) Balance(ctx context.Context, account domain.Account) (domain.Amount, error) {
	return getProceeds(p.tx.reader, account)
}

func (p pebbleProceeds) Credit(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if amount.IsNegative() {
		return ErrNegativeCredit
	}
	balance, err := getProceeds(p.tx.reader, account)
	if err != nil {
		return err
	}
	return p.tx.batch.Set(pebbleProceedsKey(account), []byte(balance.Add(amount).String()), nil)
}

func (p pebbleProceeds) Drain(ctx context.Context, account domain.Account) (domain.Amount, error) {
	balance, err := getProceeds(p.tx.reader, account)
	if err != nil {
		return domain.Amount{}, err
	}
	if err := p.tx.batch.Delete(pebbleProceedsKey(account), nil); err != nil {
		return domain.Amount{}, err
	}
	return balance, nil
}

func getListing(r pebbleReader, key domain.ListingKey) (*domain.Listing, error) {
	val, closer, err := r.Get(pebbleListingKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", key, err)
	}
	defer closer.Close()

	var rec listingRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("decode listing %s: %w", key, err)
	}
	price, err := decimal.NewFromString(rec.Price)
	if err != nil {
		return nil, fmt.Errorf("decode listing price %s: %w", key, err)
	}
	return &domain.Listing{Key: key, Seller: domain.Account(rec.Seller), Price: price}, nil
}

func getProceeds(r pebbleReader, account domain.Account) (domain.Amount, error) {
	val, closer, err := r.Get(pebbleProceedsKey(account))
	if errors.Is(err, pebble.ErrNotFound) {
		return domain.Amount{}, nil
	}
	if err != nil {
		return domain.Amount{}, fmt.Errorf("get proceeds %s: %w", account, err)
	}
	defer closer.Close()

	balance, err := decimal.NewFromString(string(val))
	if err != nil {
		return domain.Amount{}, fmt.Errorf("decode proceeds %s: %w", account, err)
	}
	return balance, nil
}

func pebbleListingKey(key domain.ListingKey) []byte {
	return []byte(listingKeyPrefix + escapeKeyPart(key.Collection) + "/" + escapeKeyPart(key.TokenID))
}

func pebbleProceedsKey(account domain.Account) []byte {
	return []byte(proceedsKeyPrefix + account.String())
}

// escapeKeyPart percent-encodes one component of a composite key so that the
// separators used by the pebble and redis layouts cannot occur inside it.
func escapeKeyPart(part string) string {
	return url.QueryEscape(part)
}
