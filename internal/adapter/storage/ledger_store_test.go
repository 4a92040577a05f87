package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/port"
)

var errGone = errors.New("listing gone")

// runLedgerStoreSuite checks the transactional contract every backend must honor.
// Keys are namespaced so shared MySQL/Redis instances can be reused between runs.
func runLedgerStoreSuite(t *testing.T, store port.LedgerStore) {
	ns := uuid.NewString()[:8]
	ctx := context.Background()

	t.Run("PutGetRemove", func(t *testing.T) {
		key := domain.NewListingKey("0xbasicnft-"+ns, "0")
		seller := domain.NewAccount("0xSeller-" + ns)
		price := domain.MustAmount("0.1")

		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			return tx.Listings().Put(ctx, domain.Listing{Key: key, Seller: seller, Price: price})
		})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := store.Listing(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected listing, got nil")
		}
		if got.Seller != seller {
			t.Errorf("expected seller %s, got %s", seller, got.Seller)
		}
		if !got.Price.Equal(price) {
			t.Errorf("expected price %s, got %s", price, got.Price)
		}

		err = store.Atomically(ctx, func(tx port.LedgerTx) error {
			return tx.Listings().Remove(ctx, key)
		})
		if err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		got, err = store.Listing(ctx, key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil after remove, got %+v", got)
		}
	})

	t.Run("DistinctKeysDoNotCollide", func(t *testing.T) {
		pairs := [][2]domain.ListingKey{
			{domain.NewListingKey("0xcoll-"+ns+"/x", "1"), domain.NewListingKey("0xcoll-"+ns, "x/1")},
			{domain.NewListingKey("0xcoll-"+ns+":x", "1"), domain.NewListingKey("0xcoll-"+ns, "x:1")},
			{domain.NewListingKey("0xcoll-"+ns+"%2Fx", "1"), domain.NewListingKey("0xcoll-"+ns+"/x", "1")},
		}
		alice := domain.NewAccount("0xalice-" + ns)
		mallory := domain.NewAccount("0xmallory-" + ns)

		for _, pair := range pairs {
			first, second := pair[0], pair[1]

			err := store.Atomically(ctx, func(tx port.LedgerTx) error {
				return tx.Listings().Put(ctx, domain.Listing{Key: first, Seller: alice, Price: domain.MustAmount("0.1")})
			})
			if err != nil {
				t.Fatalf("put %s failed: %v", first, err)
			}

			got, err := store.Listing(ctx, second)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Fatalf("listing %s leaked into %s: %+v", first, second, got)
			}

			err = store.Atomically(ctx, func(tx port.LedgerTx) error {
				if err := tx.Listings().Put(ctx, domain.Listing{Key: second, Seller: mallory, Price: domain.MustAmount("5")}); err != nil {
					return err
				}
				return tx.Listings().Remove(ctx, second)
			})
			if err != nil {
				t.Fatalf("put/remove %s failed: %v", second, err)
			}

			got, err = store.Listing(ctx, first)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || got.Seller != alice || !got.Price.Equal(domain.MustAmount("0.1")) {
				t.Errorf("expected %s untouched, got %+v", first, got)
			}

			_ = store.Atomically(ctx, func(tx port.LedgerTx) error {
				return tx.Listings().Remove(ctx, first)
			})
		}
	})

	t.Run("ReadYourWrites", func(t *testing.T) {
		key := domain.NewListingKey("0xbasicnft-"+ns, "1")
		seller := domain.NewAccount("0xryw-" + ns)

		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			if err := tx.Listings().Put(ctx, domain.Listing{Key: key, Seller: seller, Price: domain.MustAmount("2")}); err != nil {
				return err
			}
			got, err := tx.Listings().Get(ctx, key)
			if err != nil {
				return err
			}
			if got == nil || got.Seller != seller {
				t.Errorf("expected staged listing inside tx, got %+v", got)
			}
			if err := tx.Proceeds().Credit(ctx, seller, domain.MustAmount("1.5")); err != nil {
				return err
			}
			balance, err := tx.Proceeds().Balance(ctx, seller)
			if err != nil {
				return err
			}
			if !balance.Equal(domain.MustAmount("1.5")) {
				t.Errorf("expected staged balance 1.5, got %s", balance)
			}
			return tx.Listings().Remove(ctx, key)
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		key := domain.NewListingKey("0xbasicnft-"+ns, "2")
		seller := domain.NewAccount("0xrollback-" + ns)
		boom := errors.New("boom")

		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			if err := tx.Listings().Put(ctx, domain.Listing{Key: key, Seller: seller, Price: domain.MustAmount("1")}); err != nil {
				return err
			}
			if err := tx.Proceeds().Credit(ctx, seller, domain.MustAmount("1")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got: %v", err)
		}

		got, _ := store.Listing(ctx, key)
		if got != nil {
			t.Errorf("expected no listing after rollback, got %+v", got)
		}
		balance, _ := store.Proceeds(ctx, seller)
		if !balance.IsZero() {
			t.Errorf("expected zero balance after rollback, got %s", balance)
		}
	})

	t.Run("CreditAndDrain", func(t *testing.T) {
		account := domain.NewAccount("0xcredit-" + ns)

		for _, amount := range []string{"0.1", "0.25"} {
			err := store.Atomically(ctx, func(tx port.LedgerTx) error {
				return tx.Proceeds().Credit(ctx, account, domain.MustAmount(amount))
			})
			if err != nil {
				t.Fatalf("credit failed: %v", err)
			}
		}

		balance, _ := store.Proceeds(ctx, account)
		if !balance.Equal(domain.MustAmount("0.35")) {
			t.Errorf("expected balance 0.35, got %s", balance)
		}

		var drained domain.Amount
		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			var err error
			drained, err = tx.Proceeds().Drain(ctx, account)
			return err
		})
		if err != nil {
			t.Fatalf("drain failed: %v", err)
		}
		if !drained.Equal(domain.MustAmount("0.35")) {
			t.Errorf("expected drained 0.35, got %s", drained)
		}

		balance, _ = store.Proceeds(ctx, account)
		if !balance.IsZero() {
			t.Errorf("expected zero after drain, got %s", balance)
		}
	})

	t.Run("NegativeCreditRejected", func(t *testing.T) {
		account := domain.NewAccount("0xnegative-" + ns)
		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			return tx.Proceeds().Credit(ctx, account, domain.MustAmount("-1"))
		})
		if !errors.Is(err, ErrNegativeCredit) {
			t.Errorf("expected ErrNegativeCredit, got: %v", err)
		}
	})

	t.Run("ConcurrentDrain", func(t *testing.T) {
		account := domain.NewAccount("0xdrain-" + ns)
		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			return tx.Proceeds().Credit(ctx, account, domain.MustAmount("1"))
		})
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		var payouts atomic.Int32
		var mu sync.Mutex
		total := domain.Amount{}
		var wg sync.WaitGroup

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var drained domain.Amount
				err := store.Atomically(ctx, func(tx port.LedgerTx) error {
					var err error
					drained, err = tx.Proceeds().Drain(ctx, account)
					return err
				})
				if err != nil {
					return
				}
				if drained.IsPositive() {
					payouts.Add(1)
					mu.Lock()
					total = total.Add(drained)
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		if payouts.Load() != 1 {
			t.Errorf("expected exactly 1 payout, got %d", payouts.Load())
		}
		if !total.Equal(domain.MustAmount("1")) {
			t.Errorf("expected total drained 1, got %s", total)
		}
	})

	t.Run("ConcurrentSettle", func(t *testing.T) {
		key := domain.NewListingKey("0xbasicnft-"+ns, "3")
		seller := domain.NewAccount("0xsettle-" + ns)
		err := store.Atomically(ctx, func(tx port.LedgerTx) error {
			return tx.Listings().Put(ctx, domain.Listing{Key: key, Seller: seller, Price: domain.MustAmount("0.1")})
		})
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		var successCount atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Atomically(ctx, func(tx port.LedgerTx) error {
					current, err := tx.Listings().Get(ctx, key)
					if err != nil {
						return err
					}
					if current == nil {
						return errGone
					}
					if err := tx.Listings().Remove(ctx, key); err != nil {
						return err
					}
					return tx.Proceeds().Credit(ctx, current.Seller, current.Price)
				})
				if err == nil {
					successCount.Add(1)
				}
			}()
		}

		wg.Wait()

		if successCount.Load() != 1 {
			t.Errorf("expected exactly 1 settlement, got %d", successCount.Load())
		}
		balance, _ := store.Proceeds(ctx, seller)
		if !balance.Equal(domain.MustAmount("0.1")) {
			t.Errorf("expected seller balance 0.1, got %s", balance)
		}
	})
}
