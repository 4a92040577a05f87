package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/nft-marketplace/internal/adapter/registry"
	"github.com/rl1809/nft-marketplace/internal/adapter/storage"
	"github.com/rl1809/nft-marketplace/internal/adapter/wallet"
	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/core/service"
	"github.com/rl1809/nft-marketplace/internal/port"
)

const (
	totalAssets     = 20
	buyersPerAsset  = 50
	withdrawClaims  = 20
	listingPriceStr = "0.1"
)

func main() {
	store := flag.String("store", "memory", "ledger store: memory, pebble or redis")
	redisAddr := flag.String("redis", "localhost:6379", "redis address for -store=redis")
	pebbleDir := flag.String("pebble", "", "pebble directory for -store=pebble (temporary if empty)")
	flag.Parse()

	ctx := context.Background()

	ledger, idem, cleanup, err := openStore(ctx, *store, *redisAddr, *pebbleDir)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", *store, err)
	}
	defer cleanup()

	// Each run uses fresh keys so shared stores need no cleanup.
	run := uuid.NewString()[:8]
	collection := "0xstress-" + run
	seller := domain.NewAccount("0xseller-" + run)
	operator := domain.NewAccount("0xmarketplace")
	price := domain.MustAmount(listingPriceStr)

	reg := registry.NewMemory()
	payouts := wallet.NewMemory(nil)
	marketplace := service.NewMarketplaceService(ledger, reg, payouts, operator,
		service.WithIdempotency(idem),
		service.WithLogger(zap.NewNop()),
	)

	if err := reg.SetApprovalForAll(ctx, seller, operator, true); err != nil {
		log.Fatalf("failed to approve marketplace: %v", err)
	}
	keys := make([]domain.ListingKey, totalAssets)
	for i := range keys {
		keys[i] = domain.NewListingKey(collection, strconv.Itoa(i))
		if err := reg.Mint(ctx, keys[i], seller); err != nil {
			log.Fatalf("failed to mint %s: %v", keys[i], err)
		}
		if err := marketplace.ListItem(ctx, keys[i], price, seller); err != nil {
			log.Fatalf("failed to list %s: %v", keys[i], err)
		}
	}

	// Phase 1: every asset is raced by buyersPerAsset buyers
	var buySuccess, buyNotListed, buyOther atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for _, key := range keys {
		for b := 0; b < buyersPerAsset; b++ {
			wg.Add(1)
			go func(key domain.ListingKey, b int) {
				defer wg.Done()

				buyer := domain.NewAccount(fmt.Sprintf("0xbuyer-%d", b))
				err := marketplace.Once(ctx, uuid.NewString(), func() error {
					return marketplace.BuyItem(ctx, key, price, buyer)
				})
				switch {
				case err == nil:
					buySuccess.Add(1)
				case errors.Is(err, service.ErrNotListed):
					buyNotListed.Add(1)
				default:
					buyOther.Add(1)
					log.Printf("unexpected buy error on %s: %v", key, err)
				}
			}(key, b)
		}
	}
	wg.Wait()
	buyElapsed := time.Since(start)

	// Phase 2: the seller withdraws from many goroutines at once
	var withdrawSuccess, withdrawEmpty atomic.Int32
	start = time.Now()
	for i := 0; i < withdrawClaims; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := marketplace.WithdrawProceeds(ctx, seller)
			switch {
			case err == nil:
				withdrawSuccess.Add(1)
			case errors.Is(err, service.ErrNoProceeds):
				withdrawEmpty.Add(1)
			default:
				log.Printf("unexpected withdraw error: %v", err)
			}
		}()
	}
	wg.Wait()
	withdrawElapsed := time.Since(start)

	paid, _ := payouts.Balance(ctx, seller)
	expectedPaid := price.Mul(domain.MustAmount(strconv.Itoa(totalAssets)))
	leftover, _ := marketplace.GetProceeds(ctx, seller)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store:              %s\n", *store)
	fmt.Printf("Assets Listed:      %d\n", totalAssets)
	fmt.Printf("Buy Requests:       %d\n", totalAssets*buyersPerAsset)
	fmt.Printf("Buys Succeeded:     %d\n", buySuccess.Load())
	fmt.Printf("Buys NotListed:     %d\n", buyNotListed.Load())
	fmt.Printf("Buys Other Errors:  %d\n", buyOther.Load())
	fmt.Printf("Buy Duration:       %v\n", buyElapsed)
	fmt.Printf("Withdraw Claims:    %d\n", withdrawClaims)
	fmt.Printf("Withdraw Succeeded: %d\n", withdrawSuccess.Load())
	fmt.Printf("Withdraw Duration:  %v\n", withdrawElapsed)
	fmt.Printf("Seller Paid Out:    %s\n", paid)
	fmt.Println("==========================================")

	if buySuccess.Load() == totalAssets && buyOther.Load() == 0 {
		fmt.Printf("PASS: exactly one buyer per asset (%d)\n", totalAssets)
	} else {
		fmt.Printf("FAIL: expected %d buys, got %d (%d other errors)\n", totalAssets, buySuccess.Load(), buyOther.Load())
	}

	if withdrawSuccess.Load() == 1 && paid.Equal(expectedPaid) && leftover.IsZero() {
		fmt.Printf("PASS: single payout of %s\n", expectedPaid)
	} else {
		fmt.Printf("FAIL: expected one payout of %s, got %d payouts totalling %s (leftover %s)\n",
			expectedPaid, withdrawSuccess.Load(), paid, leftover)
	}
}

func openStore(ctx context.Context, driver, redisAddr, pebbleDir string) (port.LedgerStore, port.IdempotencyRepository, func(), error) {
	switch driver {
	case "memory":
		return storage.NewMemoryAdapter(), storage.NewMemoryIdempotency(time.Hour), func() {}, nil
	case "pebble":
		cleanupDir := func() {}
		if pebbleDir == "" {
			dir, err := os.MkdirTemp("", "marketplace-stress-")
			if err != nil {
				return nil, nil, nil, err
			}
			pebbleDir = dir
			cleanupDir = func() { os.RemoveAll(dir) }
		}
		store, err := storage.OpenPebbleAdapter(pebbleDir)
		if err != nil {
			cleanupDir()
			return nil, nil, nil, err
		}
		return store, storage.NewMemoryIdempotency(time.Hour), func() {
			store.Close()
			cleanupDir()
		}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr, PoolSize: 100})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, err
		}
		adapter := storage.NewRedisAdapter(rdb, time.Hour)
		return adapter, adapter, func() { rdb.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", driver)
	}
}
