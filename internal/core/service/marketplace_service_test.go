package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rl1809/nft-marketplace/internal/adapter/registry"
	"github.com/rl1809/nft-marketplace/internal/adapter/storage"
	"github.com/rl1809/nft-marketplace/internal/adapter/wallet"
	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/metrics"
	"github.com/rl1809/nft-marketplace/internal/port"
)

var (
	basicNft    = domain.NewListingKey("0xBasicNft", "0")
	deployer    = domain.NewAccount("0xdeployer")
	player      = domain.NewAccount("0xplayer")
	marketplace = domain.NewAccount("0xmarketplace")
	price       = domain.MustAmount("0.1")
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Event, len(p.events))
	copy(out, p.events)
	return out
}

// hookRegistry runs onTransfer before delegating, letting tests re-enter the
// service from inside the external call.
type hookRegistry struct {
	port.AssetRegistry
	onTransfer func(ctx context.Context) error
}

func (r *hookRegistry) TransferFrom(ctx context.Context, operator, from, to domain.Account, key domain.ListingKey) error {
	if r.onTransfer != nil {
		if err := r.onTransfer(ctx); err != nil {
			return err
		}
	}
	return r.AssetRegistry.TransferFrom(ctx, operator, from, to, key)
}

type hookSender struct {
	port.ValueSender
	onSend func(ctx context.Context)
}

func (s *hookSender) SendValue(ctx context.Context, account domain.Account, amount domain.Amount) error {
	if s.onSend != nil {
		s.onSend(ctx)
	}
	return s.ValueSender.SendValue(ctx, account, amount)
}

type fixture struct {
	svc       *MarketplaceService
	store     *storage.MemoryAdapter
	registry  *registry.Memory
	wallet    *wallet.Memory
	publisher *recordingPublisher
}

// newFixture mints basicNft to deployer and approves the marketplace for it.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:     storage.NewMemoryAdapter(),
		registry:  registry.NewMemory(),
		wallet:    wallet.NewMemory(zaptest.NewLogger(t)),
		publisher: &recordingPublisher{},
	}
	require.NoError(t, f.registry.Mint(ctx, basicNft, deployer))
	require.NoError(t, f.registry.Approve(ctx, deployer, basicNft, marketplace))

	opts = append([]Option{
		WithPublisher(f.publisher),
		WithIdempotency(storage.NewMemoryIdempotency(0)),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	f.svc = NewMarketplaceService(f.store, f.registry, f.wallet, marketplace, opts...)
	return f
}

func (f *fixture) withRegistry(r port.AssetRegistry) {
	f.svc.registry = r
}

func (f *fixture) withSender(s port.ValueSender) {
	f.svc.sender = s
}

func (f *fixture) list(t *testing.T) {
	t.Helper()
	require.NoError(t, f.svc.ListItem(context.Background(), basicNft, price, deployer))
}

func TestListItem(t *testing.T) {
	ctx := context.Background()

	t.Run("lists and emits ItemListed", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		listing, err := f.svc.GetListing(ctx, basicNft)
		require.NoError(t, err)
		assert.Equal(t, deployer, listing.Seller)
		assert.True(t, listing.Price.Equal(price))

		events := f.publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventItemListed, events[0].Type)
		assert.Equal(t, deployer, events[0].Account)
		assert.True(t, events[0].Amount.Equal(price))
		assert.Equal(t, basicNft, events[0].Key())
	})

	t.Run("price must be above zero", func(t *testing.T) {
		f := newFixture(t)
		for _, p := range []string{"0", "-0.1"} {
			err := f.svc.ListItem(ctx, basicNft, domain.MustAmount(p), deployer)
			assert.ErrorIs(t, err, ErrInvalidPrice)
		}
	})

	t.Run("invalid price is reported before ownership", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ListItem(ctx, basicNft, domain.Amount{}, player)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})

	t.Run("already listed is reported before ownership", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		assert.ErrorIs(t, f.svc.ListItem(ctx, basicNft, price, deployer), ErrAlreadyListed)
		assert.ErrorIs(t, f.svc.ListItem(ctx, basicNft, price, player), ErrAlreadyListed)
	})

	t.Run("not owner", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.ListItem(ctx, basicNft, price, player), ErrNotOwner)
	})

	t.Run("not approved for marketplace", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.registry.Approve(ctx, deployer, basicNft, ""))

		err := f.svc.ListItem(ctx, basicNft, price, deployer)
		assert.ErrorIs(t, err, ErrNotApprovedForMarketplace)

		listing, _ := f.svc.GetListing(ctx, basicNft)
		assert.True(t, listing.IsZero())
	})

	t.Run("operator for all counts as approval", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.registry.Approve(ctx, deployer, basicNft, ""))
		require.NoError(t, f.registry.SetApprovalForAll(ctx, deployer, marketplace, true))

		assert.NoError(t, f.svc.ListItem(ctx, basicNft, price, deployer))
	})

	t.Run("unknown asset is an internal failure", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ListItem(ctx, domain.NewListingKey("0xbasicnft", "42"), price, deployer)
		assert.ErrorIs(t, err, registry.ErrUnknownAsset)
		assert.Equal(t, "Internal", Code(err))
	})
}

func TestCancelListing(t *testing.T) {
	ctx := context.Background()

	t.Run("removes and emits ItemCanceled", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		require.NoError(t, f.svc.CancelListing(ctx, basicNft, deployer))

		listing, _ := f.svc.GetListing(ctx, basicNft)
		assert.True(t, listing.IsZero())

		events := f.publisher.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventItemCanceled, events[1].Type)
		assert.Equal(t, deployer, events[1].Account)
		assert.True(t, events[1].Amount.IsZero())
	})

	t.Run("second cancel fails NotListed", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		require.NoError(t, f.svc.CancelListing(ctx, basicNft, deployer))
		assert.ErrorIs(t, f.svc.CancelListing(ctx, basicNft, deployer), ErrNotListed)
	})

	t.Run("not listed is reported before ownership", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.CancelListing(ctx, basicNft, player), ErrNotListed)
	})

	t.Run("not owner", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		assert.ErrorIs(t, f.svc.CancelListing(ctx, basicNft, player), ErrNotOwner)
	})
}

func TestUpdateListing(t *testing.T) {
	ctx := context.Background()
	newPrice := domain.MustAmount("0.5")

	t.Run("not listed", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.UpdateListing(ctx, basicNft, newPrice, deployer), ErrNotListed)
	})

	t.Run("not owner", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		assert.ErrorIs(t, f.svc.UpdateListing(ctx, basicNft, newPrice, player), ErrNotOwner)
	})

	t.Run("ownership is reported before price", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		assert.ErrorIs(t, f.svc.UpdateListing(ctx, basicNft, domain.Amount{}, player), ErrNotOwner)
		assert.ErrorIs(t, f.svc.UpdateListing(ctx, basicNft, domain.Amount{}, deployer), ErrInvalidPrice)
	})

	t.Run("owner changes only price and ItemListed is emitted", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		require.NoError(t, f.svc.UpdateListing(ctx, basicNft, newPrice, deployer))

		listing, _ := f.svc.GetListing(ctx, basicNft)
		assert.Equal(t, deployer, listing.Seller)
		assert.True(t, listing.Price.Equal(newPrice))

		events := f.publisher.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventItemListed, events[1].Type)
		assert.True(t, events[1].Amount.Equal(newPrice))
	})

	t.Run("approval is not re-verified", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		require.NoError(t, f.registry.Approve(ctx, deployer, basicNft, ""))

		assert.NoError(t, f.svc.UpdateListing(ctx, basicNft, newPrice, deployer))
	})
}

func TestOwnershipIsCheckedLive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.list(t)

	// asset leaves the seller out-of-band
	require.NoError(t, f.registry.TransferFrom(ctx, deployer, deployer, player, basicNft))

	assert.ErrorIs(t, f.svc.CancelListing(ctx, basicNft, deployer), ErrNotOwner)
	assert.ErrorIs(t, f.svc.UpdateListing(ctx, basicNft, price, deployer), ErrNotOwner)

	// the live owner may manage the listing even though it records deployer
	require.NoError(t, f.svc.UpdateListing(ctx, basicNft, domain.MustAmount("1"), player))
	listing, _ := f.svc.GetListing(ctx, basicNft)
	assert.Equal(t, deployer, listing.Seller)

	require.NoError(t, f.svc.CancelListing(ctx, basicNft, player))
}

func TestBuyItem(t *testing.T) {
	ctx := context.Background()

	t.Run("settles listing, proceeds and custody", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))

		owner, _ := f.registry.OwnerOf(ctx, basicNft)
		assert.Equal(t, player, owner)

		proceeds, _ := f.svc.GetProceeds(ctx, deployer)
		assert.True(t, proceeds.Equal(price), "proceeds %s", proceeds)

		listing, _ := f.svc.GetListing(ctx, basicNft)
		assert.True(t, listing.IsZero())
		assert.Equal(t, basicNft, listing.Key)

		events := f.publisher.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventItemBought, events[1].Type)
		assert.Equal(t, player, events[1].Account)
		assert.True(t, events[1].Amount.Equal(price))
	})

	t.Run("not listed", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.BuyItem(ctx, basicNft, price, player), ErrNotListed)
	})

	t.Run("price not met leaves state untouched", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		err := f.svc.BuyItem(ctx, basicNft, domain.MustAmount("0.05"), player)
		assert.ErrorIs(t, err, ErrPriceNotMet)

		listing, _ := f.svc.GetListing(ctx, basicNft)
		assert.Equal(t, deployer, listing.Seller)
		proceeds, _ := f.svc.GetProceeds(ctx, deployer)
		assert.True(t, proceeds.IsZero())
		owner, _ := f.registry.OwnerOf(ctx, basicNft)
		assert.Equal(t, deployer, owner)
	})

	t.Run("overpayment is credited in full", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)

		require.NoError(t, f.svc.BuyItem(ctx, basicNft, domain.MustAmount("0.25"), player))

		proceeds, _ := f.svc.GetProceeds(ctx, deployer)
		assert.True(t, proceeds.Equal(domain.MustAmount("0.25")), "proceeds %s", proceeds)
	})

	t.Run("proceeds accumulate across sales", func(t *testing.T) {
		f := newFixture(t)
		second := domain.NewListingKey("0xBasicNft", "1")
		require.NoError(t, f.registry.Mint(ctx, second, deployer))
		require.NoError(t, f.registry.SetApprovalForAll(ctx, deployer, marketplace, true))

		f.list(t)
		require.NoError(t, f.svc.ListItem(ctx, second, domain.MustAmount("0.2"), deployer))
		require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))
		require.NoError(t, f.svc.BuyItem(ctx, second, domain.MustAmount("0.2"), player))

		proceeds, _ := f.svc.GetProceeds(ctx, deployer)
		assert.True(t, proceeds.Equal(domain.MustAmount("0.3")), "proceeds %s", proceeds)
	})
}

// staleSellerRegistry accepts any transfer and records the from party, standing in
// for a registry where the stored seller still holds transfer rights.
type staleSellerRegistry struct {
	port.AssetRegistry
	mu   sync.Mutex
	from []domain.Account
}

func (r *staleSellerRegistry) TransferFrom(ctx context.Context, operator, from, to domain.Account, key domain.ListingKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.from = append(r.from, from)
	return nil
}

func TestBuyItem_SettlesToStoredSeller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.list(t)

	require.NoError(t, f.registry.TransferFrom(ctx, deployer, deployer, domain.NewAccount("0xnewowner"), basicNft))
	stale := &staleSellerRegistry{AssetRegistry: f.registry}
	f.withRegistry(stale)

	require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))

	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.Equal(price))
	require.Len(t, stale.from, 1)
	assert.Equal(t, deployer, stale.from[0])
}

func TestBuyItem_TransferFailureReverts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.list(t)

	// approval revoked after listing: the registry refuses the move
	require.NoError(t, f.registry.Approve(ctx, deployer, basicNft, ""))

	err := f.svc.BuyItem(ctx, basicNft, price, player)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, registry.ErrNotAuthorized)

	listing, _ := f.svc.GetListing(ctx, basicNft)
	assert.Equal(t, deployer, listing.Seller)
	assert.True(t, listing.Price.Equal(price))

	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.IsZero(), "proceeds %s", proceeds)

	owner, _ := f.registry.OwnerOf(ctx, basicNft)
	assert.Equal(t, deployer, owner)

	for _, e := range f.publisher.Events() {
		assert.NotEqual(t, domain.EventItemBought, e.Type)
	}
}

func TestBuyItem_RevertKeepsEarlierProceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Atomically(ctx, func(tx port.LedgerTx) error {
		return tx.Proceeds().Credit(ctx, deployer, domain.MustAmount("1"))
	}))
	f.list(t)
	require.NoError(t, f.registry.Approve(ctx, deployer, basicNft, ""))

	assert.ErrorIs(t, f.svc.BuyItem(ctx, basicNft, price, player), ErrTransferFailed)

	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.Equal(domain.MustAmount("1")), "proceeds %s", proceeds)
}

func TestBuyItem_RevertAfterCreditSpentRecordsShortfall(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	f.list(t)

	boom := errors.New("registry offline")
	f.withRegistry(&hookRegistry{
		AssetRegistry: f.registry,
		onTransfer: func(ctx context.Context) error {
			// the seller cashes out before the transfer fails
			if err := f.svc.WithdrawProceeds(ctx, deployer); err != nil {
				return err
			}
			return boom
		},
	})

	err := f.svc.BuyItem(ctx, basicNft, price, player)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorIs(t, err, boom)

	entries := logs.FilterMessage("CRITICAL settlement rollback incomplete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "0.1", entries[0].ContextMap()["shortfall"])
	assert.Equal(t, 0, logs.FilterMessage("CRITICAL settlement rollback failed").Len())

	balance, _ := f.wallet.Balance(ctx, deployer)
	assert.True(t, balance.Equal(price))
	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.IsZero())

	listing, err := f.svc.GetListing(ctx, basicNft)
	require.NoError(t, err)
	assert.Equal(t, deployer, listing.Seller, "listing is restored")

	events := f.publisher.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.EventSettlementShortfall, last.Type)
	assert.Equal(t, deployer, last.Account)
	assert.True(t, last.Amount.Equal(price))
}

func TestBuyItem_RevertReversesRemainingCredit(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.ErrorLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	f.list(t)

	f.withRegistry(&hookRegistry{
		AssetRegistry: f.registry,
		onTransfer: func(ctx context.Context) error {
			if err := f.svc.WithdrawProceeds(ctx, deployer); err != nil {
				return err
			}
			// another sale lands before the transfer fails
			if err := f.store.Atomically(ctx, func(tx port.LedgerTx) error {
				return tx.Proceeds().Credit(ctx, deployer, domain.MustAmount("0.04"))
			}); err != nil {
				return err
			}
			return errors.New("registry offline")
		},
	})

	assert.ErrorIs(t, f.svc.BuyItem(ctx, basicNft, price, player), ErrTransferFailed)

	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.IsZero(), "remaining credit reversed, got %s", proceeds)

	entries := logs.FilterMessage("CRITICAL settlement rollback incomplete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "0.04", entries[0].ContextMap()["reversed"])
	assert.Equal(t, "0.06", entries[0].ContextMap()["shortfall"])

	events := f.publisher.Events()
	last := events[len(events)-1]
	assert.Equal(t, domain.EventSettlementShortfall, last.Type)
	assert.True(t, last.Amount.Equal(domain.MustAmount("0.06")))
}

func TestBuyItem_ReentrantBuyObservesRemovedListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.list(t)

	var reentrantErr error
	f.withRegistry(&hookRegistry{
		AssetRegistry: f.registry,
		onTransfer: func(ctx context.Context) error {
			reentrantErr = f.svc.BuyItem(ctx, basicNft, price, player)
			return nil
		},
	})

	require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))
	assert.ErrorIs(t, reentrantErr, ErrNotListed)

	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.Equal(price), "credited once, got %s", proceeds)
}

func TestBuyItem_ConcurrentBuyersExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.list(t)

	var successCount, notListedCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := domain.NewAccount("0xbuyer" + string(rune('a'+i)))
			err := f.svc.BuyItem(ctx, basicNft, price, buyer)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ErrNotListed):
				notListedCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(19), notListedCount.Load())

	proceeds, _ := f.svc.GetProceeds(ctx, deployer)
	assert.True(t, proceeds.Equal(price), "proceeds %s", proceeds)
}

func TestWithdrawProceeds(t *testing.T) {
	ctx := context.Background()

	t.Run("no proceeds", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.svc.WithdrawProceeds(ctx, deployer), ErrNoProceeds)
		assert.Empty(t, f.wallet.Transfers())
	})

	t.Run("pays out exactly the balance", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))
		require.NoError(t, f.wallet.Fund(ctx, deployer, domain.MustAmount("10")))

		require.NoError(t, f.svc.WithdrawProceeds(ctx, deployer))

		balance, _ := f.wallet.Balance(ctx, deployer)
		assert.True(t, balance.Equal(domain.MustAmount("10.1")), "balance %s", balance)
		proceeds, _ := f.svc.GetProceeds(ctx, deployer)
		assert.True(t, proceeds.IsZero())

		assert.ErrorIs(t, f.svc.WithdrawProceeds(ctx, deployer), ErrNoProceeds)
	})

	t.Run("send failure restores balance", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))

		boom := errors.New("recipient rejected value")
		f.wallet.SimulateFailure(boom)

		err := f.svc.WithdrawProceeds(ctx, deployer)
		assert.ErrorIs(t, err, ErrTransferFailed)
		assert.ErrorIs(t, err, boom)

		proceeds, _ := f.svc.GetProceeds(ctx, deployer)
		assert.True(t, proceeds.Equal(price), "proceeds %s", proceeds)

		require.NoError(t, f.svc.WithdrawProceeds(ctx, deployer))
	})

	t.Run("reentrant withdraw sees drained balance", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))

		var reentrantErr error
		f.withSender(&hookSender{
			ValueSender: f.wallet,
			onSend: func(ctx context.Context) {
				reentrantErr = f.svc.WithdrawProceeds(ctx, deployer)
			},
		})

		require.NoError(t, f.svc.WithdrawProceeds(ctx, deployer))
		assert.ErrorIs(t, reentrantErr, ErrNoProceeds)
		assert.Len(t, f.wallet.Transfers(), 1)
	})
}

func TestWithdrawProceeds_ConcurrentSinglePayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.list(t)
	require.NoError(t, f.svc.BuyItem(ctx, basicNft, price, player))

	var successCount, noProceedsCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.WithdrawProceeds(ctx, deployer)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ErrNoProceeds):
				noProceedsCount.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(19), noProceedsCount.Load())

	transfers := f.wallet.Transfers()
	require.Len(t, transfers, 1)
	assert.True(t, transfers[0].Amount.Equal(price))
}

func TestListingUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.svc.ListItem(ctx, basicNft, price, deployer) == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publisher.err = errors.New("sink down")

	assert.NoError(t, f.svc.ListItem(ctx, basicNft, price, deployer))
	assert.Len(t, f.publisher.Events(), 1)
}

func TestOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate request is rejected", func(t *testing.T) {
		f := newFixture(t)
		calls := 0
		fn := func() error { calls++; return nil }

		require.NoError(t, f.svc.Once(ctx, "req-1", fn))
		assert.ErrorIs(t, f.svc.Once(ctx, "req-1", fn), ErrDuplicateRequest)
		assert.Equal(t, 1, calls)
	})

	t.Run("failure releases the claim", func(t *testing.T) {
		f := newFixture(t)
		boom := errors.New("boom")

		assert.ErrorIs(t, f.svc.Once(ctx, "req-2", func() error { return boom }), boom)
		assert.NoError(t, f.svc.Once(ctx, "req-2", func() error { return nil }))
	})

	t.Run("empty request id is unguarded", func(t *testing.T) {
		f := newFixture(t)
		calls := 0
		for i := 0; i < 3; i++ {
			require.NoError(t, f.svc.Once(ctx, " ", func() error { calls++; return nil }))
		}
		assert.Equal(t, 3, calls)
	})

	t.Run("duplicate buy pays once", func(t *testing.T) {
		f := newFixture(t)
		f.list(t)
		buy := func() error { return f.svc.BuyItem(ctx, basicNft, price, player) }

		require.NoError(t, f.svc.Once(ctx, "buy-1", buy))
		assert.ErrorIs(t, f.svc.Once(ctx, "buy-1", buy), ErrDuplicateRequest)
	})
}

func TestMetricsRecordResults(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(metrics.NewRecorder(reg)))

	f.list(t)
	_ = f.svc.ListItem(ctx, basicNft, price, deployer)
	_ = f.svc.WithdrawProceeds(ctx, deployer)

	expected := `
# HELP marketplace_operations_total Marketplace operations by operation and result code.
# TYPE marketplace_operations_total counter
marketplace_operations_total{operation="list_item",result="AlreadyListed"} 1
marketplace_operations_total{operation="list_item",result="ok"} 1
marketplace_operations_total{operation="withdraw_proceeds",result="NoProceeds"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "marketplace_operations_total"))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "NotListed", Code(ErrNotListed))
	assert.Equal(t, "PriceNotMet", Code(errors.Join(errors.New("x"), ErrPriceNotMet)))
	assert.Equal(t, "Internal", Code(errors.New("disk on fire")))
}
