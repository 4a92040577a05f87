package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/nft-marketplace/internal/core/domain"
	"github.com/rl1809/nft-marketplace/internal/metrics"
	"github.com/rl1809/nft-marketplace/internal/port"
)

const idempotencyKeyPrefix = "request:"

// MarketplaceService is the only write entry point into the ledgers. Every
// mutation runs in one LedgerStore transaction, and external collaborators are
// called only after that transaction has committed.
type MarketplaceService struct {
	store       port.LedgerStore
	registry    port.AssetRegistry
	sender      port.ValueSender
	operator    domain.Account
	publisher   port.EventPublisher
	idempotency port.IdempotencyRepository
	logger      *zap.Logger
	metrics     *metrics.Recorder
}

type Option func(*MarketplaceService)

func WithPublisher(p port.EventPublisher) Option {
	return func(s *MarketplaceService) { s.publisher = p }
}

func WithIdempotency(r port.IdempotencyRepository) Option {
	return func(s *MarketplaceService) { s.idempotency = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *MarketplaceService) { s.logger = l }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *MarketplaceService) { s.metrics = m }
}

// NewMarketplaceService wires the engine. operator is the identity the registry
// must approve before an asset can be listed, and the one used to move it on sale.
func NewMarketplaceService(
	store port.LedgerStore,
	registry port.AssetRegistry,
	sender port.ValueSender,
	operator domain.Account,
	opts ...Option,
) *MarketplaceService {
	s := &MarketplaceService{
		store:    store,
		registry: registry,
		sender:   sender,
		operator: operator,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MarketplaceService) Operator() domain.Account {
	return s.operator
}

func (s *MarketplaceService) ListItem(ctx context.Context, key domain.ListingKey, price domain.Amount, caller domain.Account) (err error) {
	defer s.observe("list_item", time.Now(), &err)

	if !price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}

	existing, err := s.store.Listing(ctx, key)
	if err != nil {
		return fmt.Errorf("read listing %s: %w", key, err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyListed, key)
	}

	if err := s.requireOwner(ctx, key, caller); err != nil {
		return err
	}

	approved, err := s.registry.IsApprovedForOperator(ctx, key, s.operator)
	if err != nil {
		return fmt.Errorf("approval lookup %s: %w", key, err)
	}
	if !approved {
		return fmt.Errorf("%w: %s", ErrNotApprovedForMarketplace, key)
	}

	err = s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		current, err := tx.Listings().Get(ctx, key)
		if err != nil {
			return err
		}
		if current != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyListed, key)
		}
		return tx.Listings().Put(ctx, domain.Listing{Key: key, Seller: caller, Price: price})
	})
	if err != nil {
		return err
	}

	s.logger.Info("item listed",
		zap.Stringer("key", key),
		zap.Stringer("seller", caller),
		zap.Stringer("price", price),
	)
	s.publish(ctx, domain.NewEvent(domain.EventItemListed, key, caller, price))
	return nil
}

func (s *MarketplaceService) CancelListing(ctx context.Context, key domain.ListingKey, caller domain.Account) (err error) {
	defer s.observe("cancel_listing", time.Now(), &err)

	if _, err := s.requireListing(ctx, key); err != nil {
		return err
	}
	if err := s.requireOwner(ctx, key, caller); err != nil {
		return err
	}

	err = s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		current, err := tx.Listings().Get(ctx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", ErrNotListed, key)
		}
		return tx.Listings().Remove(ctx, key)
	})
	if err != nil {
		return err
	}

	s.logger.Info("listing canceled", zap.Stringer("key", key), zap.Stringer("owner", caller))
	s.publish(ctx, domain.NewEvent(domain.EventItemCanceled, key, caller, domain.Amount{}))
	return nil
}

// UpdateListing changes the price of an existing listing. Only live ownership is
// checked; marketplace approval is not re-verified.
func (s *MarketplaceService) UpdateListing(ctx context.Context, key domain.ListingKey, newPrice domain.Amount, caller domain.Account) (err error) {
	defer s.observe("update_listing", time.Now(), &err)

	if _, err := s.requireListing(ctx, key); err != nil {
		return err
	}
	if err := s.requireOwner(ctx, key, caller); err != nil {
		return err
	}
	if !newPrice.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, newPrice)
	}

	err = s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		current, err := tx.Listings().Get(ctx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", ErrNotListed, key)
		}
		updated := *current
		updated.Price = newPrice
		return tx.Listings().Put(ctx, updated)
	})
	if err != nil {
		return err
	}

	s.logger.Info("listing updated", zap.Stringer("key", key), zap.Stringer("price", newPrice))
	s.publish(ctx, domain.NewEvent(domain.EventItemListed, key, caller, newPrice))
	return nil
}

// BuyItem settles a purchase against the stored listing. The seller recorded in
// the listing is credited and is the "from" party of the asset transfer, even if
// the asset changed hands since it was listed. Overpayment is credited in full.
func (s *MarketplaceService) BuyItem(ctx context.Context, key domain.ListingKey, paid domain.Amount, buyer domain.Account) (err error) {
	defer s.observe("buy_item", time.Now(), &err)

	var settled domain.Listing
	err = s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		current, err := tx.Listings().Get(ctx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", ErrNotListed, key)
		}
		if paid.LessThan(current.Price) {
			return fmt.Errorf("%w: %s paid %s, price %s", ErrPriceNotMet, key, paid, current.Price)
		}
		if err := tx.Listings().Remove(ctx, key); err != nil {
			return err
		}
		if err := tx.Proceeds().Credit(ctx, current.Seller, paid); err != nil {
			return err
		}
		settled = *current
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.registry.TransferFrom(ctx, s.operator, settled.Seller, buyer, key); err != nil {
		s.logger.Error("asset transfer failed, reverting settlement",
			zap.Stringer("key", key),
			zap.Stringer("seller", settled.Seller),
			zap.Stringer("buyer", buyer),
			zap.Error(err),
		)
		s.revertSettlement(ctx, settled, paid)
		return fmt.Errorf("%w: asset %s to %s: %w", ErrTransferFailed, key, buyer, err)
	}

	s.logger.Info("item bought",
		zap.Stringer("key", key),
		zap.Stringer("seller", settled.Seller),
		zap.Stringer("buyer", buyer),
		zap.Stringer("paid", paid),
	)
	s.publish(ctx, domain.NewEvent(domain.EventItemBought, key, buyer, paid))
	return nil
}

func (s *MarketplaceService) WithdrawProceeds(ctx context.Context, caller domain.Account) (err error) {
	defer s.observe("withdraw_proceeds", time.Now(), &err)

	var amount domain.Amount
	err = s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		drained, err := tx.Proceeds().Drain(ctx, caller)
		if err != nil {
			return err
		}
		if !drained.IsPositive() {
			return fmt.Errorf("%w: %s", ErrNoProceeds, caller)
		}
		amount = drained
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sender.SendValue(ctx, caller, amount); err != nil {
		s.logger.Error("proceeds transfer failed, restoring balance",
			zap.Stringer("account", caller),
			zap.Stringer("amount", amount),
			zap.Error(err),
		)
		s.restoreProceeds(ctx, caller, amount)
		return fmt.Errorf("%w: %s to %s: %w", ErrTransferFailed, amount, caller, err)
	}

	s.logger.Info("proceeds withdrawn", zap.Stringer("account", caller), zap.Stringer("amount", amount))
	return nil
}

// GetListing returns the listing at key, or a zero Listing if it is not listed.
func (s *MarketplaceService) GetListing(ctx context.Context, key domain.ListingKey) (domain.Listing, error) {
	listing, err := s.store.Listing(ctx, key)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("read listing %s: %w", key, err)
	}
	if listing == nil {
		return domain.Listing{Key: key}, nil
	}
	return *listing, nil
}

func (s *MarketplaceService) GetProceeds(ctx context.Context, account domain.Account) (domain.Amount, error) {
	balance, err := s.store.Proceeds(ctx, account)
	if err != nil {
		return domain.Amount{}, fmt.Errorf("read proceeds %s: %w", account, err)
	}
	return balance, nil
}

// Once runs fn at most once per requestID. A failed fn releases the claim so the
// request can be retried. An empty requestID runs fn unguarded.
func (s *MarketplaceService) Once(ctx context.Context, requestID string, fn func() error) error {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" || s.idempotency == nil {
		return fn()
	}

	key := idempotencyKeyPrefix + requestID
	ok, err := s.idempotency.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}

	if err := fn(); err != nil {
		if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			s.logger.Warn("failed to release request id", zap.String("request_id", requestID), zap.Error(releaseErr))
		}
		return err
	}
	return nil
}

func (s *MarketplaceService) requireListing(ctx context.Context, key domain.ListingKey) (*domain.Listing, error) {
	listing, err := s.store.Listing(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read listing %s: %w", key, err)
	}
	if listing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, key)
	}
	return listing, nil
}

func (s *MarketplaceService) requireOwner(ctx context.Context, key domain.ListingKey, caller domain.Account) error {
	owner, err := s.registry.OwnerOf(ctx, key)
	if err != nil {
		return fmt.Errorf("owner lookup %s: %w", key, err)
	}
	if owner != caller {
		return fmt.Errorf("%w: %s is not the owner of %s", ErrNotOwner, caller, key)
	}
	return nil
}

// revertSettlement undoes a committed settlement whose asset transfer failed:
// the listing comes back if its key is still free and as much of the seller
// credit as is still held is reversed. Any part the seller already withdrew is
// reported as an EventSettlementShortfall.
func (s *MarketplaceService) revertSettlement(ctx context.Context, listing domain.Listing, paid domain.Amount) {
	ctx = context.WithoutCancel(ctx)

	var reversed domain.Amount
	err := s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		current, err := tx.Listings().Get(ctx, listing.Key)
		if err != nil {
			return err
		}
		if current == nil {
			if err := tx.Listings().Put(ctx, listing); err != nil {
				return err
			}
		}
		balance, err := tx.Proceeds().Drain(ctx, listing.Seller)
		if err != nil {
			return err
		}
		reversed = decimal.Min(balance, paid)
		return tx.Proceeds().Credit(ctx, listing.Seller, balance.Sub(reversed))
	})
	if err != nil {
		s.logger.Error("CRITICAL settlement rollback failed",
			zap.Stringer("key", listing.Key),
			zap.Stringer("seller", listing.Seller),
			zap.Stringer("paid", paid),
			zap.Error(err),
		)
		return
	}

	if shortfall := paid.Sub(reversed); shortfall.IsPositive() {
		s.logger.Error("CRITICAL settlement rollback incomplete",
			zap.Stringer("key", listing.Key),
			zap.Stringer("seller", listing.Seller),
			zap.Stringer("paid", paid),
			zap.Stringer("reversed", reversed),
			zap.Stringer("shortfall", shortfall),
		)
		s.publish(ctx, domain.NewEvent(domain.EventSettlementShortfall, listing.Key, listing.Seller, shortfall))
		return
	}
	s.logger.Info("settlement reverted", zap.Stringer("key", listing.Key))
}

func (s *MarketplaceService) restoreProceeds(ctx context.Context, account domain.Account, amount domain.Amount) {
	ctx = context.WithoutCancel(ctx)
	err := s.store.Atomically(ctx, func(tx port.LedgerTx) error {
		return tx.Proceeds().Credit(ctx, account, amount)
	})
	if err != nil {
		s.logger.Error("CRITICAL proceeds rollback failed",
			zap.Stringer("account", account),
			zap.Stringer("amount", amount),
			zap.Error(err),
		)
	}
}

func (s *MarketplaceService) publish(ctx context.Context, event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

func (s *MarketplaceService) observe(operation string, start time.Time, err *error) {
	s.metrics.Observe(operation, start, Code(*err))
}
